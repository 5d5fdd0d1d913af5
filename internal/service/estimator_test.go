package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/estimator"
	"github.com/cleberrangel/pert-estimator/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type savedRates struct {
	userID string
	rate   float64
	fee    float64
}

// fakeSaver registra as gravações; block segura cada gravação até ser fechado
type fakeSaver struct {
	mu       sync.Mutex
	saves    []savedRates
	err      error
	block    chan struct{}
	ctxErr   error
	deadline bool
}

func (f *fakeSaver) Save(ctx context.Context, userID string, rate, fee float64) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, savedRates{userID, rate, fee})
	f.ctxErr = ctx.Err()
	_, f.deadline = ctx.Deadline()
	return f.err
}

func (f *fakeSaver) calls() []savedRates {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]savedRates(nil), f.saves...)
}

func scenarioForm() model.EstimateForm {
	return model.EstimateForm{
		Optimistic:           "4",
		Likely:               "8",
		Pessimistic:          "16",
		HourlyRate:           "50",
		ContractorFeePercent: "20",
	}
}

func TestComputeAndDisplayScenario(t *testing.T) {
	saver := &fakeSaver{}
	svc := NewEstimatorService(saver, estimator.Lenient, time.Second)

	req, result, err := svc.ComputeAndDisplay(context.Background(), "alice", scenarioForm())
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, 8.5, result.EstimateHours)
	assert.Equal(t, 531.0, result.ClientEstimate)
	assert.Equal(t, 425.0, result.WorkerPay)
	assert.Equal(t, 50.0, req.HourlyRate)

	require.Len(t, saver.calls(), 1)
	assert.Equal(t, savedRates{"alice", 50, 20}, saver.calls()[0])
}

func TestComputeDoesNotWaitForSave(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{})}
	svc := NewEstimatorService(saver, estimator.Lenient, time.Second)

	done := make(chan struct{})
	go func() {
		_, _, _ = svc.ComputeAndDisplay(context.Background(), "alice", scenarioForm())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("o cálculo esperou pela gravação")
	}
	assert.Empty(t, saver.calls())

	close(saver.block)
	svc.Wait()
	assert.Len(t, saver.calls(), 1)
}

func TestSaveFailureIsNotSurfaced(t *testing.T) {
	saver := &fakeSaver{err: errors.New("database is locked")}
	svc := NewEstimatorService(saver, estimator.Lenient, time.Second)

	_, result, err := svc.ComputeAndDisplay(context.Background(), "alice", scenarioForm())
	require.NoError(t, err)
	assert.Equal(t, 531.0, result.ClientEstimate)
	svc.Wait()
}

func TestSaveOutlivesRequestContext(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{})}
	svc := NewEstimatorService(saver, estimator.Lenient, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	_, _, err := svc.ComputeAndDisplay(ctx, "alice", scenarioForm())
	require.NoError(t, err)
	cancel()

	close(saver.block)
	svc.Wait()

	saver.mu.Lock()
	defer saver.mu.Unlock()
	assert.NoError(t, saver.ctxErr, "cancelar a requisição não cancela a gravação")
	assert.True(t, saver.deadline, "a gravação tem prazo próprio")
}

func TestFullContractorFeeIsRenderedAsIs(t *testing.T) {
	svc := NewEstimatorService(&fakeSaver{}, estimator.Lenient, time.Second)
	form := scenarioForm()
	form.ContractorFeePercent = "100"

	_, result, err := svc.ComputeAndDisplay(context.Background(), "alice", form)
	require.NoError(t, err)
	svc.Wait()

	assert.True(t, math.IsInf(result.ClientEstimate, 1))
	assert.Equal(t, "Infinity", model.FormatNumber(result.ClientEstimate))
}

func TestBlankLikelyIsZero(t *testing.T) {
	svc := NewEstimatorService(&fakeSaver{}, estimator.Lenient, time.Second)
	form := scenarioForm()
	form.Likely = ""

	req, result, err := svc.Evaluate(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, 0.0, req.Likely)
	assert.Equal(t, estimator.RoundToStep(20.0/6, estimator.HoursStep), result.EstimateHours)
}

func TestStrictModeRejectsWithoutSaving(t *testing.T) {
	saver := &fakeSaver{}
	svc := NewEstimatorService(saver, estimator.Strict, time.Second)
	form := scenarioForm()
	form.Likely = "eight"

	_, _, err := svc.ComputeAndDisplay(context.Background(), "alice", form)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, estimator.FieldLikely, verr.Fields[0].Field)

	svc.Wait()
	assert.Empty(t, saver.calls())
}

func TestShutdownDrainsAndRefusesNewDispatches(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{})}
	svc := NewEstimatorService(saver, estimator.Lenient, time.Second)

	_, _, err := svc.ComputeAndDisplay(context.Background(), "alice", scenarioForm())
	require.NoError(t, err)

	// Prazo curto com gravação bloqueada
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Shutdown(ctx), context.DeadlineExceeded)

	close(saver.block)
	require.NoError(t, svc.Shutdown(context.Background()))
	assert.Len(t, saver.calls(), 1)

	_, _, err = svc.ComputeAndDisplay(context.Background(), "bob", scenarioForm())
	require.NoError(t, err, "o cálculo continua funcionando")
	svc.Wait()
	assert.Len(t, saver.calls(), 1, "nenhuma gravação nova após o desligamento")
}

func TestEstimatorWithPreferenceService(t *testing.T) {
	prefs, _ := newPreferenceService(t)
	svc := NewEstimatorService(prefs, estimator.Lenient, time.Second)

	form := scenarioForm()
	form.HourlyRate = "50.9"
	form.ContractorFeePercent = "10.4"

	_, _, err := svc.ComputeAndDisplay(context.Background(), "alice", form)
	require.NoError(t, err)
	svc.Wait()

	defaults, err := prefs.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, model.PreferenceDefaults{HourlyRate: "50", ContractorFeePercent: "10"}, defaults)
}
