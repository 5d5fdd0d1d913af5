package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/estimator"
	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/cleberrangel/pert-estimator/internal/metrics"
	"github.com/cleberrangel/pert-estimator/internal/model"
)

// DefaultSaveTimeout limita cada gravação disparada em segundo plano
const DefaultSaveTimeout = 5 * time.Second

// ErrDispatcherClosed indica que o serviço já está em desligamento
var ErrDispatcherClosed = errors.New("despacho de gravação encerrado")

// RateSaver grava as taxas de um usuário
type RateSaver interface {
	Save(ctx context.Context, userID string, hourlyRate, contractorFeePercent float64) error
}

// EstimatorService calcula a estimativa e dispara a gravação das taxas sem esperar por ela
type EstimatorService struct {
	saver       RateSaver
	mode        estimator.Mode
	saveTimeout time.Duration
	metrics     *metrics.Metrics

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
}

// NewEstimatorService cria o serviço de estimativa
func NewEstimatorService(saver RateSaver, mode estimator.Mode, saveTimeout time.Duration) *EstimatorService {
	if saveTimeout <= 0 {
		saveTimeout = DefaultSaveTimeout
	}
	return &EstimatorService{
		saver:       saver,
		mode:        mode,
		saveTimeout: saveTimeout,
		metrics:     metrics.Get(),
	}
}

// Mode retorna o modo de leitura dos campos
func (s *EstimatorService) Mode() estimator.Mode {
	return s.mode
}

// Evaluate lê o formulário e calcula o resultado, sem efeitos colaterais além de logs e métricas
func (s *EstimatorService) Evaluate(ctx context.Context, form model.EstimateForm) (model.EstimateRequest, model.EstimateResult, error) {
	log := logger.Get(ctx)

	req, coercions, err := estimator.ParseForm(form, s.mode)
	if err != nil {
		s.metrics.IncrementInputRejection()
		log.Warn().Err(err).Msg("Campos da estimativa rejeitados")
		return model.EstimateRequest{}, model.EstimateResult{}, err
	}

	for _, c := range coercions {
		log.Debug().
			Str("field", c.Field).
			Str("raw", c.Raw).
			Float64("value", c.Value).
			Msg("Campo não numérico convertido")
	}
	s.metrics.AddInputCoercions(len(coercions))

	result := estimator.Compute(req)
	s.metrics.IncrementEstimate(result.IsFinite())

	return req, result, nil
}

// ComputeAndDisplay calcula a estimativa e dispara a gravação das taxas do usuário.
// O resultado da gravação é descartado: falhas só aparecem em log e métricas.
func (s *EstimatorService) ComputeAndDisplay(ctx context.Context, userID string, form model.EstimateForm) (model.EstimateRequest, model.EstimateResult, error) {
	req, result, err := s.Evaluate(ctx, form)
	if err != nil {
		return req, result, err
	}

	s.dispatchSave(ctx, userID, req.RateInput)
	return req, result, nil
}

// dispatchSave grava as taxas numa goroutine própria. O contexto é
// desligado do cancelamento da requisição e limitado por saveTimeout.
func (s *EstimatorService) dispatchSave(ctx context.Context, userID string, rates model.RateInput) {
	log := logger.Get(ctx)

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		s.metrics.IncrementDispatchDropped()
		log.Warn().Str("user_id", userID).Err(ErrDispatcherClosed).Msg("Gravação de taxas descartada")
		return
	}
	s.pending.Add(1)
	s.mu.RUnlock()

	s.metrics.DispatchStarted()
	detached := context.WithoutCancel(ctx)

	go func() {
		defer s.pending.Done()
		defer s.metrics.DispatchFinished()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("user_id", userID).Msg("Pânico ao gravar taxas")
			}
		}()

		saveCtx, cancel := context.WithTimeout(detached, s.saveTimeout)
		defer cancel()

		if err := s.saver.Save(saveCtx, userID, rates.HourlyRate, rates.ContractorFeePercent); err != nil {
			log.Warn().
				Err(err).
				Str("user_id", userID).
				Msg("Falha ao gravar taxas em segundo plano")
		}
	}()
}

// Wait bloqueia até que todas as gravações disparadas terminem
func (s *EstimatorService) Wait() {
	s.pending.Wait()
}

// Shutdown recusa novos despachos e espera os pendentes até o prazo de ctx
func (s *EstimatorService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Global().Info().Msg("Gravações pendentes concluídas")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("aguardando gravações pendentes: %w", ctx.Err())
	}
}
