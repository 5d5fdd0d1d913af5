package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/cache"
	"github.com/cleberrangel/pert-estimator/internal/estimator"
	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/cleberrangel/pert-estimator/internal/metrics"
	"github.com/cleberrangel/pert-estimator/internal/model"
	"github.com/cleberrangel/pert-estimator/internal/repository"
	"github.com/cespare/xxhash/v2"
)

// maxStoredRate é 2^63: qualquer valor truncado a partir daqui não cabe em int64
const maxStoredRate = float64(1 << 63)

// userLockStripes é o número de mutexes que serializam gravações por usuário
const userLockStripes = 64

// PreferenceService é o dono das taxas salvas por usuário
type PreferenceService struct {
	repo    repository.PreferenceStore
	cache   cache.PreferenceCache
	metrics *metrics.Metrics

	// Banco e cache de um mesmo usuário mudam juntos sob o mesmo lock
	locks [userLockStripes]sync.Mutex
}

// NewPreferenceService cria o serviço de preferências.
// cache pode ser nil para desativar o cache.
func NewPreferenceService(repo repository.PreferenceStore, pc cache.PreferenceCache) *PreferenceService {
	if pc == nil {
		pc = cache.NopPreferenceCache{}
	}
	return &PreferenceService{
		repo:    repo,
		cache:   pc,
		metrics: metrics.Get(),
	}
}

func (s *PreferenceService) lockUser(userID string) *sync.Mutex {
	mu := &s.locks[xxhash.Sum64String(userID)%userLockStripes]
	mu.Lock()
	return mu
}

// TruncateRate converte a taxa para o inteiro armazenado, truncando em direção a zero
func TruncateRate(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s", model.ErrInvalidRate, model.FormatNumber(v))
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %s é negativo", model.ErrInvalidRate, model.FormatNumber(v))
	}
	t := math.Trunc(v)
	if t >= maxStoredRate {
		return 0, fmt.Errorf("%w: %s fora do intervalo", model.ErrInvalidRate, model.FormatNumber(v))
	}
	return int64(t), nil
}

// ParseRate lê uma taxa enviada como texto; vazio vale zero
func ParseRate(field string, raw model.FieldValue) (float64, error) {
	v, issue := estimator.ParseStrict(string(raw))
	if issue != "" {
		return 0, fmt.Errorf("%w: %s %s", model.ErrInvalidRate, field, issue)
	}
	return v, nil
}

// Save grava as duas taxas do usuário, sobrescrevendo qualquer valor anterior
func (s *PreferenceService) Save(ctx context.Context, userID string, hourlyRate, contractorFeePercent float64) (err error) {
	start := time.Now()
	log := logger.Get(ctx)

	var pref model.UserRatePreference
	defer func() {
		s.metrics.IncrementPreferenceSave(err == nil, time.Since(start).Milliseconds())
		logger.AuditPreferenceSave(ctx, userID, pref.HourlyRate, pref.ContractorFeePercent, err)
	}()

	if userID == "" {
		return model.ErrMissingIdentity
	}

	rate, err := TruncateRate(hourlyRate)
	if err != nil {
		return fmt.Errorf("hourlyRate: %w", err)
	}
	fee, err := TruncateRate(contractorFeePercent)
	if err != nil {
		return fmt.Errorf("contractorFeePercent: %w", err)
	}

	pref = model.UserRatePreference{
		UserID:               userID,
		HourlyRate:           rate,
		ContractorFeePercent: fee,
	}

	mu := s.lockUser(userID)
	defer mu.Unlock()

	if err := s.repo.Upsert(ctx, pref); err != nil {
		return err
	}

	if cacheErr := s.cache.Set(ctx, pref); cacheErr != nil {
		s.metrics.IncrementCacheError()
		log.Warn().Err(cacheErr).Str("user_id", userID).Msg("Erro ao atualizar cache de preferências")
		// Entrada antiga não pode sobreviver à escrita
		if delErr := s.cache.Delete(ctx, userID); delErr != nil {
			log.Warn().Err(delErr).Str("user_id", userID).Msg("Erro ao invalidar cache de preferências")
		}
	}

	log.Debug().
		Str("user_id", userID).
		Int64("hourly_rate", rate).
		Int64("contractor_fee_percent", fee).
		Msg("Taxas salvas")
	return nil
}

// SaveRequest valida o payload da ação save-rate-preference e grava
func (s *PreferenceService) SaveRequest(ctx context.Context, userID string, req model.SavePreferenceRequest) error {
	rate, err := ParseRate(estimator.FieldHourlyRate, req.HourlyRate)
	if err != nil {
		return err
	}
	fee, err := ParseRate(estimator.FieldContractorFeePercent, req.ContractorFeePercent)
	if err != nil {
		return err
	}
	return s.Save(ctx, userID, rate, fee)
}

// Get retorna a preferência salva ou nil quando não existe
func (s *PreferenceService) Get(ctx context.Context, userID string) (*model.UserRatePreference, error) {
	if userID == "" {
		return nil, model.ErrMissingIdentity
	}

	log := logger.Get(ctx)
	s.metrics.IncrementPreferenceLoad()

	cached, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.metrics.IncrementCacheError()
		log.Warn().Err(err).Str("user_id", userID).Msg("Erro ao ler cache de preferências")
	}
	if cached != nil {
		s.metrics.IncrementCache(true)
		return cached, nil
	}
	s.metrics.IncrementCache(false)

	// Uma gravação concorrente não pode ser sobrescrita pelo valor lido antes dela
	mu := s.lockUser(userID)
	defer mu.Unlock()

	pref, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		return nil, nil
	}

	if err := s.cache.Set(ctx, *pref); err != nil {
		s.metrics.IncrementCacheError()
		log.Warn().Err(err).Str("user_id", userID).Msg("Erro ao preencher cache de preferências")
	}
	return pref, nil
}

// Load é o caminho de leitura do widget: strings vazias quando não há preferência
func (s *PreferenceService) Load(ctx context.Context, userID string) (model.PreferenceDefaults, error) {
	pref, err := s.Get(ctx, userID)
	if err != nil {
		return model.PreferenceDefaults{}, err
	}
	return pref.Defaults(), nil
}

// Delete remove as taxas salvas do usuário
func (s *PreferenceService) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return model.ErrMissingIdentity
	}
	mu := s.lockUser(userID)
	defer mu.Unlock()

	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.metrics.IncrementCacheError()
		logger.Get(ctx).Warn().Err(err).Str("user_id", userID).Msg("Erro ao invalidar cache de preferências")
	}
	return nil
}
