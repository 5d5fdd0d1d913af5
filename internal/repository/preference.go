package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/database"
	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/cleberrangel/pert-estimator/internal/model"
)

// PreferenceStore é o contrato de persistência das taxas por usuário
type PreferenceStore interface {
	Upsert(ctx context.Context, pref model.UserRatePreference) error
	Get(ctx context.Context, userID string) (*model.UserRatePreference, error)
	Delete(ctx context.Context, userID string) error
}

// PreferenceRepository gerencia as taxas salvas de cada usuário no banco
type PreferenceRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewPreferenceRepository cria um novo repositório de preferências
func NewPreferenceRepository(db *database.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Upsert insere ou sobrescreve as taxas do usuário (último a escrever vence)
func (r *PreferenceRepository) Upsert(ctx context.Context, pref model.UserRatePreference) error {
	log := logger.Global()

	now := r.now()
	query := r.db.Rebind(`
		INSERT INTO user_rate_preferences (user_id, hourly_rate, contractor_fee_percent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			hourly_rate = EXCLUDED.hourly_rate,
			contractor_fee_percent = EXCLUDED.contractor_fee_percent,
			updated_at = EXCLUDED.updated_at
	`)

	_, err := r.db.ExecContext(ctx, query, pref.UserID, pref.HourlyRate, pref.ContractorFeePercent, now, now)
	if err != nil {
		log.Error().Err(err).Str("user_id", pref.UserID).Msg("Erro ao inserir/atualizar taxas do usuário")
		return fmt.Errorf("erro ao inserir/atualizar taxas do usuário: %w", err)
	}

	log.Debug().
		Str("user_id", pref.UserID).
		Int64("hourly_rate", pref.HourlyRate).
		Int64("contractor_fee_percent", pref.ContractorFeePercent).
		Msg("Taxas do usuário atualizadas")
	return nil
}

// Get obtém as taxas salvas; retorna nil, nil quando o usuário nunca salvou
func (r *PreferenceRepository) Get(ctx context.Context, userID string) (*model.UserRatePreference, error) {
	query := r.db.Rebind(`
		SELECT user_id, hourly_rate, contractor_fee_percent, created_at, updated_at
		FROM user_rate_preferences
		WHERE user_id = $1
	`)

	var pref model.UserRatePreference
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&pref.UserID,
		&pref.HourlyRate,
		&pref.ContractorFeePercent,
		&pref.CreatedAt,
		&pref.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Usuário ainda não salvou taxas
		}
		return nil, fmt.Errorf("erro ao buscar taxas do usuário: %w", err)
	}

	return &pref, nil
}

// Delete remove as taxas do usuário
func (r *PreferenceRepository) Delete(ctx context.Context, userID string) error {
	query := r.db.Rebind(`DELETE FROM user_rate_preferences WHERE user_id = $1`)

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("erro ao remover taxas do usuário: %w", err)
	}

	logger.Global().Info().Str("user_id", userID).Msg("Taxas do usuário removidas")
	return nil
}

// Count retorna quantos usuários têm taxas salvas
func (r *PreferenceRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_rate_preferences").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("erro ao contar preferências: %w", err)
	}
	return count, nil
}
