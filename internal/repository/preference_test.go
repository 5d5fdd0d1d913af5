package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/database"
	"github.com/cleberrangel/pert-estimator/internal/migration"
	"github.com/cleberrangel/pert-estimator/internal/model"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.OpenSQLite(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, migration.NewMigrator(db).Run())
	return db
}

// setupPostgresDB cria um banco descartável; pula quando não há PostgreSQL
func setupPostgresDB(t *testing.T) *database.DB {
	t.Helper()

	dbConfig := database.Config{
		Driver:   database.Postgres,
		Host:     getEnvOrDefault("TEST_DB_HOST", "127.0.0.1"),
		Port:     getEnvOrDefault("TEST_DB_PORT", "5432"),
		User:     getEnvOrDefault("TEST_DB_USER", "postgres"),
		Password: getEnvOrDefault("TEST_DB_PASSWORD", "postgres"),
		DBName:   fmt.Sprintf("test_pert_%d", time.Now().UnixNano()),
		SSLMode:  "disable",
	}

	adminConfig := dbConfig
	adminConfig.DBName = "postgres"

	adminDB, err := database.Connect(adminConfig)
	if err != nil {
		t.Skipf("Pulando teste: não foi possível conectar ao PostgreSQL: %v", err)
	}
	if _, err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbConfig.DBName)); err != nil {
		adminDB.Close()
		t.Fatalf("Erro ao criar banco de teste: %v", err)
	}

	testDB, err := database.Open(dbConfig)
	if err != nil {
		adminDB.Close()
		t.Fatalf("Erro ao conectar ao banco de teste: %v", err)
	}

	t.Cleanup(func() {
		database.Close(testDB)
		adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbConfig.DBName))
		adminDB.Close()
	})

	require.NoError(t, migration.NewMigrator(testDB).Run())
	return testDB
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func exercisePreferenceRepository(t *testing.T, db *database.DB) {
	ctx := context.Background()
	repo := NewPreferenceRepository(db)

	pref, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, pref, "usuário sem taxas salvas")

	require.NoError(t, repo.Upsert(ctx, model.UserRatePreference{UserID: "alice", HourlyRate: 50, ContractorFeePercent: 20}))
	require.NoError(t, repo.Upsert(ctx, model.UserRatePreference{UserID: "alice", HourlyRate: 75, ContractorFeePercent: 0}))

	pref, err = repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Equal(t, "alice", pref.UserID)
	assert.Equal(t, int64(75), pref.HourlyRate)
	assert.Equal(t, int64(0), pref.ContractorFeePercent)
	assert.False(t, pref.UpdatedAt.Before(pref.CreatedAt))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.Delete(ctx, "alice"))
	pref, err = repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, pref)
}

func TestPreferenceRepositorySQLite(t *testing.T) {
	exercisePreferenceRepository(t, setupTestDB(t))
}

func TestPreferenceRepositoryPostgres(t *testing.T) {
	exercisePreferenceRepository(t, setupPostgresDB(t))
}

func TestPreferenceRepositoryIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewPreferenceRepository(setupTestDB(t))

	require.NoError(t, repo.Upsert(ctx, model.UserRatePreference{UserID: "alice", HourlyRate: 50, ContractorFeePercent: 20}))
	require.NoError(t, repo.Upsert(ctx, model.UserRatePreference{UserID: "bob", HourlyRate: 90, ContractorFeePercent: 10}))

	alice, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	bob, err := repo.Get(ctx, "bob")
	require.NoError(t, err)

	assert.Equal(t, int64(50), alice.HourlyRate)
	assert.Equal(t, int64(90), bob.HourlyRate)
}

func TestPreferenceRepositoryCanceledContext(t *testing.T) {
	repo := NewPreferenceRepository(setupTestDB(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Upsert(ctx, model.UserRatePreference{UserID: "alice", HourlyRate: 1})
	assert.Error(t, err)
}

func TestPreferenceLastWriteWinsProperty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPreferenceRepository(db)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("o último valor salvo é o valor lido", prop.ForAll(
		func(user string, rates []int64) bool {
			if len(rates) == 0 {
				return true
			}
			for _, rate := range rates {
				if err := repo.Upsert(ctx, model.UserRatePreference{UserID: user, HourlyRate: rate, ContractorFeePercent: rate % 100}); err != nil {
					return false
				}
			}
			pref, err := repo.Get(ctx, user)
			if err != nil || pref == nil {
				return false
			}
			last := rates[len(rates)-1]
			return pref.HourlyRate == last && pref.ContractorFeePercent == last%100
		},
		gen.Identifier(),
		gen.SliceOf(gen.Int64Range(0, 1_000_000)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
