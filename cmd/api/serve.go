package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/cache"
	"github.com/cleberrangel/pert-estimator/internal/config"
	"github.com/cleberrangel/pert-estimator/internal/database"
	"github.com/cleberrangel/pert-estimator/internal/estimator"
	"github.com/cleberrangel/pert-estimator/internal/handler"
	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/cleberrangel/pert-estimator/internal/metrics"
	"github.com/cleberrangel/pert-estimator/internal/middleware"
	"github.com/cleberrangel/pert-estimator/internal/migration"
	"github.com/cleberrangel/pert-estimator/internal/repository"
	"github.com/cleberrangel/pert-estimator/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
	cleanupInterval = 10 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Inicia o servidor HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.Global()
	log.Info().
		Str("version", Version).
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Bool("log_json", cfg.LogJSON).
		Str("db_driver", cfg.DBDriver).
		Str("input_mode", cfg.InputMode).
		Str("identity_mode", cfg.IdentityMode).
		Msg("PERT Estimator iniciando")

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Banco de dados e migrações
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("erro ao conectar ao banco: %w", err)
	}
	defer database.Close(db)

	if err := migration.NewMigrator(db).Run(); err != nil {
		return fmt.Errorf("erro ao executar migrações: %w", err)
	}

	// Cache de preferências
	prefCache := cache.NewPreferenceCache(cfg.RedisAddr, cfg.CacheTTL)
	defer prefCache.Close()

	var cachePinger metrics.Pinger
	if redisCache, ok := prefCache.(*cache.RedisPreferenceCache); ok {
		cachePinger = redisCache
		if err := redisCache.Ping(ctx); err != nil {
			// O cache é opcional: as gravações seguem direto no banco
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis indisponível")
		}
	}

	// Serviços
	preferenceService := service.NewPreferenceService(repository.NewPreferenceRepository(db), prefCache)
	estimatorService := service.NewEstimatorService(preferenceService, inputMode(cfg), cfg.SaveTimeout)

	saveLimiter := middleware.NewUserRateLimiter(cfg.SaveRateLimitPerMinute, middleware.DefaultSaveBurst)

	deps := handler.RouterDeps{
		Version:        Version,
		DB:             db,
		Cache:          cachePinger,
		Estimator:      estimatorService,
		Preferences:    preferenceService,
		Excel:          service.NewExcelGenerator(),
		IdentityHeader: cfg.IdentityHeader,
		SaveLimiter:    saveLimiter,
	}

	if cfg.IdentityMode == config.IdentityModeSession {
		authService, err := service.NewAuthService(ctx, repository.NewUserRepository(db), service.AuthOptions{
			SessionDuration: cfg.SessionDuration,
			CookieSecure:    cfg.CookieSecure,
		})
		if err != nil {
			return fmt.Errorf("erro ao iniciar autenticação: %w", err)
		}

		if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
			created, err := authService.EnsureUser(ctx, cfg.AdminUsername, cfg.AdminPassword)
			if err != nil {
				return fmt.Errorf("erro ao criar usuário admin: %w", err)
			}
			if created {
				log.Info().Str("username", cfg.AdminUsername).Msg("Usuário admin criado")
			}
		}

		authService.StartSessionCleanup(ctx, cleanupInterval)
		deps.Auth = authService
	}

	go cleanupLimiter(ctx, saveLimiter)

	// Configura modo do Gin
	gin.SetMode(cfg.GinMode)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Servidor iniciando")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Encerrando servidor")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("erro no servidor: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Erro ao encerrar servidor HTTP")
	}

	// Gravações disparadas antes do desligamento terminam antes de fechar o banco
	if err := estimatorService.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Gravações pendentes não concluídas")
	}

	log.Info().Msg("Servidor encerrado")
	return nil
}

func inputMode(cfg *config.Config) estimator.Mode {
	if cfg.InputMode == config.InputModeStrict {
		return estimator.Strict
	}
	return estimator.Lenient
}

// cleanupLimiter remove limitadores de usuários inativos até ctx terminar
func cleanupLimiter(ctx context.Context, l *middleware.UserRateLimiter) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := l.Cleanup(cleanupInterval); removed > 0 {
				logger.Global().Debug().Int("removed", removed).Msg("Limitadores inativos removidos")
			}
		case <-ctx.Done():
			return
		}
	}
}
