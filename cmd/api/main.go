package main

import (
	"fmt"
	"os"

	"github.com/cleberrangel/pert-estimator/internal/config"
	"github.com/cleberrangel/pert-estimator/internal/database"
	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/spf13/cobra"
)

const Version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:           "pert-estimator",
	Short:         "Estimador PERT com taxas salvas por usuário",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, estimateCmd, userCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "erro: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig carrega as configurações e inicializa o logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar configurações: %w", err)
	}

	logger.Init(cfg.LogLevel, cfg.LogJSON)
	logger.InitAudit()
	return cfg, nil
}

// openDatabase abre o banco configurado
func openDatabase(cfg *config.Config) (*database.DB, error) {
	return database.Open(database.Config{
		Driver:   database.Dialect(cfg.DBDriver),
		Path:     cfg.SQLitePath,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
}
