package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cleberrangel/pert-estimator/internal/config"
	"github.com/cleberrangel/pert-estimator/internal/database"
	"github.com/cleberrangel/pert-estimator/internal/estimator"
	"github.com/cleberrangel/pert-estimator/internal/migration"
	"github.com/cleberrangel/pert-estimator/internal/model"
	"github.com/cleberrangel/pert-estimator/internal/repository"
	"github.com/cleberrangel/pert-estimator/internal/service"
	"github.com/spf13/cobra"
)

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Aplica as migrações pendentes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close(db)

		migrator := migration.NewMigrator(db)
		if err := migrator.Run(); err != nil {
			return err
		}

		version, err := migrator.CurrentVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "banco na versão %d\n", version)
		return nil
	},
}

// --- estimate ---

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Calcula uma estimativa PERT sem salvar as taxas",
	Long: `Calcula uma estimativa PERT sem salvar as taxas.

Exemplo:
  pert-estimator estimate --optimistic 4 --likely 8 --pessimistic 16 --rate 50 --fee 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flag := func(name string) model.FieldValue {
			v, _ := cmd.Flags().GetString(name)
			return model.FieldValue(v)
		}
		strict, _ := cmd.Flags().GetBool("strict")

		form := model.EstimateForm{
			Optimistic:           flag("optimistic"),
			Likely:               flag("likely"),
			Pessimistic:          flag("pessimistic"),
			HourlyRate:           flag("rate"),
			ContractorFeePercent: flag("fee"),
		}

		mode := estimator.Lenient
		if strict {
			mode = estimator.Strict
		}

		req, _, err := estimator.ParseForm(form, mode)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(model.EstimateResponse{
			Success: true,
			Input:   req.EstimateInput,
			Rates:   req.RateInput,
			Result:  estimator.Compute(req),
		})
	},
}

func init() {
	estimateCmd.Flags().String("optimistic", "", "estimativa otimista, em horas")
	estimateCmd.Flags().String("likely", "", "estimativa mais provável, em horas")
	estimateCmd.Flags().String("pessimistic", "", "estimativa pessimista, em horas")
	estimateCmd.Flags().String("rate", "", "valor da hora")
	estimateCmd.Flags().String("fee", "", "taxa do contratante (%)")
	estimateCmd.Flags().Bool("strict", false, "rejeita campos não numéricos ou negativos")
}

// --- user ---

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Gerencia usuários do login embutido",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Cria um usuário",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("PERT_USER_PASSWORD")
		}
		if username == "" || password == "" {
			return fmt.Errorf("--username e --password (ou PERT_USER_PASSWORD) são obrigatórios")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		authService, closeDB, err := newAuthService(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := authService.CreateUser(cmd.Context(), username, password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "usuário %s criado\n", username)
		return nil
	},
}

var userPasswordCmd = &cobra.Command{
	Use:   "password",
	Short: "Troca a senha de um usuário",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("PERT_USER_PASSWORD")
		}
		if username == "" || password == "" {
			return fmt.Errorf("--username e --password (ou PERT_USER_PASSWORD) são obrigatórios")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		authService, closeDB, err := newAuthService(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := authService.UpdateUserPassword(cmd.Context(), username, password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "senha de %s atualizada\n", username)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{userCreateCmd, userPasswordCmd} {
		c.Flags().String("username", "", "nome de usuário")
		c.Flags().String("password", "", "senha (6 a 128 caracteres)")
		userCmd.AddCommand(c)
	}
}

// newAuthService abre o banco, aplica as migrações e carrega os usuários
func newAuthService(ctx context.Context, cfg *config.Config) (*service.AuthService, func(), error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { database.Close(db) }

	if err := migration.NewMigrator(db).Run(); err != nil {
		closeDB()
		return nil, nil, err
	}

	authService, err := service.NewAuthService(ctx, repository.NewUserRepository(db), service.AuthOptions{})
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return authService, closeDB, nil
}
