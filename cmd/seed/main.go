package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"coursebook/config"
	"coursebook/internal/domain/entity"
	"coursebook/internal/domain/lifecycle"
	"coursebook/internal/errors"
	"coursebook/internal/infra/auth"
	logs "coursebook/internal/infra/log"
	"coursebook/internal/infra/persistence/postgres"
	"coursebook/internal/usecase"
	"coursebook/internal/usecase/impl"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

type seedAccount struct {
	name     string
	email    string
	password string
	role     entity.Role
}

func main() {
	admin := seedAccount{name: "Admin", role: entity.RoleAdmin}
	user := seedAccount{name: "User", role: entity.RoleUser}

	rootCmd := &cobra.Command{
		Use:          "seed",
		Short:        "Create the default admin and user accounts",
		Long:         "Creates one verified admin and one verified user account. Accounts whose email already exists are left untouched.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), []seedAccount{admin, user})
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&admin.email, "admin-email", "admin@admin.com", "admin account email")
	flags.StringVar(&admin.password, "admin-password", "admin123", "admin account password")
	flags.StringVar(&user.email, "user-email", "user@user.com", "user account email")
	flags.StringVar(&user.password, "user-password", "user123", "user account password")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, accounts []seedAccount) error {
	var (
		accountUC usecase.AccountUsecase
		logger    *slog.Logger
	)

	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			config.New,
			logs.New,
			postgres.New,
			postgres.NewRepositoryFactory,
			postgres.NewTransactionManager,
			auth.NewBcryptHasher,
			impl.NewAccountService,
		),
		fx.Populate(&accountUC, &logger),
	)

	startCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return errors.Wrap(err, "failed to start seeder")
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lifecycle.DefaultTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	for _, account := range accounts {
		output, err := accountUC.EnsureAccount(ctx, &usecase.EnsureAccountInput{
			Name:     account.name,
			Email:    account.email,
			Password: account.password,
			Role:     account.role,
			Verified: true,
		})
		if err != nil {
			logger.Error("Failed to seed account", slog.String("email", account.email), slog.Any("error", err))

			return errors.Wrapf(err, "seed %s", account.email)
		}

		status := "exists"
		if output.Created {
			status = "created"
		}
		fmt.Printf("%-7s %-5s %s\n", status, output.Account.Role, output.Account.Email)
	}

	return nil
}
