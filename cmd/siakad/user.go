package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/siakad-api/internal/models"
	"github.com/noah-isme/siakad-api/internal/repository"
	"github.com/noah-isme/siakad-api/internal/service"
	"github.com/noah-isme/siakad-api/pkg/config"
	"github.com/noah-isme/siakad-api/pkg/database"
	"github.com/noah-isme/siakad-api/pkg/logger"
)

func newCreateUserCommand() *cobra.Command {
	var req service.CreateUserRequest
	var role string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Provision a login account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logr.Sync() //nolint:errcheck

			ctx := context.Background()
			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			req.Role = models.UserRole(strings.ToUpper(role))
			users := service.NewUserService(repository.NewUserRepository(db), nil, logr)
			user, err := users.Create(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Email, "email", "", "Login email")
	f.StringVar(&req.FullName, "name", "", "Full name")
	f.StringVar(&req.Password, "password", "", "Initial password (min 8 characters)")
	f.StringVar(&role, "role", string(models.RoleAdmin), "ADMIN, LECTURER or STUDENT")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
