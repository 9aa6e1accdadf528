package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rl1809/medstore/internal/adapter/handler"
	"github.com/rl1809/medstore/internal/core/domain"
)

func newTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is required")
			}

			r := domain.Role(role)
			switch r {
			case domain.RoleCustomer, domain.RoleStaff, domain.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			auth := handler.NewAuthenticator(cfg.Auth.JWTSecret, zap.NewNop())
			token, err := auth.Issue(domain.Identity{UserID: userID, Email: email, Role: r}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleCustomer), "CUSTOMER, STAFF or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
