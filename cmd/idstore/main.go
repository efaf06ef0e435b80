// Command idstore runs the identity store server and its operator tooling.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"idstore/internal/app"
	"idstore/internal/config"
	"idstore/internal/credential"
	internaldb "idstore/internal/db"
	"idstore/internal/db/repository"
	"idstore/internal/domain"
	"idstore/internal/permission"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "idstore",
		Short:         "Identity store server and tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newMigrateCmd(&configPath))
	root.AddCommand(newAdminCmd(&configPath))
	return root
}

func loadConfigAndLogger(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	return cfg, logger, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfigAndLogger(*configPath)
			if err != nil {
				return err
			}

			db, err := internaldb.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := internaldb.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			a, err := app.New(app.Deps{
				Cfg:    cfg,
				DB:     db,
				Logger: logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfigAndLogger(*configPath)
			if err != nil {
				return err
			}
			db, err := internaldb.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := internaldb.Migrate(db); err != nil {
				return err
			}
			logger.Info("migrations applied", "db", cfg.DBPath)
			return nil
		},
	}
}

func newAdminCmd(configPath *string) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin principals",
	}
	adminCmd.AddCommand(newAdminCreateCmd(configPath))
	return adminCmd
}

// newAdminCreateCmd bootstraps the first admin directly against the
// database. It bypasses the policy engine: there is no acting principal yet,
// and the server's first admin has to come from somewhere.
func newAdminCreateCmd(configPath *string) *cobra.Command {
	var (
		name        string
		displayName string
		emails      []string
		perms       []string
		password    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfigAndLogger(*configPath)
			if err != nil {
				return err
			}

			parsed := make([]permission.Permission, 0, len(perms))
			for _, raw := range perms {
				p, err := permission.Parse(strings.TrimSpace(raw))
				if err != nil {
					return err
				}
				parsed = append(parsed, p)
			}
			if len(parsed) == 0 {
				parsed = permission.All
			}

			if password == "" {
				password, err = promptPassword()
				if err != nil {
					return err
				}
			}

			db, err := internaldb.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			if err := internaldb.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			creds := credential.NewService(cfg.PBKDF2Iterations)
			cred, err := creds.Hash(password)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			principal := &domain.Principal{
				ID:          domain.NewID(),
				Kind:        domain.KindAdmin,
				Name:        name,
				DisplayName: displayName,
				Emails:      emails,
				Credential:  cred,
				Permissions: permission.NewSet(parsed...),
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := principal.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			store := repository.NewStore(db)
			tx, err := store.Begin(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback() }()
			if err := tx.Principals().Create(ctx, principal); err != nil {
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}

			logger.Info("admin created",
				"id", principal.ID, "name", principal.Name,
				"permissions", principal.Permissions.Format())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "admin account name (required)")
	flags.StringVar(&displayName, "display-name", "", "display name")
	flags.StringSliceVar(&emails, "email", nil, "email address (repeatable, required)")
	flags.StringSliceVar(&perms, "permission", nil, "permission to hold (repeatable, default all)")
	flags.StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	flags.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ToLower(name))
	})
	return cmd
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(first), nil
}
