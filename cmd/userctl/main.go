// Command userctl runs operator tasks against the user store.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/geocoder89/userapi/internal/app"
	"github.com/geocoder89/userapi/internal/config"
	"github.com/geocoder89/userapi/internal/db"
	"github.com/geocoder89/userapi/internal/observability"
	"github.com/geocoder89/userapi/internal/security"
	"github.com/geocoder89/userapi/internal/service"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "userctl",
		Short:         "Operator tasks for the user API: schema migrations and admin bootstrap.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)

	root.AddCommand(newMigrateCmd(), newCreateAdminCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations for the configured DB_DRIVER.",
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(ctx context.Context, m migrator) error {
				n, err := m.up(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
				return nil
			})
		},
	})

	migrate.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(ctx context.Context, m migrator) error {
				v, err := m.down(ctx)
				if err != nil {
					return err
				}
				if v == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %d\n", v)
				return nil
			})
		},
	})

	return migrate
}

type migrator struct {
	up   func(ctx context.Context) (int, error)
	down func(ctx context.Context) (int, error)
}

func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m migrator) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	switch cfg.DB.Driver {
	case "sqlite":
		d, err := sql.Open("sqlite3", cfg.DB.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer d.Close()
		d.SetMaxOpenConns(1)

		return fn(ctx, migrator{
			up:   func(ctx context.Context) (int, error) { return db.MigrateSQLite(ctx, d) },
			down: func(ctx context.Context) (int, error) { return db.RollbackSQLite(ctx, d) },
		})
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxConns)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		return fn(ctx, migrator{
			up:   func(ctx context.Context) (int, error) { return db.MigratePostgres(ctx, pool) },
			down: func(ctx context.Context) (int, error) { return db.RollbackPostgres(ctx, pool) },
		})
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", cfg.DB.Driver)
	}
}

func newCreateAdminCmd() *cobra.Command {
	var seed service.AdminSeed

	cmd := &cobra.Command{
		Use:     "create-admin",
		Short:   "Create an admin account unless one with that email exists.",
		Example: "userctl create-admin --email root@example.com --password 'Secret1'",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if seed.Email == "" || seed.Password == "" {
				return errors.New("--email and --password are required")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			log := observability.NewLogger(cfg.Env)

			store, _, closeStore, err := app.OpenStore(ctx, cfg.DB, nil)
			if err != nil {
				return err
			}
			defer closeStore()

			engine := service.NewQueryEngine(store, nil, log)
			users := service.NewUserService(store, security.NewHasher(), engine, nil, log)

			created, err := users.EnsureAdmin(ctx, seed)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "account %s already exists\n", seed.Email)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", seed.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&seed.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&seed.Username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&seed.Password, "password", "", "admin password")

	return cmd
}
