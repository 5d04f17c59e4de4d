package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/rpm/rpm/internal/config"
	"github.com/rpm/rpm/internal/domain/identity"
	"github.com/rpm/rpm/internal/domain/patient"
	"github.com/rpm/rpm/internal/domain/rules"
	"github.com/rpm/rpm/internal/platform/db"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data",
	}

	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Insert the default rule catalogue, or a catalogue file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				logger := newLogger(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
				store := rules.NewStore(rules.NewRepoPG(pool), logger)

				var n int
				var err error
				if file == "" {
					n, err = store.SeedDefaults(ctx)
				} else {
					var catalogue []rules.Rule
					if catalogue, err = rules.LoadCatalogue(file); err != nil {
						return err
					}
					n, err = store.Import(ctx, catalogue)
				}
				if err != nil {
					return err
				}
				fmt.Printf("Inserted %d rule(s).\n", n)
				return nil
			})
		},
	}
	rulesCmd.Flags().String("file", "", "YAML rule catalogue (defaults to the built-in catalogue)")
	cmd.AddCommand(rulesCmd)

	patientsCmd := &cobra.Command{
		Use:   "patients",
		Short: "Insert patients from a YAML seed file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			seed, err := patient.LoadSeedFile(file)
			if err != nil {
				return err
			}
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				logger := newLogger(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
				n, err := patient.NewService(patient.NewRepoPG(pool), logger).Seed(ctx, seed)
				if err != nil {
					return err
				}
				fmt.Printf("Inserted %d of %d patient(s).\n", n, len(seed))
				return nil
			})
		},
	}
	patientsCmd.Flags().String("file", "data/patients.yaml", "YAML patient seed file")
	cmd.AddCommand(patientsCmd)

	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Create the demo admin, clinician and simulator accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				logger := newLogger(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
				// seeding never issues tokens
				svc := identity.NewService(identity.NewRepoPG(pool), nil, logger)
				n, err := svc.Seed(ctx, identity.DemoUsers())
				if err != nil {
					return err
				}
				fmt.Printf("Created %d user(s).\n", n)
				return nil
			})
		},
	}
	cmd.AddCommand(usersCmd)

	return cmd
}

func withPool(fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}
