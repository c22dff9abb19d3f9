package cli

import (
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hello-world-api/internal/app"
	"hello-world-api/internal/config"
	"hello-world-api/internal/infra/postgres"
	"hello-world-api/internal/logging"
)

// NewSeedCmd loads course and quiz fixtures into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load courses, topics and quizzes from a YAML fixture file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return errNoPostgres
			}
			log, err := logging.New(cfg.Log, cfg.Server.Debug)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			fx, err := loadFixtures(file)
			if err != nil {
				return err
			}

			db := postgres.Open(cfg.Postgres.URL)
			defer db.Close()
			if _, err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if _, err := app.NewSeeder(postgres.NewStore(db, pool), log).Seed(ctx, fx); err != nil {
				return fmt.Errorf("seed %s: %w", file, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/fixtures.yaml", "YAML fixture file")
	return cmd
}

func loadFixtures(path string) (app.Fixtures, error) {
	var fx app.Fixtures
	data, err := os.ReadFile(path)
	if err != nil {
		return fx, err
	}
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return fx, fmt.Errorf("parse %s: %w", path, err)
	}
	return fx, nil
}
