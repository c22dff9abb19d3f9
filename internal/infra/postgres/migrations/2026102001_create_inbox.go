package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 2026102001_create_inbox.sql
var createInboxSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createInboxSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, table := range []string{"user_notifications", "user_events"} {
				if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS ?", bun.Ident(table)); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
