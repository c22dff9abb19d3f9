package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 2026101901_create_schema.sql
var createSchemaSQL string

// Migrations is the ordered set applied by the migrate and start commands.
var Migrations = migrate.NewMigrations()

// dropOrder lists tables children first.
var dropOrder = []string{
	"user_topic_quizzes",
	"user_quiz_answers",
	"quiz_questions",
	"quizzes",
	"user_topic_resources",
	"user_courses",
	"topic_resources",
	"category_topics",
	"course_categories",
	"courses",
	"user_preferences",
	"sessions",
	"users",
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createSchemaSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, table := range dropOrder {
				if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS ?", bun.Ident(table)); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
