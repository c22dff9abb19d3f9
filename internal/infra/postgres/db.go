package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"hello-world-api/internal/app"
	"hello-world-api/internal/domain"
	"hello-world-api/internal/infra/postgres/migrations"
)

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

// Open connects bun to the database at dsn.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Migrate applies every pending schema migration and returns the names applied.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	var applied []string
	for _, m := range group.Migrations {
		applied = append(applied, m.Name)
	}
	return applied, nil
}

// Rollback reverts the most recently applied migration group.
func Rollback(ctx context.Context, db *bun.DB) ([]string, error) {
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	group, err := migrator.Rollback(ctx)
	if err != nil {
		return nil, fmt.Errorf("rollback migrations: %w", err)
	}
	var reverted []string
	for _, m := range group.Migrations {
		reverted = append(reverted, m.Name)
	}
	return reverted, nil
}

// NewStore wires every repository onto db. Question content is read through
// pool so scoring does not go through the ORM.
func NewStore(db *bun.DB, pool *pgxpool.Pool) *app.Store {
	return &app.Store{
		Users:          userTable{table: newTable[domain.User](db)},
		Sessions:       newTable[domain.Session](db),
		Preferences:    newTable[domain.Preference](db),
		Courses:        newTable[domain.Course](db),
		Categories:     newTable[domain.CourseCategory](db),
		Topics:         newTable[domain.Topic](db),
		Resources:      newTable[domain.TopicResource](db),
		Enrollments:    newTable[domain.Enrollment](db),
		Reads:          newTable[domain.ResourceRead](db),
		Quizzes:        newTable[domain.Quiz](db),
		Questions:      newTable[domain.QuizQuestion](db),
		Answers:        newTable[domain.Answer](db),
		Attempts:       newTable[domain.Attempt](db),
		Events:         newTable[domain.Event](db),
		Notifications:  newTable[domain.Notification](db),
		QuestionReader: NewQuestionReader(pool),
		Tx:             txRunner{db: db},
	}
}

// translate maps driver errors onto the storage-agnostic sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrRecordNotFound
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case codeUniqueViolation, codeExclusionViolation:
			return fmt.Errorf("%w: %s", domain.ErrDuplicateRecord, pgErr.Field('n'))
		}
	}
	return err
}
