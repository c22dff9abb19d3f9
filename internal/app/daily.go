package app

import (
	"context"
	"time"

	"hello-world-api/internal/domain"
)

// DailySelector finds the daily quiz whose window covers an instant.
type DailySelector struct {
	quizzes Repository[domain.Quiz]
}

func NewDailySelector(quizzes Repository[domain.Quiz]) *DailySelector {
	return &DailySelector{quizzes: quizzes}
}

// GetActive returns the daily quiz open at now, both window ends inclusive.
// No match is domain.ErrDailyQuizNotFound; more than one is
// domain.ErrDailyQuizConflict.
func (d *DailySelector) GetActive(ctx context.Context, now time.Time) (*domain.Quiz, error) {
	quizzes, err := d.quizzes.Find(ctx,
		Eq("kind", domain.QuizDaily),
		Where("opens_at", OpLte, now),
		Where("closes_at", OpGte, now),
		Limit(2),
	)
	if err != nil {
		return nil, domain.Internal("load daily quiz", err)
	}
	switch len(quizzes) {
	case 0:
		return nil, domain.ErrDailyQuizNotFound
	case 1:
		return quizzes[0], nil
	}
	return nil, domain.ErrDailyQuizConflict
}

// CheckWindow rejects a new daily window that is empty or overlaps an
// existing daily quiz.
func (d *DailySelector) CheckWindow(ctx context.Context, opensAt, closesAt time.Time) error {
	if !closesAt.After(opensAt) {
		return domain.Validation("Daily Quiz Must Close After it Opens")
	}
	n, err := d.quizzes.Count(ctx,
		Eq("kind", domain.QuizDaily),
		Where("opens_at", OpLte, closesAt),
		Where("closes_at", OpGte, opensAt),
	)
	if err != nil {
		return domain.Internal("check daily window", err)
	}
	if n > 0 {
		return domain.ErrWindowOverlap
	}
	return nil
}
