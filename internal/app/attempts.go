package app

import (
	"context"
	"errors"
	"time"

	"hello-world-api/internal/domain"
)

// AttemptLedger records completed quizzes. HasAttempted is a fast path;
// the storage unique index on (user_id, quiz_id) is what guarantees a single
// attempt when submissions race.
type AttemptLedger struct {
	attempts Repository[domain.Attempt]
}

func NewAttemptLedger(attempts Repository[domain.Attempt]) *AttemptLedger {
	return &AttemptLedger{attempts: attempts}
}

func (l *AttemptLedger) HasAttempted(ctx context.Context, userID, quizID int64) (bool, error) {
	n, err := l.attempts.Count(ctx, Eq("user_id", userID), Eq("quiz_id", quizID))
	if err != nil {
		return false, domain.Internal("check attempt", err)
	}
	return n > 0, nil
}

// RecordAttempt creates the ledger row, returning domain.ErrAlreadyAttempted
// if one already exists.
func (l *AttemptLedger) RecordAttempt(ctx context.Context, userID, quizID int64, startedAt, submittedAt time.Time) (*domain.Attempt, error) {
	attempt := &domain.Attempt{
		UserID:      userID,
		QuizID:      quizID,
		StartedAt:   startedAt,
		SubmittedAt: submittedAt,
	}
	if err := l.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, domain.ErrDuplicateRecord) {
			return nil, domain.ErrAlreadyAttempted
		}
		return nil, domain.Internal("record attempt", err)
	}
	return attempt, nil
}
