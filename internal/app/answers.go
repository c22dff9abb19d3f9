package app

import (
	"context"
	"errors"
	"strconv"
	"time"

	"hello-world-api/internal/domain"
)

// AnswerRecorder keeps one answer row per (user, quiz, question) and
// overwrites it on every resubmission.
type AnswerRecorder struct {
	answers Repository[domain.Answer]
	now     func() time.Time
}

func NewAnswerRecorder(answers Repository[domain.Answer], now func() time.Time) *AnswerRecorder {
	return &AnswerRecorder{answers: answers, now: now}
}

// ChosenIndex keys chosen choices by their position in the list.
func ChosenIndex(chosen []int) domain.AnswerIndex {
	index := make(domain.AnswerIndex, len(chosen))
	for i, choice := range chosen {
		index[strconv.Itoa(i)] = choice
	}
	return index
}

// RecordAnswer upserts the user's choices. An empty list stores nothing and
// returns a nil answer.
func (r *AnswerRecorder) RecordAnswer(ctx context.Context, userID, quizID, questionID int64, chosen []int) (*domain.Answer, error) {
	if len(chosen) == 0 {
		return nil, nil
	}
	index := ChosenIndex(chosen)
	now := r.now()

	existing, err := r.find(ctx, userID, quizID, questionID)
	switch {
	case err == nil:
		return r.overwrite(ctx, existing, index, now)
	case !errors.Is(err, domain.ErrRecordNotFound):
		return nil, domain.Internal("load answer", err)
	}

	answer := &domain.Answer{
		UserID:             userID,
		QuizID:             quizID,
		QuestionID:         questionID,
		ChosenAnswersIndex: index,
		AnsweredAt:         now,
		ModifiedAt:         now,
	}
	err = r.answers.Create(ctx, answer)
	if err == nil {
		return answer, nil
	}
	if !errors.Is(err, domain.ErrDuplicateRecord) {
		return nil, domain.Internal("create answer", err)
	}

	// A concurrent request inserted first; fall back to updating its row.
	existing, err = r.find(ctx, userID, quizID, questionID)
	if err != nil {
		return nil, domain.Internal("load answer", err)
	}
	return r.overwrite(ctx, existing, index, now)
}

// Answer returns the stored answer or domain.ErrAnswerNotFound.
func (r *AnswerRecorder) Answer(ctx context.Context, userID, quizID, questionID int64) (*domain.Answer, error) {
	answer, err := r.find(ctx, userID, quizID, questionID)
	if err != nil {
		return nil, notFound(err, domain.ErrAnswerNotFound, "load answer")
	}
	return answer, nil
}

// Answers returns every answer the user stored for quizID.
func (r *AnswerRecorder) Answers(ctx context.Context, userID, quizID int64) ([]*domain.Answer, error) {
	answers, err := r.answers.Find(ctx, Eq("user_id", userID), Eq("quiz_id", quizID))
	if err != nil {
		return nil, domain.Internal("load answers", err)
	}
	return answers, nil
}

func (r *AnswerRecorder) find(ctx context.Context, userID, quizID, questionID int64) (*domain.Answer, error) {
	return r.answers.First(ctx, Eq("user_id", userID), Eq("quiz_id", quizID), Eq("question_id", questionID))
}

func (r *AnswerRecorder) overwrite(ctx context.Context, answer *domain.Answer, index domain.AnswerIndex, now time.Time) (*domain.Answer, error) {
	answer.ChosenAnswersIndex = index
	answer.ModifiedAt = now
	if err := r.answers.Update(ctx, answer); err != nil {
		return nil, domain.Internal("update answer", err)
	}
	return answer, nil
}
