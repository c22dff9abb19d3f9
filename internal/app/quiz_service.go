package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hello-world-api/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// statsConcurrency bounds the per-user scoring fan-out in DailyStats.
const statsConcurrency = 8

// QuizView is a quiz with its questions stripped of the answer key.
type QuizView struct {
	*domain.Quiz
	Questions []domain.QuestionView `json:"questions"`
}

// UserScore is one attempt in the daily quiz stats.
type UserScore struct {
	User  *domain.User `json:"user"`
	Score int          `json:"score"`
}

type DailyStats struct {
	TotalAttempts  int                 `json:"total_attempts"`
	TotalQuestions int                 `json:"total_questions"`
	Users          map[int64]UserScore `json:"users"`
}

// QuizService contains the quiz taking use cases for topic and daily quizzes.
type QuizService struct {
	store    *Store
	gate     *Gate
	ledger   *AttemptLedger
	answers  *AnswerRecorder
	inbox    *InboxService
	notifier Notifier
	observer Observer
	log      *zap.Logger
	now      func() time.Time
}

func NewQuizService(store *Store, notifier Notifier, observer Observer, log *zap.Logger) *QuizService {
	return NewQuizServiceWithClock(store, notifier, observer, log, time.Now)
}

// NewQuizServiceWithClock is used by tests for deterministic daily windows.
func NewQuizServiceWithClock(store *Store, notifier Notifier, observer Observer, log *zap.Logger, now func() time.Time) *QuizService {
	if observer == nil {
		observer = nopObserver{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &QuizService{
		store:    store,
		gate:     NewGate(store, now),
		ledger:   NewAttemptLedger(store.Attempts),
		answers:  NewAnswerRecorder(store.Answers, now),
		inbox:    NewInboxService(store, now),
		notifier: notifier,
		observer: observer,
		log:      log,
		now:      now,
	}
}

// Gate exposes the capability pipeline to other services.
func (s *QuizService) Gate() *Gate { return s.gate }

// Questions lists the quiz's questions for a user who has not attempted it.
func (s *QuizService) Questions(ctx context.Context, user *domain.User, ref QuizRef) (*QuizView, error) {
	a, err := s.gate.Run(ctx, user, append(s.gate.Quiz(ref), s.gate.NotAttempted())...)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.QuestionReader.QuizQuestions(ctx, a.Quiz.ID)
	if err != nil {
		return nil, domain.Internal("load questions", err)
	}
	view := &QuizView{Quiz: a.Quiz, Questions: make([]domain.QuestionView, 0, len(questions))}
	for _, question := range questions {
		view.Questions = append(view.Questions, question.View())
	}
	return view, nil
}

func (s *QuizService) Question(ctx context.Context, user *domain.User, ref QuizRef, questionID int64) (domain.QuestionView, error) {
	a, err := s.gate.Run(ctx, user, s.questionChecks(ref, questionID)...)
	if err != nil {
		return domain.QuestionView{}, err
	}
	return a.Question.View(), nil
}

// Answer returns the user's stored answer to a question.
func (s *QuizService) Answer(ctx context.Context, user *domain.User, ref QuizRef, questionID int64) (*domain.Answer, error) {
	a, err := s.gate.Run(ctx, user, s.questionChecks(ref, questionID)...)
	if err != nil {
		return nil, err
	}
	return s.answers.Answer(ctx, user.ID, a.Quiz.ID, a.Question.ID)
}

// RecordAnswer stores the user's choices for a question. An empty choice
// list returns a nil answer. The attempt check and the write share the
// attempt lock with Submit, so no answer lands after a recorded attempt.
func (s *QuizService) RecordAnswer(ctx context.Context, user *domain.User, ref QuizRef, questionID int64, chosen []int) (*domain.Answer, error) {
	var answer *domain.Answer
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.gate.Run(ctx, user, s.questionChecks(ref, questionID)...)
		if err != nil {
			return err
		}
		if err := s.lockAttempt(ctx, user.ID, a.Quiz.ID); err != nil {
			return err
		}
		if err := s.gate.NotAttempted()(ctx, a); err != nil {
			return err
		}
		answer, err = s.answers.RecordAnswer(ctx, user.ID, a.Quiz.ID, a.Question.ID, chosen)
		return err
	})
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// Submit scores the user's answers and records the attempt. Daily quizzes
// also add the score to the user's points and post a notification in the
// same transaction.
func (s *QuizService) Submit(ctx context.Context, user *domain.User, ref QuizRef) (Results, error) {
	var (
		quiz    *domain.Quiz
		results Results
		score   int
	)
	now := s.now()
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.gate.Run(ctx, user, append(s.gate.Quiz(ref), s.gate.NotAttempted())...)
		if err != nil {
			return err
		}
		quiz = a.Quiz
		if err := s.lockAttempt(ctx, user.ID, quiz.ID); err != nil {
			return err
		}

		questions, answers, err := s.load(ctx, user.ID, quiz.ID)
		if err != nil {
			return err
		}
		results = Score(questions, answers)
		score = results.Score()

		startedAt := now
		for _, answer := range answers {
			if answer.AnsweredAt.Before(startedAt) {
				startedAt = answer.AnsweredAt
			}
		}
		if _, err := s.ledger.RecordAttempt(ctx, user.ID, quiz.ID, startedAt, now); err != nil {
			return err
		}
		if !quiz.IsDaily() || score == 0 {
			return nil
		}
		if err := s.store.Users.AddPoints(ctx, user.ID, score); err != nil {
			return domain.Internal("award points", err)
		}
		_, err = s.inbox.Notify(ctx, user.ID, "Daily Quiz Completed",
			fmt.Sprintf("You scored %d out of %d and earned %d points.", score, len(questions), score))
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyAttempted) && quiz != nil {
			return nil, alreadyAttempted(quiz)
		}
		return nil, err
	}

	s.observer.QuizSubmitted(quiz.Kind, score)
	if quiz.IsDaily() && score > 0 {
		user.Points += score
		if s.notifier != nil {
			if err := s.notifier.Publish(ctx); err != nil {
				s.log.Warn("publish leaderboard change", zap.Error(err))
			}
		}
	}
	return results, nil
}

// Results recomputes the outcome of an attempted quiz from stored answers.
func (s *QuizService) Results(ctx context.Context, user *domain.User, ref QuizRef) (Results, error) {
	a, err := s.gate.Run(ctx, user, append(s.gate.Quiz(ref), s.gate.Attempted())...)
	if err != nil {
		return nil, err
	}
	questions, answers, err := s.load(ctx, user.ID, a.Quiz.ID)
	if err != nil {
		return nil, err
	}
	return Score(questions, answers), nil
}

// DailyStats summarises every attempt on the open daily quiz.
func (s *QuizService) DailyStats(ctx context.Context) (*DailyStats, error) {
	a, err := s.gate.Run(ctx, nil, s.gate.ActiveDailyQuiz())
	if err != nil {
		return nil, err
	}
	quizID := a.Quiz.ID

	var (
		questions []*domain.QuizQuestion
		attempts  []*domain.Attempt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		questions, err = s.store.QuestionReader.QuizQuestions(gctx, quizID)
		return err
	})
	g.Go(func() error {
		var err error
		attempts, err = s.store.Attempts.Find(gctx, Eq("quiz_id", quizID))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.Internal("load daily stats", err)
	}

	stats := &DailyStats{
		TotalAttempts:  len(attempts),
		TotalQuestions: len(questions),
		Users:          make(map[int64]UserScore, len(attempts)),
	}

	var mu sync.Mutex
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for _, attempt := range attempts {
		attempt := attempt
		g.Go(func() error {
			user, err := s.store.Users.Get(gctx, attempt.UserID)
			if errors.Is(err, domain.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			answers, err := s.answers.Answers(gctx, attempt.UserID, quizID)
			if err != nil {
				return err
			}
			score := Score(questions, answers).Score()

			mu.Lock()
			stats.Users[user.ID] = UserScore{User: user, Score: score}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.Internal("score daily attempts", err)
	}
	return stats, nil
}

func (s *QuizService) questionChecks(ref QuizRef, questionID int64) []Check {
	return append(s.gate.Quiz(ref), s.gate.NotAttempted(), s.gate.Question(questionID))
}

// lockAttempt serializes answer writes and submission for one user and quiz.
func (s *QuizService) lockAttempt(ctx context.Context, userID, quizID int64) error {
	if err := s.store.Tx.Lock(ctx, fmt.Sprintf("attempt:%d:%d", userID, quizID)); err != nil {
		return domain.Internal("lock attempt", err)
	}
	return nil
}

// load reads the quiz questions and the user's answers concurrently.
func (s *QuizService) load(ctx context.Context, userID, quizID int64) ([]*domain.QuizQuestion, []*domain.Answer, error) {
	var (
		questions []*domain.QuizQuestion
		answers   []*domain.Answer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		questions, err = s.store.QuestionReader.QuizQuestions(gctx, quizID)
		return err
	})
	g.Go(func() error {
		var err error
		answers, err = s.answers.Answers(gctx, userID, quizID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, domain.Internal("load quiz state", err)
	}
	return questions, answers, nil
}
