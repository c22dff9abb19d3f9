package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"hello-world-api/internal/app"
	"hello-world-api/internal/domain"
)

func TestRecordAnswerIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.topicQuestions[0]

	if _, err := f.service.RecordAnswer(ctx, f.user, f.topicRef, q.ID, []int{0}); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if _, err := f.service.RecordAnswer(ctx, f.user, f.topicRef, q.ID, []int{2, 1}); err != nil {
		t.Fatalf("second answer: %v", err)
	}

	answers, err := f.store.Answers.Find(ctx, app.Eq("user_id", f.user.ID), app.Eq("question_id", q.ID))
	if err != nil {
		t.Fatalf("find answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("expected exactly one stored answer, got %d", len(answers))
	}
	got := answers[0].ChosenAnswersIndex
	if len(got) != 2 || got["0"] != 2 || got["1"] != 1 {
		t.Fatalf("expected latest payload {0:2 1:1}, got %v", got)
	}
}

func TestRecordEmptyAnswerStoresNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	answer, err := f.service.RecordAnswer(ctx, f.user, f.topicRef, f.topicQuestions[0].ID, nil)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if answer != nil {
		t.Fatalf("expected nil answer, got %+v", answer)
	}
	if n, _ := f.store.Answers.Count(ctx); n != 0 {
		t.Fatalf("expected no stored answers, got %d", n)
	}
	if _, err := f.service.Answer(ctx, f.user, f.topicRef, f.topicQuestions[0].ID); !errors.Is(err, domain.ErrAnswerNotFound) {
		t.Fatalf("expected answer not found, got %v", err)
	}
}

func TestConcurrentSubmitRecordsOneAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Submit(ctx, f.user, f.topicRef)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrAlreadyAttempted):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || rejected != n-1 {
		t.Fatalf("expected 1 success and %d rejections, got %d and %d", n-1, succeeded, rejected)
	}
	count, _ := f.store.Attempts.Count(ctx, app.Eq("user_id", f.user.ID), app.Eq("quiz_id", f.topicQuiz.ID))
	if count != 1 {
		t.Fatalf("expected one ledger row, got %d", count)
	}
}

func TestTopicSubmitAwardsNoPoints(t *testing.T) {
	f := newFixture(t)
	f.answerThreeOfFive(t, f.topicRef, f.topicQuestions)

	results, err := f.service.Submit(context.Background(), f.user, f.topicRef)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if results.Score() != 3 {
		t.Fatalf("expected score 3, got %d", results.Score())
	}
	if got := f.points(t); got != 0 {
		t.Fatalf("expected points unchanged, got %d", got)
	}
}

func TestDailySubmitAwardsScoreAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := f.notifier.Subscribe(ctx)

	f.answerThreeOfFive(t, f.dailyRef, f.dailyQuestions)
	results, err := f.service.Submit(ctx, f.user, f.dailyRef)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if results.Score() != 3 {
		t.Fatalf("expected score 3, got %d", results.Score())
	}
	if got := f.points(t); got != 3 {
		t.Fatalf("expected points 3, got %d", got)
	}

	select {
	case <-events:
	default:
		t.Fatalf("expected leaderboard change event")
	}

	inbox, err := f.store.Notifications.Find(ctx, app.Eq("user_id", f.user.ID))
	if err != nil || len(inbox) != 1 {
		t.Fatalf("expected one notification, got %d (%v)", len(inbox), err)
	}
	if inbox[0].Title != "Daily Quiz Completed" || !inbox[0].NotifiedAt.Equal(testNow) {
		t.Fatalf("unexpected notification %+v", inbox[0])
	}
}

func TestSubmitMarksAttemptRegardlessOfScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	results, err := f.service.Submit(ctx, f.user, f.dailyRef)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if results.Score() != 0 {
		t.Fatalf("expected zero score with no answers, got %d", results.Score())
	}
	if got := f.points(t); got != 0 {
		t.Fatalf("expected no points, got %d", got)
	}

	_, err = f.service.Submit(ctx, f.user, f.dailyRef)
	var derr *domain.Error
	if !errors.As(err, &derr) || !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected already attempted, got %v", err)
	}
	if derr.Message != "You have Already Attempted the Daily Quiz" {
		t.Fatalf("unexpected message %q", derr.Message)
	}
}

func TestAttemptBlocksReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Submit(ctx, f.user, f.topicRef); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := f.service.Questions(ctx, f.user, f.topicRef); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("questions: expected already attempted, got %v", err)
	}
	if _, err := f.service.Question(ctx, f.user, f.topicRef, f.topicQuestions[0].ID); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("question: expected already attempted, got %v", err)
	}
	if _, err := f.service.Answer(ctx, f.user, f.topicRef, f.topicQuestions[0].ID); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("answer: expected already attempted, got %v", err)
	}
	if _, err := f.service.RecordAnswer(ctx, f.user, f.topicRef, f.topicQuestions[0].ID, []int{1}); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("record answer: expected already attempted, got %v", err)
	}
}

func TestResultsRequireAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Results(ctx, f.user, f.topicRef); !errors.Is(err, domain.ErrNotAttempted) {
		t.Fatalf("expected not attempted, got %v", err)
	}

	f.answerThreeOfFive(t, f.topicRef, f.topicQuestions)
	submitted, err := f.service.Submit(ctx, f.user, f.topicRef)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	results, err := f.service.Results(ctx, f.user, f.topicRef)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.Score() != submitted.Score() || len(results) != 5 {
		t.Fatalf("expected recomputed results to match submission, got %d/%d", results.Score(), len(results))
	}
}

func TestQuestionsHideAnswerKey(t *testing.T) {
	f := newFixture(t)

	view, err := f.service.Questions(context.Background(), f.user, f.topicRef)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(view.Questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(view.Questions))
	}
	if view.Quiz.ID != f.topicQuiz.ID {
		t.Fatalf("expected topic quiz, got %d", view.Quiz.ID)
	}
}

func TestGateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Questions(ctx, f.user, app.TopicQuizRef("rust", "variables")); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Fatalf("expected course not found, got %v", err)
	}
	if _, err := f.service.Questions(ctx, f.user, app.TopicQuizRef("python", "loops")); !errors.Is(err, domain.ErrTopicNotFound) {
		t.Fatalf("expected topic not found, got %v", err)
	}
	if _, err := f.service.Question(ctx, f.user, f.topicRef, 9999); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	// A question of another quiz is not reachable through this one.
	if _, err := f.service.Question(ctx, f.user, f.topicRef, f.dailyQuestions[0].ID); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found for foreign question, got %v", err)
	}

	stranger := &domain.User{Username: "bob"}
	if err := f.store.Users.Create(ctx, stranger); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := f.service.Questions(ctx, stranger, f.topicRef); !errors.Is(err, domain.ErrNotEnrolled) {
		t.Fatalf("expected not enrolled, got %v", err)
	}
	// The daily quiz needs no enrolment.
	if _, err := f.service.Questions(ctx, stranger, f.dailyRef); err != nil {
		t.Fatalf("daily questions: %v", err)
	}
}

func TestDailyStatsScoresEveryAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.answerThreeOfFive(t, f.dailyRef, f.dailyQuestions)
	if _, err := f.service.Submit(ctx, f.user, f.dailyRef); err != nil {
		t.Fatalf("submit: %v", err)
	}
	bob := &domain.User{Username: "bob"}
	_ = f.store.Users.Create(ctx, bob)
	if _, err := f.service.Submit(ctx, bob, f.dailyRef); err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	stats, err := f.service.DailyStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAttempts != 2 || stats.TotalQuestions != 5 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if stats.Users[f.user.ID].Score != 3 || stats.Users[bob.ID].Score != 0 {
		t.Fatalf("unexpected scores %+v", stats.Users)
	}
}

func TestAnswersRacingSubmitNeverChangeTheScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.answerThreeOfFive(t, f.dailyRef, f.dailyQuestions)
	late := f.dailyQuestions[4]

	var (
		wg        sync.WaitGroup
		submitted app.Results
		submitErr error
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.RecordAnswer(ctx, f.user, f.dailyRef, late.ID, []int{1})
			if err != nil && !errors.Is(err, domain.ErrAlreadyAttempted) {
				t.Errorf("unexpected answer error: %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		submitted, submitErr = f.service.Submit(ctx, f.user, f.dailyRef)
	}()
	wg.Wait()

	if submitErr != nil {
		t.Fatalf("submit: %v", submitErr)
	}
	results, err := f.service.Results(ctx, f.user, f.dailyRef)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.Score() != submitted.Score() || f.points(t) != submitted.Score() {
		t.Fatalf("stored answers moved after submit: submitted %d, results %d, points %d",
			submitted.Score(), results.Score(), f.points(t))
	}
	if _, err := f.service.RecordAnswer(ctx, f.user, f.dailyRef, late.ID, []int{0}); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected answers refused after submit, got %v", err)
	}
}
