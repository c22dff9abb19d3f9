package app_test

import (
	"context"
	"testing"
	"time"

	"hello-world-api/internal/app"
	"hello-world-api/internal/domain"
	"hello-world-api/internal/infra/memory"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func cheapHasher() *app.Hasher {
	return app.NewHasher(app.HasherParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
}

// fiveQuestions returns questions whose only correct choice is 1.
func fiveQuestions() []app.QuestionFixture {
	out := make([]app.QuestionFixture, 5)
	for i := range out {
		out[i] = app.QuestionFixture{
			Kind:               domain.QuestionSingle,
			Question:           "question",
			Answers:            []string{"a", "b", "c"},
			CorrectAnswerIndex: domain.AnswerIndex{"0": 1},
		}
	}
	return out
}

type fixture struct {
	store    *app.Store
	notifier *memory.Notifier
	service  *app.QuizService
	user     *domain.User

	topicRef app.QuizRef
	dailyRef app.QuizRef

	topicQuiz      *domain.Quiz
	dailyQuiz      *domain.Quiz
	topicQuestions []*domain.QuizQuestion
	dailyQuestions []*domain.QuizQuestion
}

// newFixture seeds one enrolled user, a course with a five question topic
// quiz, and a five question daily quiz open at testNow.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	fx := app.Fixtures{
		Courses: []app.CourseFixture{{
			Name: "python",
			Categories: []app.CategoryFixture{{
				Name: "basics",
				Topics: []app.TopicFixture{{
					Name:     "variables",
					Resource: &app.ResourceFixture{Name: "intro", Content: map[string]any{"body": "x = 1"}},
					Quiz:     &app.QuizFixture{Name: "variables-quiz", Questions: fiveQuestions()},
				}},
			}},
		}},
		DailyQuizzes: []app.DailyQuizFixture{{
			QuizFixture: app.QuizFixture{Name: "daily", Questions: fiveQuestions()},
			OpensAt:     testNow.Add(-time.Hour),
			ClosesAt:    testNow.Add(time.Hour),
		}},
	}
	if _, err := app.NewSeeder(store, nil).Seed(ctx, fx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	user := &domain.User{Username: "alice", DisplayName: "alice"}
	if err := store.Users.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	course, err := store.Courses.First(ctx, app.Eq("name", "python"))
	if err != nil {
		t.Fatalf("load course: %v", err)
	}
	if err := store.Enrollments.Create(ctx, &domain.Enrollment{UserID: user.ID, CourseID: course.ID}); err != nil {
		t.Fatalf("enrol: %v", err)
	}

	topicQuiz, err := store.Quizzes.First(ctx, app.Eq("kind", domain.QuizTopic))
	if err != nil {
		t.Fatalf("load topic quiz: %v", err)
	}
	dailyQuiz, err := store.Quizzes.First(ctx, app.Eq("kind", domain.QuizDaily))
	if err != nil {
		t.Fatalf("load daily quiz: %v", err)
	}
	topicQuestions, _ := store.QuestionReader.QuizQuestions(ctx, topicQuiz.ID)
	dailyQuestions, _ := store.QuestionReader.QuizQuestions(ctx, dailyQuiz.ID)

	notifier := memory.NewNotifier()
	return &fixture{
		store:          store,
		notifier:       notifier,
		service:        app.NewQuizServiceWithClock(store, notifier, nil, nil, func() time.Time { return testNow }),
		user:           user,
		topicRef:       app.TopicQuizRef("python", "variables"),
		dailyRef:       app.DailyQuizRef(),
		topicQuiz:      topicQuiz,
		dailyQuiz:      dailyQuiz,
		topicQuestions: topicQuestions,
		dailyQuestions: dailyQuestions,
	}
}

// answerThreeOfFive answers the first three questions correctly and the
// remaining two wrongly.
func (f *fixture) answerThreeOfFive(t *testing.T, ref app.QuizRef, questions []*domain.QuizQuestion) {
	t.Helper()
	for i, q := range questions {
		choice := 1
		if i >= 3 {
			choice = 0
		}
		if _, err := f.service.RecordAnswer(context.Background(), f.user, ref, q.ID, []int{choice}); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}
}

func (f *fixture) points(t *testing.T) int {
	t.Helper()
	u, err := f.store.Users.Get(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return u.Points
}
