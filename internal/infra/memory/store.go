package memory

import (
	"context"
	"sync"
	"time"

	"hello-world-api/internal/app"
	"hello-world-api/internal/domain"
)

type journalKey struct{}

// journal collects undo steps for the writes of one transaction.
type journal struct {
	mu   sync.Mutex
	undo []func()
}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(journalKey{}).(*journal)
	return j
}

func (j *journal) record(fn func()) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, fn)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// txRunner serializes transactions and undoes their writes on failure.
type txRunner struct {
	mu sync.Mutex
}

func (r *txRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if journalFrom(ctx) != nil {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

// Lock is satisfied by WithinTx, which already runs one transaction at a time.
func (r *txRunner) Lock(context.Context, string) error { return nil }

type userTable struct {
	*table[domain.User, *domain.User]
}

func (u userTable) AddPoints(ctx context.Context, userID int64, delta int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	row, ok := u.rows[userID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	prev := *row
	updated := *row
	updated.Points += delta
	u.rows[userID] = &updated
	journalFrom(ctx).record(func() {
		u.mu.Lock()
		u.rows[userID] = &prev
		u.mu.Unlock()
	})
	return nil
}

func (u userTable) UpdateProfile(ctx context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	prev, ok := u.rows[user.ID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	updated := *prev
	updated.DisplayName = user.DisplayName
	updated.Username = user.Username
	updated.Password = user.Password
	updated.Bio = user.Bio
	if u.clashLocked(&updated, user.ID) {
		return domain.ErrDuplicateRecord
	}
	u.rows[user.ID] = &updated
	*user = updated
	journalFrom(ctx).record(func() {
		u.mu.Lock()
		u.rows[user.ID] = prev
		u.mu.Unlock()
	})
	return nil
}

type questionReader struct {
	questions *table[domain.QuizQuestion, *domain.QuizQuestion]
}

func (r questionReader) QuizQuestions(ctx context.Context, quizID int64) ([]*domain.QuizQuestion, error) {
	return r.questions.Find(ctx, app.Eq("quiz_id", quizID))
}

func (r questionReader) QuizQuestion(ctx context.Context, quizID, questionID int64) (*domain.QuizQuestion, error) {
	return r.questions.First(ctx, app.Eq("quiz_id", quizID), app.Eq("id", questionID))
}

// NewStore builds an empty in-memory store with the same unique constraints
// and delete cascades as the Postgres schema.
func NewStore() *app.Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock is used by tests that need deterministic created_at values.
func NewStoreWithClock(now func() time.Time) *app.Store {
	users := newTable[domain.User](now, []string{"username"})
	sessions := newTable[domain.Session](now, []string{"token"})
	preferences := newTable[domain.Preference](now, []string{"user_id"})
	courses := newTable[domain.Course](now, []string{"name"})
	categories := newTable[domain.CourseCategory](now)
	topics := newTable[domain.Topic](now)
	resources := newTable[domain.TopicResource](now, []string{"topic_id"})
	enrollments := newTable[domain.Enrollment](now, []string{"user_id", "course_id"})
	reads := newTable[domain.ResourceRead](now, []string{"user_id", "resource_id"})
	quizzes := newTable[domain.Quiz](now, []string{"topic_id"})
	questions := newTable[domain.QuizQuestion](now)
	answers := newTable[domain.Answer](now, []string{"user_id", "quiz_id", "question_id"})
	attempts := newTable[domain.Attempt](now, []string{"user_id", "quiz_id"})
	events := newTable[domain.Event](now)
	notifications := newTable[domain.Notification](now)

	users.onDelete = append(users.onDelete,
		sessions.cascade("user_id"),
		preferences.cascade("user_id"),
		enrollments.cascade("user_id"),
		reads.cascade("user_id"),
		answers.cascade("user_id"),
		attempts.cascade("user_id"),
		events.cascade("user_id"),
		notifications.cascade("user_id"),
	)
	courses.onDelete = append(courses.onDelete, categories.cascade("course_id"), enrollments.cascade("course_id"))
	categories.onDelete = append(categories.onDelete, topics.cascade("category_id"))
	topics.onDelete = append(topics.onDelete, resources.cascade("topic_id"), quizzes.cascade("topic_id"))
	resources.onDelete = append(resources.onDelete, reads.cascade("resource_id"))
	quizzes.onDelete = append(quizzes.onDelete,
		questions.cascade("quiz_id"),
		answers.cascade("quiz_id"),
		attempts.cascade("quiz_id"),
	)
	questions.onDelete = append(questions.onDelete, answers.cascade("question_id"))

	return &app.Store{
		Users:          userTable{users},
		Sessions:       sessions,
		Preferences:    preferences,
		Courses:        courses,
		Categories:     categories,
		Topics:         topics,
		Resources:      resources,
		Enrollments:    enrollments,
		Reads:          reads,
		Quizzes:        quizzes,
		Questions:      questions,
		Answers:        answers,
		Attempts:       attempts,
		Events:         events,
		Notifications:  notifications,
		QuestionReader: questionReader{questions: questions},
		Tx:             &txRunner{},
	}
}
