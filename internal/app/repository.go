package app

import (
	"context"

	"hello-world-api/internal/domain"
)

// Op is a comparison operator usable in a Cond.
type Op string

const (
	OpEq  Op = "="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Valid reports whether op is one of the supported operators.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// Cond filters rows on a single column.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

// Order sorts rows on a single column.
type Order struct {
	Column string
	Desc   bool
}

// Query is the storage-agnostic form of a filtered read. Rows are returned
// by ascending id when no Order is given.
type Query struct {
	Conds []Cond
	Order []Order
	Limit int
}

type QueryOption func(*Query)

func Eq(column string, value any) QueryOption {
	return Where(column, OpEq, value)
}

func Where(column string, op Op, value any) QueryOption {
	return func(q *Query) {
		q.Conds = append(q.Conds, Cond{Column: column, Op: op, Value: value})
	}
}

func OrderBy(column string, desc bool) QueryOption {
	return func(q *Query) {
		q.Order = append(q.Order, Order{Column: column, Desc: desc})
	}
}

func Limit(n int) QueryOption {
	return func(q *Query) { q.Limit = n }
}

// BuildQuery applies opts to an empty Query.
func BuildQuery(opts ...QueryOption) Query {
	var q Query
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// Repository is the CRUD surface shared by every persisted entity. Get and
// First return domain.ErrRecordNotFound when nothing matches; Create and
// Update return domain.ErrDuplicateRecord when a unique constraint rejects
// the write.
type Repository[T any] interface {
	Create(ctx context.Context, entity *T) error
	Get(ctx context.Context, id int64) (*T, error)
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id int64) error
	First(ctx context.Context, opts ...QueryOption) (*T, error)
	Find(ctx context.Context, opts ...QueryOption) ([]*T, error)
	Count(ctx context.Context, opts ...QueryOption) (int, error)
	DeleteWhere(ctx context.Context, opts ...QueryOption) (int, error)
}

// UserRepository adds an atomic point increment so concurrent daily
// submissions never lose an update, and a profile write that leaves points
// untouched.
type UserRepository interface {
	Repository[domain.User]
	AddPoints(ctx context.Context, userID int64, delta int) error
	// UpdateProfile writes display name, username, password and bio, then
	// refreshes user from the stored row.
	UpdateProfile(ctx context.Context, user *domain.User) error
}

// QuestionReader loads question content for scoring and display.
type QuestionReader interface {
	QuizQuestions(ctx context.Context, quizID int64) ([]*domain.QuizQuestion, error)
	QuizQuestion(ctx context.Context, quizID, questionID int64) (*domain.QuizQuestion, error)
}

// Transactor runs fn so that every repository call made with the context it
// receives commits or rolls back together.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// Lock holds an exclusive lock on key until the transaction carried by
	// ctx ends.
	Lock(ctx context.Context, key string) error
}

// Store groups the repositories the use cases depend on.
type Store struct {
	Users         UserRepository
	Sessions      Repository[domain.Session]
	Preferences   Repository[domain.Preference]
	Courses       Repository[domain.Course]
	Categories    Repository[domain.CourseCategory]
	Topics        Repository[domain.Topic]
	Resources     Repository[domain.TopicResource]
	Enrollments   Repository[domain.Enrollment]
	Reads         Repository[domain.ResourceRead]
	Quizzes       Repository[domain.Quiz]
	Questions     Repository[domain.QuizQuestion]
	Answers       Repository[domain.Answer]
	Attempts      Repository[domain.Attempt]
	Events        Repository[domain.Event]
	Notifications Repository[domain.Notification]

	QuestionReader QuestionReader
	Tx             Transactor
}

// Observer receives domain events for instrumentation.
type Observer interface {
	TokenValidated(outcome string)
	QuizSubmitted(kind domain.QuizKind, score int)
}

type nopObserver struct{}

func (nopObserver) TokenValidated(string)               {}
func (nopObserver) QuizSubmitted(domain.QuizKind, int) {}
