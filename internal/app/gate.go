package app

import (
	"context"
	"errors"
	"time"

	"hello-world-api/internal/domain"
)

// QuizRef names the quiz a request targets: a topic quiz inside a course, or
// whichever daily quiz is currently open.
type QuizRef struct {
	Course string
	Topic  string
	Daily  bool
}

func TopicQuizRef(course, topic string) QuizRef {
	return QuizRef{Course: course, Topic: topic}
}

func DailyQuizRef() QuizRef {
	return QuizRef{Daily: true}
}

// Access accumulates what each Check resolved, so later checks and the
// caller can use it without reloading.
type Access struct {
	User     *domain.User
	Course   *domain.Course
	Topic    *domain.Topic
	Quiz     *domain.Quiz
	Question *domain.QuizQuestion
}

// Check is one capability test in a Gate pipeline.
type Check func(ctx context.Context, a *Access) error

// Gate resolves the course/topic/quiz chain and enforces enrolment and
// attempt state in one place for every quiz operation.
type Gate struct {
	store  *Store
	ledger *AttemptLedger
	daily  *DailySelector
	now    func() time.Time
}

func NewGate(store *Store, now func() time.Time) *Gate {
	return &Gate{
		store:  store,
		ledger: NewAttemptLedger(store.Attempts),
		daily:  NewDailySelector(store.Quizzes),
		now:    now,
	}
}

// Run applies checks in order and stops at the first failure.
func (g *Gate) Run(ctx context.Context, user *domain.User, checks ...Check) (*Access, error) {
	a := &Access{User: user}
	for _, check := range checks {
		if err := check(ctx, a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Quiz returns the checks that resolve ref to a quiz the user may see.
func (g *Gate) Quiz(ref QuizRef) []Check {
	if ref.Daily {
		return []Check{g.ActiveDailyQuiz()}
	}
	return []Check{g.Course(ref.Course), g.Enrolled(), g.Topic(ref.Topic), g.TopicQuiz()}
}

func (g *Gate) Course(name string) Check {
	return func(ctx context.Context, a *Access) error {
		course, err := g.store.Courses.First(ctx, Eq("name", name))
		if err != nil {
			return notFound(err, domain.ErrCourseNotFound, "load course")
		}
		a.Course = course
		return nil
	}
}

func (g *Gate) Enrolled() Check {
	return func(ctx context.Context, a *Access) error {
		n, err := g.store.Enrollments.Count(ctx, Eq("user_id", a.User.ID), Eq("course_id", a.Course.ID))
		if err != nil {
			return domain.Internal("check enrolment", err)
		}
		if n == 0 {
			return domain.ErrNotEnrolled
		}
		return nil
	}
}

// Topic resolves a topic by name among the categories of the resolved course.
func (g *Gate) Topic(name string) Check {
	return func(ctx context.Context, a *Access) error {
		categories, err := g.store.Categories.Find(ctx, Eq("course_id", a.Course.ID))
		if err != nil {
			return domain.Internal("load categories", err)
		}
		for _, category := range categories {
			topic, err := g.store.Topics.First(ctx, Eq("category_id", category.ID), Eq("name", name))
			if err == nil {
				a.Topic = topic
				return nil
			}
			if !errors.Is(err, domain.ErrRecordNotFound) {
				return domain.Internal("load topic", err)
			}
		}
		return domain.ErrTopicNotFound
	}
}

func (g *Gate) TopicQuiz() Check {
	return func(ctx context.Context, a *Access) error {
		quiz, err := g.store.Quizzes.First(ctx, Eq("topic_id", a.Topic.ID))
		if err != nil {
			return notFound(err, domain.ErrQuizNotFound, "load quiz")
		}
		a.Quiz = quiz
		return nil
	}
}

func (g *Gate) ActiveDailyQuiz() Check {
	return func(ctx context.Context, a *Access) error {
		quiz, err := g.daily.GetActive(ctx, g.now())
		if err != nil {
			return err
		}
		a.Quiz = quiz
		return nil
	}
}

// NotAttempted refuses access once the user has an attempt on the resolved quiz.
func (g *Gate) NotAttempted() Check {
	return func(ctx context.Context, a *Access) error {
		done, err := g.ledger.HasAttempted(ctx, a.User.ID, a.Quiz.ID)
		if err != nil {
			return err
		}
		if done {
			return alreadyAttempted(a.Quiz)
		}
		return nil
	}
}

// Attempted requires an attempt on the resolved quiz.
func (g *Gate) Attempted() Check {
	return func(ctx context.Context, a *Access) error {
		done, err := g.ledger.HasAttempted(ctx, a.User.ID, a.Quiz.ID)
		if err != nil {
			return err
		}
		if !done {
			if a.Quiz.IsDaily() {
				return domain.ErrNotAttempted.WithMessage("You have Not Attempted the Daily Quiz")
			}
			return domain.ErrNotAttempted
		}
		return nil
	}
}

func (g *Gate) Question(id int64) Check {
	return func(ctx context.Context, a *Access) error {
		question, err := g.store.QuestionReader.QuizQuestion(ctx, a.Quiz.ID, id)
		if err != nil {
			return notFound(err, domain.ErrQuestionNotFound, "load question")
		}
		a.Question = question
		return nil
	}
}

func alreadyAttempted(quiz *domain.Quiz) error {
	if quiz.IsDaily() {
		return domain.ErrAlreadyAttempted.WithMessage("You have Already Attempted the Daily Quiz")
	}
	return domain.ErrAlreadyAttempted
}

// notFound maps a repository miss to missing and anything else to an
// internal error.
func notFound(err error, missing *domain.Error, op string) error {
	if errors.Is(err, domain.ErrRecordNotFound) {
		return missing
	}
	return domain.Internal(op, err)
}
