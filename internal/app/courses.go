package app

import (
	"context"
	"errors"
	"time"

	"hello-world-api/internal/domain"
)

// MyCourses splits a user's enrolments by completion.
type MyCourses struct {
	Completed  []*domain.Course `json:"completed"`
	Incomplete []*domain.Course `json:"incomplete"`
}

// CourseService serves the course catalogue and enrolment.
type CourseService struct {
	store  *Store
	gate   *Gate
	ledger *AttemptLedger
	now    func() time.Time
}

func NewCourseService(store *Store, gate *Gate, now func() time.Time) *CourseService {
	return &CourseService{store: store, gate: gate, ledger: NewAttemptLedger(store.Attempts), now: now}
}

func (s *CourseService) ListCourses(ctx context.Context, withCategories, withTopics bool) ([]*domain.Course, error) {
	courses, err := s.store.Courses.Find(ctx)
	if err != nil {
		return nil, domain.Internal("list courses", err)
	}
	for _, course := range courses {
		if err := s.expand(ctx, course, withCategories, withTopics); err != nil {
			return nil, err
		}
	}
	return courses, nil
}

func (s *CourseService) GetCourse(ctx context.Context, name string, withCategories, withTopics bool) (*domain.Course, error) {
	a, err := s.gate.Run(ctx, nil, s.gate.Course(name))
	if err != nil {
		return nil, err
	}
	if err := s.expand(ctx, a.Course, withCategories, withTopics); err != nil {
		return nil, err
	}
	return a.Course, nil
}

func (s *CourseService) JoinCourse(ctx context.Context, user *domain.User, name string) (*domain.Course, error) {
	a, err := s.gate.Run(ctx, user, s.gate.Course(name))
	if err != nil {
		return nil, err
	}
	enrollment := &domain.Enrollment{UserID: user.ID, CourseID: a.Course.ID, JoinedAt: s.now()}
	if err := s.store.Enrollments.Create(ctx, enrollment); err != nil {
		if errors.Is(err, domain.ErrDuplicateRecord) {
			return nil, domain.ErrAlreadyJoined
		}
		return nil, domain.Internal("join course", err)
	}
	return a.Course, nil
}

func (s *CourseService) LeaveCourse(ctx context.Context, user *domain.User, name string) (*domain.Course, error) {
	a, err := s.gate.Run(ctx, user, s.gate.Course(name))
	if err != nil {
		return nil, err
	}
	n, err := s.store.Enrollments.DeleteWhere(ctx, Eq("user_id", user.ID), Eq("course_id", a.Course.ID))
	if err != nil {
		return nil, domain.Internal("leave course", err)
	}
	if n == 0 {
		return nil, domain.ErrNotJoined
	}
	return a.Course, nil
}

// TopicResource returns a topic's reading material to an enrolled user and
// marks it read on first access.
func (s *CourseService) TopicResource(ctx context.Context, user *domain.User, course, topic string) (*domain.TopicResource, error) {
	a, err := s.gate.Run(ctx, user, s.gate.Course(course), s.gate.Enrolled(), s.gate.Topic(topic))
	if err != nil {
		return nil, err
	}
	resource, err := s.store.Resources.First(ctx, Eq("topic_id", a.Topic.ID))
	if err != nil {
		return nil, notFound(err, domain.ErrResourceNotFound, "load resource")
	}

	read := &domain.ResourceRead{UserID: user.ID, ResourceID: resource.ID, ReadAt: s.now()}
	if err := s.store.Reads.Create(ctx, read); err != nil && !errors.Is(err, domain.ErrDuplicateRecord) {
		return nil, domain.Internal("mark resource read", err)
	}
	return resource, nil
}

// MyCourses lists the user's courses. A course is completed once it has at
// least one topic quiz and every one of them is attempted.
func (s *CourseService) MyCourses(ctx context.Context, user *domain.User) (*MyCourses, error) {
	enrollments, err := s.store.Enrollments.Find(ctx, Eq("user_id", user.ID))
	if err != nil {
		return nil, domain.Internal("list enrolments", err)
	}

	out := &MyCourses{Completed: []*domain.Course{}, Incomplete: []*domain.Course{}}
	for _, enrollment := range enrollments {
		course, err := s.store.Courses.Get(ctx, enrollment.CourseID)
		if errors.Is(err, domain.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, domain.Internal("load course", err)
		}
		done, err := s.completed(ctx, user.ID, course.ID)
		if err != nil {
			return nil, err
		}
		if done {
			out.Completed = append(out.Completed, course)
		} else {
			out.Incomplete = append(out.Incomplete, course)
		}
	}
	return out, nil
}

func (s *CourseService) completed(ctx context.Context, userID, courseID int64) (bool, error) {
	categories, err := s.store.Categories.Find(ctx, Eq("course_id", courseID))
	if err != nil {
		return false, domain.Internal("load categories", err)
	}
	quizzes := 0
	for _, category := range categories {
		topics, err := s.store.Topics.Find(ctx, Eq("category_id", category.ID))
		if err != nil {
			return false, domain.Internal("load topics", err)
		}
		for _, topic := range topics {
			quiz, err := s.store.Quizzes.First(ctx, Eq("topic_id", topic.ID))
			if errors.Is(err, domain.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return false, domain.Internal("load quiz", err)
			}
			quizzes++
			done, err := s.ledger.HasAttempted(ctx, userID, quiz.ID)
			if err != nil || !done {
				return false, err
			}
		}
	}
	return quizzes > 0, nil
}

func (s *CourseService) expand(ctx context.Context, course *domain.Course, withCategories, withTopics bool) error {
	if !withCategories {
		return nil
	}
	categories, err := s.store.Categories.Find(ctx, Eq("course_id", course.ID))
	if err != nil {
		return domain.Internal("load categories", err)
	}
	course.Categories = make([]domain.CourseCategory, 0, len(categories))
	for _, category := range categories {
		if withTopics {
			topics, err := s.store.Topics.Find(ctx, Eq("category_id", category.ID))
			if err != nil {
				return domain.Internal("load topics", err)
			}
			for _, topic := range topics {
				category.Topics = append(category.Topics, *topic)
			}
		}
		course.Categories = append(course.Categories, *category)
	}
	return nil
}
