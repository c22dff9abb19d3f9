package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hello-world-api/internal/domain"

	"go.uber.org/zap"
)

// Fixtures is the reference data loaded by the seed command.
type Fixtures struct {
	Courses      []CourseFixture    `yaml:"courses"`
	DailyQuizzes []DailyQuizFixture `yaml:"daily_quizzes"`
}

type CourseFixture struct {
	Name        string            `yaml:"name"`
	ShortName   string            `yaml:"short_name"`
	Description string            `yaml:"description"`
	Language    string            `yaml:"language"`
	IconName    string            `yaml:"icon_name"`
	Categories  []CategoryFixture `yaml:"categories"`
}

type CategoryFixture struct {
	Name        string         `yaml:"name"`
	ShortName   string         `yaml:"short_name"`
	Description string         `yaml:"description"`
	Topics      []TopicFixture `yaml:"topics"`
}

type TopicFixture struct {
	Name        string           `yaml:"name"`
	ShortName   string           `yaml:"short_name"`
	Description string           `yaml:"description"`
	Resource    *ResourceFixture `yaml:"resource"`
	Quiz        *QuizFixture     `yaml:"quiz"`
}

type ResourceFixture struct {
	Name      string         `yaml:"name"`
	ShortName string         `yaml:"short_name"`
	Content   map[string]any `yaml:"content"`
}

type QuizFixture struct {
	Name        string            `yaml:"name"`
	ShortName   string            `yaml:"short_name"`
	Description string            `yaml:"description"`
	Questions   []QuestionFixture `yaml:"questions"`
}

type DailyQuizFixture struct {
	QuizFixture `yaml:",inline"`
	OpensAt     time.Time `yaml:"opens_at"`
	ClosesAt    time.Time `yaml:"closes_at"`
}

type QuestionFixture struct {
	Kind               domain.QuestionKind `yaml:"type"`
	Question           string              `yaml:"question"`
	Answers            []string            `yaml:"answers"`
	CorrectAnswerIndex domain.AnswerIndex  `yaml:"correct_answer_index"`
}

// SeedReport counts what a seed run created.
type SeedReport struct {
	Courses   int
	Topics    int
	Quizzes   int
	Questions int
}

// Seeder writes fixtures into the store. Existing courses, categories and
// topics are matched by name and reused, so re-running a fixture file only
// adds what is missing.
type Seeder struct {
	store *Store
	daily *DailySelector
	log   *zap.Logger
}

func NewSeeder(store *Store, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{store: store, daily: NewDailySelector(store.Quizzes), log: log}
}

func (s *Seeder) Seed(ctx context.Context, fx Fixtures) (SeedReport, error) {
	var report SeedReport
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, cf := range fx.Courses {
			if err := s.seedCourse(ctx, cf, &report); err != nil {
				return fmt.Errorf("course %q: %w", cf.Name, err)
			}
		}
		for _, df := range fx.DailyQuizzes {
			if err := s.seedDaily(ctx, df, &report); err != nil {
				return fmt.Errorf("daily quiz %q: %w", df.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return SeedReport{}, err
	}
	s.log.Info("fixtures seeded",
		zap.Int("courses", report.Courses),
		zap.Int("topics", report.Topics),
		zap.Int("quizzes", report.Quizzes),
		zap.Int("questions", report.Questions),
	)
	return report, nil
}

func (s *Seeder) seedCourse(ctx context.Context, cf CourseFixture, report *SeedReport) error {
	course, err := s.store.Courses.First(ctx, Eq("name", cf.Name))
	if errors.Is(err, domain.ErrRecordNotFound) {
		course = &domain.Course{
			Name:        cf.Name,
			ShortName:   cf.ShortName,
			Description: cf.Description,
			Language:    cf.Language,
			IconName:    cf.IconName,
		}
		err = s.store.Courses.Create(ctx, course)
		report.Courses++
	}
	if err != nil {
		return err
	}

	for _, catf := range cf.Categories {
		category, err := s.store.Categories.First(ctx, Eq("course_id", course.ID), Eq("name", catf.Name))
		if errors.Is(err, domain.ErrRecordNotFound) {
			category = &domain.CourseCategory{
				CourseID:    course.ID,
				Name:        catf.Name,
				ShortName:   catf.ShortName,
				Description: catf.Description,
			}
			err = s.store.Categories.Create(ctx, category)
		}
		if err != nil {
			return err
		}
		for _, tf := range catf.Topics {
			if err := s.seedTopic(ctx, category.ID, tf, report); err != nil {
				return fmt.Errorf("topic %q: %w", tf.Name, err)
			}
		}
	}
	return nil
}

func (s *Seeder) seedTopic(ctx context.Context, categoryID int64, tf TopicFixture, report *SeedReport) error {
	topic, err := s.store.Topics.First(ctx, Eq("category_id", categoryID), Eq("name", tf.Name))
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return err
	}

	topic = &domain.Topic{
		CategoryID:  categoryID,
		Name:        tf.Name,
		ShortName:   tf.ShortName,
		Description: tf.Description,
	}
	if err := s.store.Topics.Create(ctx, topic); err != nil {
		return err
	}
	report.Topics++

	if rf := tf.Resource; rf != nil {
		content := rf.Content
		if content == nil {
			content = map[string]any{}
		}
		resource := &domain.TopicResource{TopicID: topic.ID, Name: rf.Name, ShortName: rf.ShortName, Content: content}
		if err := s.store.Resources.Create(ctx, resource); err != nil {
			return err
		}
	}
	if qf := tf.Quiz; qf != nil {
		topicID := topic.ID
		quiz := &domain.Quiz{
			Kind:        domain.QuizTopic,
			TopicID:     &topicID,
			Name:        qf.Name,
			ShortName:   qf.ShortName,
			Description: qf.Description,
		}
		if err := s.createQuiz(ctx, quiz, qf.Questions, report); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedDaily(ctx context.Context, df DailyQuizFixture, report *SeedReport) error {
	if err := s.daily.CheckWindow(ctx, df.OpensAt, df.ClosesAt); err != nil {
		return err
	}
	opens, closes := df.OpensAt, df.ClosesAt
	quiz := &domain.Quiz{
		Kind:        domain.QuizDaily,
		Name:        df.Name,
		ShortName:   df.ShortName,
		Description: df.Description,
		OpensAt:     &opens,
		ClosesAt:    &closes,
	}
	return s.createQuiz(ctx, quiz, df.Questions, report)
}

func (s *Seeder) createQuiz(ctx context.Context, quiz *domain.Quiz, questions []QuestionFixture, report *SeedReport) error {
	if err := s.store.Quizzes.Create(ctx, quiz); err != nil {
		return err
	}
	report.Quizzes++
	for i, qf := range questions {
		if len(qf.CorrectAnswerIndex) == 0 {
			return fmt.Errorf("question %d: empty correct_answer_index", i+1)
		}
		kind := qf.Kind
		if kind == "" {
			kind = domain.QuestionSingle
		}
		choices := qf.Answers
		if choices == nil {
			choices = []string{}
		}
		question := &domain.QuizQuestion{
			QuizID:             quiz.ID,
			Kind:               kind,
			Question:           qf.Question,
			Choices:            choices,
			CorrectAnswerIndex: qf.CorrectAnswerIndex,
		}
		if err := s.store.Questions.Create(ctx, question); err != nil {
			return err
		}
		report.Questions++
	}
	return nil
}
