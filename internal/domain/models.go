package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// Record is implemented by every persisted entity so storage layers can address
// rows generically by primary key and column name.
type Record interface {
	PrimaryKey() int64
	SetPrimaryKey(id int64)
	Column(name string) any
}

// QuizKind distinguishes per-topic quizzes from the rotating daily quiz.
type QuizKind string

const (
	QuizTopic QuizKind = "topic"
	QuizDaily QuizKind = "daily"
)

// QuestionKind tells clients how many choices a question expects.
type QuestionKind string

const (
	QuestionSingle   QuestionKind = "single"
	QuestionMultiple QuestionKind = "multiple"
)

// AnswerIndex maps an answer position ("0", "1", ...) to a choice index.
type AnswerIndex map[string]int

// User is the root of all per-user state.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u" json:"-"`

	ID          int64     `bun:",pk,autoincrement" json:"id"`
	DisplayName string    `bun:",notnull" json:"display_name"`
	Username    string    `bun:",notnull,unique" json:"username"`
	Password    string    `bun:",notnull" json:"-"`
	Bio         string    `bun:",notnull" json:"bio"`
	Country     string    `bun:",notnull" json:"country"`
	Points      int       `bun:",notnull" json:"points"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func (u *User) PrimaryKey() int64      { return u.ID }
func (u *User) SetPrimaryKey(id int64) { u.ID = id }

func (u *User) Column(name string) any {
	switch name {
	case "id":
		return u.ID
	case "username":
		return u.Username
	case "points":
		return u.Points
	case "created_at":
		return u.CreatedAt
	}
	return nil
}

// Session binds a bearer token to a user, device and location until ExpiresAt.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s" json:"-"`

	ID         int64     `bun:",pk,autoincrement" json:"id"`
	UserID     int64     `bun:",notnull" json:"user_id"`
	Token      string    `bun:",notnull,unique" json:"-"`
	Device     string    `bun:",notnull" json:"device"`
	Location   string    `bun:",notnull" json:"location"`
	ExpiresAt  time.Time `bun:",notnull" json:"expires_at"`
	LastActive time.Time `bun:",notnull" json:"last_active"`
	CreatedAt  time.Time `bun:",notnull" json:"created_at"`
}

func (s *Session) PrimaryKey() int64      { return s.ID }
func (s *Session) SetPrimaryKey(id int64) { s.ID = id }

func (s *Session) Column(name string) any {
	switch name {
	case "id":
		return s.ID
	case "user_id":
		return s.UserID
	case "token":
		return s.Token
	case "expires_at":
		return s.ExpiresAt
	case "created_at":
		return s.CreatedAt
	}
	return nil
}

// Preference holds a user's notification opt-ins.
type Preference struct {
	bun.BaseModel `bun:"table:user_preferences,alias:p" json:"-"`

	ID                int64 `bun:",pk,autoincrement" json:"id"`
	UserID            int64 `bun:",notnull,unique" json:"user_id"`
	DailyQuizReminder bool  `bun:",notnull" json:"daily_quiz_reminder"`
	WeeklyNewsletter  bool  `bun:",notnull" json:"weekly_newsletter"`
}

func (p *Preference) PrimaryKey() int64      { return p.ID }
func (p *Preference) SetPrimaryKey(id int64) { p.ID = id }

func (p *Preference) Column(name string) any {
	switch name {
	case "id":
		return p.ID
	case "user_id":
		return p.UserID
	}
	return nil
}

// Course is the top of the course -> category -> topic hierarchy.
type Course struct {
	bun.BaseModel `bun:"table:courses,alias:c" json:"-"`

	ID          int64     `bun:",pk,autoincrement" json:"id"`
	Name        string    `bun:",notnull,unique" json:"name"`
	ShortName   string    `bun:",notnull" json:"short_name"`
	Description string    `bun:",notnull" json:"description"`
	Language    string    `bun:",notnull" json:"language"`
	IconName    string    `bun:",notnull" json:"icon_name"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`

	Categories []CourseCategory `bun:"-" json:"categories,omitempty"`
}

func (c *Course) PrimaryKey() int64      { return c.ID }
func (c *Course) SetPrimaryKey(id int64) { c.ID = id }

func (c *Course) Column(name string) any {
	switch name {
	case "id":
		return c.ID
	case "name":
		return c.Name
	}
	return nil
}

type CourseCategory struct {
	bun.BaseModel `bun:"table:course_categories,alias:cc" json:"-"`

	ID          int64     `bun:",pk,autoincrement" json:"id"`
	CourseID    int64     `bun:",notnull" json:"course_id"`
	Name        string    `bun:",notnull" json:"name"`
	ShortName   string    `bun:",notnull" json:"short_name"`
	Description string    `bun:",notnull" json:"description"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`

	Topics []Topic `bun:"-" json:"topics,omitempty"`
}

func (c *CourseCategory) PrimaryKey() int64      { return c.ID }
func (c *CourseCategory) SetPrimaryKey(id int64) { c.ID = id }

func (c *CourseCategory) Column(name string) any {
	switch name {
	case "id":
		return c.ID
	case "course_id":
		return c.CourseID
	case "name":
		return c.Name
	}
	return nil
}

type Topic struct {
	bun.BaseModel `bun:"table:category_topics,alias:t" json:"-"`

	ID          int64     `bun:",pk,autoincrement" json:"id"`
	CategoryID  int64     `bun:",notnull" json:"category_id"`
	Name        string    `bun:",notnull" json:"name"`
	ShortName   string    `bun:",notnull" json:"short_name"`
	Description string    `bun:",notnull" json:"description"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func (t *Topic) PrimaryKey() int64      { return t.ID }
func (t *Topic) SetPrimaryKey(id int64) { t.ID = id }

func (t *Topic) Column(name string) any {
	switch name {
	case "id":
		return t.ID
	case "category_id":
		return t.CategoryID
	case "name":
		return t.Name
	}
	return nil
}

// TopicResource is the reading material attached to a topic.
type TopicResource struct {
	bun.BaseModel `bun:"table:topic_resources,alias:tr" json:"-"`

	ID        int64          `bun:",pk,autoincrement" json:"id"`
	TopicID   int64          `bun:",notnull,unique" json:"topic_id"`
	Name      string         `bun:",notnull" json:"name"`
	ShortName string         `bun:",notnull" json:"short_name"`
	Content   map[string]any `bun:"type:jsonb,notnull" json:"content"`
	CreatedAt time.Time      `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func (r *TopicResource) PrimaryKey() int64      { return r.ID }
func (r *TopicResource) SetPrimaryKey(id int64) { r.ID = id }

func (r *TopicResource) Column(name string) any {
	switch name {
	case "id":
		return r.ID
	case "topic_id":
		return r.TopicID
	}
	return nil
}

// Enrollment records that a user joined a course.
type Enrollment struct {
	bun.BaseModel `bun:"table:user_courses,alias:uc" json:"-"`

	ID       int64     `bun:",pk,autoincrement" json:"id"`
	UserID   int64     `bun:",notnull" json:"user_id"`
	CourseID int64     `bun:",notnull" json:"course_id"`
	JoinedAt time.Time `bun:",notnull" json:"joined_at"`
}

func (e *Enrollment) PrimaryKey() int64      { return e.ID }
func (e *Enrollment) SetPrimaryKey(id int64) { e.ID = id }

func (e *Enrollment) Column(name string) any {
	switch name {
	case "id":
		return e.ID
	case "user_id":
		return e.UserID
	case "course_id":
		return e.CourseID
	}
	return nil
}

// ResourceRead marks a topic resource as read by a user.
type ResourceRead struct {
	bun.BaseModel `bun:"table:user_topic_resources,alias:utr" json:"-"`

	ID         int64     `bun:",pk,autoincrement" json:"id"`
	UserID     int64     `bun:",notnull" json:"user_id"`
	ResourceID int64     `bun:",notnull" json:"resource_id"`
	ReadAt     time.Time `bun:",notnull" json:"read_at"`
}

func (r *ResourceRead) PrimaryKey() int64      { return r.ID }
func (r *ResourceRead) SetPrimaryKey(id int64) { r.ID = id }

func (r *ResourceRead) Column(name string) any {
	switch name {
	case "id":
		return r.ID
	case "user_id":
		return r.UserID
	case "resource_id":
		return r.ResourceID
	}
	return nil
}

// Quiz is either bound to a topic or, for the daily kind, to an
// [OpensAt, ClosesAt] window.
type Quiz struct {
	bun.BaseModel `bun:"table:quizzes,alias:q" json:"-"`

	ID          int64      `bun:",pk,autoincrement" json:"id"`
	Kind        QuizKind   `bun:",notnull" json:"type"`
	TopicID     *int64     `bun:",unique" json:"topic_id"`
	Name        string     `bun:",notnull" json:"name"`
	ShortName   string     `bun:",notnull" json:"short_name"`
	Description string     `bun:",notnull" json:"description"`
	OpensAt     *time.Time `json:"opens_at"`
	ClosesAt    *time.Time `json:"closes_at"`
	CreatedAt   time.Time  `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func (q *Quiz) PrimaryKey() int64      { return q.ID }
func (q *Quiz) SetPrimaryKey(id int64) { q.ID = id }

func (q *Quiz) Column(name string) any {
	switch name {
	case "id":
		return q.ID
	case "kind":
		return q.Kind
	case "topic_id":
		return q.TopicID
	case "opens_at":
		return q.OpensAt
	case "closes_at":
		return q.ClosesAt
	}
	return nil
}

func (q *Quiz) IsDaily() bool { return q.Kind == QuizDaily }

// Open reports whether now falls inside the quiz window, both ends inclusive.
func (q *Quiz) Open(now time.Time) bool {
	if q.OpensAt == nil || q.ClosesAt == nil {
		return false
	}
	return !now.Before(*q.OpensAt) && !now.After(*q.ClosesAt)
}

// QuizQuestion carries the answer key; never serialize it to a quiz taker
// directly, use View.
type QuizQuestion struct {
	bun.BaseModel `bun:"table:quiz_questions,alias:qq" json:"-"`

	ID                 int64        `bun:",pk,autoincrement" json:"id"`
	QuizID             int64        `bun:",notnull" json:"quiz_id"`
	Kind               QuestionKind `bun:",notnull" json:"type"`
	Question           string       `bun:",notnull" json:"question"`
	Choices            []string     `bun:"type:jsonb,notnull" json:"answers"`
	CorrectAnswerIndex AnswerIndex  `bun:"type:jsonb,notnull" json:"correct_answer_index"`
	CreatedAt          time.Time    `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func (q *QuizQuestion) PrimaryKey() int64      { return q.ID }
func (q *QuizQuestion) SetPrimaryKey(id int64) { q.ID = id }

func (q *QuizQuestion) Column(name string) any {
	switch name {
	case "id":
		return q.ID
	case "quiz_id":
		return q.QuizID
	}
	return nil
}

// QuestionView is a question without its answer key.
type QuestionView struct {
	ID        int64        `json:"id"`
	QuizID    int64        `json:"quiz_id"`
	Kind      QuestionKind `json:"type"`
	Question  string       `json:"question"`
	Choices   []string     `json:"answers"`
	CreatedAt time.Time    `json:"created_at"`
}

func (q *QuizQuestion) View() QuestionView {
	return QuestionView{
		ID:        q.ID,
		QuizID:    q.QuizID,
		Kind:      q.Kind,
		Question:  q.Question,
		Choices:   q.Choices,
		CreatedAt: q.CreatedAt,
	}
}

// Answer is a user's current choice set for one question, unique per
// (user, quiz, question).
type Answer struct {
	bun.BaseModel `bun:"table:user_quiz_answers,alias:a" json:"-"`

	ID                 int64       `bun:",pk,autoincrement" json:"id"`
	UserID             int64       `bun:",notnull" json:"user_id"`
	QuizID             int64       `bun:",notnull" json:"quiz_id"`
	QuestionID         int64       `bun:",notnull" json:"question_id"`
	ChosenAnswersIndex AnswerIndex `bun:"type:jsonb,notnull" json:"chosen_answers_index"`
	AnsweredAt         time.Time   `bun:",notnull" json:"answered_at"`
	ModifiedAt         time.Time   `bun:",notnull" json:"modified_at"`
}

func (a *Answer) PrimaryKey() int64      { return a.ID }
func (a *Answer) SetPrimaryKey(id int64) { a.ID = id }

func (a *Answer) Column(name string) any {
	switch name {
	case "id":
		return a.ID
	case "user_id":
		return a.UserID
	case "quiz_id":
		return a.QuizID
	case "question_id":
		return a.QuestionID
	}
	return nil
}

// Attempt is the ledger row whose existence marks a quiz as completed by a
// user. At most one exists per (user, quiz).
type Attempt struct {
	bun.BaseModel `bun:"table:user_topic_quizzes,alias:att" json:"-"`

	ID          int64     `bun:",pk,autoincrement" json:"id"`
	UserID      int64     `bun:",notnull" json:"user_id"`
	QuizID      int64     `bun:",notnull" json:"quiz_id"`
	StartedAt   time.Time `bun:",notnull" json:"started_at"`
	SubmittedAt time.Time `bun:",notnull" json:"submitted_at"`
}

func (a *Attempt) PrimaryKey() int64      { return a.ID }
func (a *Attempt) SetPrimaryKey(id int64) { a.ID = id }

func (a *Attempt) Column(name string) any {
	switch name {
	case "id":
		return a.ID
	case "user_id":
		return a.UserID
	case "quiz_id":
		return a.QuizID
	}
	return nil
}

// Event is an entry in a user's personal calendar.
type Event struct {
	bun.BaseModel `bun:"table:user_events,alias:ev" json:"-"`

	ID          int64     `bun:",pk,autoincrement" json:"id"`
	UserID      int64     `bun:",notnull" json:"user_id"`
	Title       string    `bun:",notnull" json:"title"`
	Description string    `bun:",notnull" json:"description"`
	StartsAt    time.Time `bun:",notnull" json:"start_date"`
	EndsAt      time.Time `bun:",notnull" json:"end_date"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func (e *Event) PrimaryKey() int64      { return e.ID }
func (e *Event) SetPrimaryKey(id int64) { e.ID = id }

func (e *Event) Column(name string) any {
	switch name {
	case "id":
		return e.ID
	case "user_id":
		return e.UserID
	case "starts_at":
		return e.StartsAt
	}
	return nil
}

// Notification is a message delivered to a user's inbox.
type Notification struct {
	bun.BaseModel `bun:"table:user_notifications,alias:n" json:"-"`

	ID         int64     `bun:",pk,autoincrement" json:"id"`
	UserID     int64     `bun:",notnull" json:"user_id"`
	Title      string    `bun:",notnull" json:"title"`
	Content    string    `bun:",notnull" json:"content"`
	NotifiedAt time.Time `bun:",notnull" json:"notified_at"`
}

func (n *Notification) PrimaryKey() int64      { return n.ID }
func (n *Notification) SetPrimaryKey(id int64) { n.ID = id }

func (n *Notification) Column(name string) any {
	switch name {
	case "id":
		return n.ID
	case "user_id":
		return n.UserID
	case "notified_at":
		return n.NotifiedAt
	}
	return nil
}
