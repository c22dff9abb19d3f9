package domain

import "errors"

var (
	// ErrRecordNotFound is returned by repositories when no row matches.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateRecord is returned by repositories when a unique constraint rejects a write.
	ErrDuplicateRecord = errors.New("duplicate record")
)

// Kind classifies an Error for the transport boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	}
	return "internal"
}

// Error is a classified failure with a client-facing message. Two Errors
// match under errors.Is when their codes are equal, so a sentinel still
// matches after WithMessage rewords it.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code != "" && t.Code == e.Code
}

// WithMessage returns a copy of e carrying a different client-facing message.
func (e *Error) WithMessage(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

// Validation builds a 400-class error for a malformed request.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_request", Message: msg}
}

// Internal wraps an unexpected failure. The message is never shown to clients.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: op, Err: err}
}

// KindOf reports the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrUnauthorised       = &Error{Kind: KindAuth, Code: "unauthorised", Message: "Un-Authorised"}
	ErrInvalidTokenScheme = &Error{Kind: KindAuth, Code: "invalid_token_scheme", Message: "Invalid Token Scheme"}
	ErrInvalidToken       = &Error{Kind: KindAuth, Code: "invalid_token", Message: "Invalid Token"}
	ErrExpiredToken       = &Error{Kind: KindAuth, Code: "expired_token", Message: "Expired Token"}
	ErrInvalidCredentials = &Error{Kind: KindAuth, Code: "invalid_credentials", Message: "Invalid Credentials"}

	ErrUsernameTaken = &Error{Kind: KindValidation, Code: "username_taken", Message: "Username Already Exists"}
	ErrAlreadyJoined = &Error{Kind: KindValidation, Code: "already_joined", Message: "Already Joined to Course"}
	ErrNotJoined     = &Error{Kind: KindValidation, Code: "not_joined", Message: "Not Joined to Course"}
	ErrWindowOverlap = &Error{Kind: KindValidation, Code: "daily_window_overlap", Message: "Daily Quiz Window Overlaps an Existing Daily Quiz"}

	ErrNotEnrolled      = &Error{Kind: KindForbidden, Code: "not_enrolled", Message: "You are Not Enrolled in this Course"}
	ErrAlreadyAttempted = &Error{Kind: KindForbidden, Code: "already_attempted", Message: "You have Already Attempted this Quiz"}
	ErrNotAttempted     = &Error{Kind: KindForbidden, Code: "not_attempted", Message: "You have Not Attempted this Quiz"}

	ErrCourseNotFound    = &Error{Kind: KindNotFound, Code: "course_not_found", Message: "Course Not Found"}
	ErrTopicNotFound     = &Error{Kind: KindNotFound, Code: "topic_not_found", Message: "Topic Not Found"}
	ErrResourceNotFound  = &Error{Kind: KindNotFound, Code: "resource_not_found", Message: "Resource Not Found"}
	ErrQuizNotFound      = &Error{Kind: KindNotFound, Code: "quiz_not_found", Message: "Quiz Not Found"}
	ErrDailyQuizNotFound = &Error{Kind: KindNotFound, Code: "daily_quiz_not_found", Message: "Daily Quiz Not Found"}
	ErrQuestionNotFound  = &Error{Kind: KindNotFound, Code: "question_not_found", Message: "Question Not Found"}
	ErrAnswerNotFound    = &Error{Kind: KindNotFound, Code: "answer_not_found", Message: "Answer Not Found"}

	ErrEventNotFound        = &Error{Kind: KindNotFound, Code: "event_not_found", Message: "Event Not Found"}
	ErrNotificationNotFound = &Error{Kind: KindNotFound, Code: "notification_not_found", Message: "Notification Not Found"}
	ErrForbidden            = &Error{Kind: KindForbidden, Code: "forbidden", Message: "Forbidden"}

	// ErrDailyQuizConflict means more than one daily quiz window covers the
	// same instant, which is a data-integrity problem rather than a client error.
	ErrDailyQuizConflict = &Error{Kind: KindInternal, Code: "daily_quiz_conflict", Message: "multiple daily quizzes are active"}
)
