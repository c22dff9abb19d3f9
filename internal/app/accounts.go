package app

import (
	"context"
	"errors"
	"unicode/utf8"

	"hello-world-api/internal/domain"

	"go.uber.org/zap"
)

const (
	maxNameLen = 30
	maxBioLen  = 100
)

// ClientInfo describes where a sign-up or log-in request came from.
type ClientInfo struct {
	Device   string
	Location string
	Country  string
}

// AuthResult is returned by SignUp and LogIn.
type AuthResult struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// ProfileUpdate holds the optional fields of an account edit; nil fields
// are left unchanged.
type ProfileUpdate struct {
	DisplayName *string
	Username    *string
	Password    *string
	Bio         *string
}

// AccountService manages user accounts, their preferences and sessions.
type AccountService struct {
	store    *Store
	hasher   *Hasher
	sessions *SessionManager
	log      *zap.Logger
}

func NewAccountService(store *Store, hasher *Hasher, sessions *SessionManager, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{store: store, hasher: hasher, sessions: sessions, log: log}
}

func (s *AccountService) SignUp(ctx context.Context, username, password string, client ClientInfo) (*AuthResult, error) {
	if err := checkName("Username", username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, domain.Validation("'password' is Required")
	}
	if n, err := s.store.Users.Count(ctx, Eq("username", username)); err != nil {
		return nil, domain.Internal("check username", err)
	} else if n > 0 {
		return nil, domain.ErrUsernameTaken
	}

	hash, err := s.hasher.Derive(password)
	if err != nil {
		return nil, domain.Internal("derive password", err)
	}
	user := &domain.User{
		DisplayName: username,
		Username:    username,
		Password:    hash,
		Country:     client.Country,
	}
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.Users.Create(ctx, user); err != nil {
			if errors.Is(err, domain.ErrDuplicateRecord) {
				return domain.ErrUsernameTaken
			}
			return domain.Internal("create user", err)
		}
		if err := s.store.Preferences.Create(ctx, &domain.Preference{UserID: user.ID}); err != nil {
			return domain.Internal("create preferences", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := s.sessions.IssueToken(ctx, user.ID, client.Device, client.Location)
	if err != nil {
		return nil, domain.Internal("issue token", err)
	}
	s.log.Info("user signed up", zap.Int64("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// LogIn verifies credentials. Unknown users and wrong passwords fail the
// same way.
func (s *AccountService) LogIn(ctx context.Context, username, password string, client ClientInfo) (*AuthResult, error) {
	user, err := s.store.Users.First(ctx, Eq("username", username))
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.Internal("load user", err)
	}
	if !s.hasher.Verify(user.Password, password) {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.sessions.IssueToken(ctx, user.ID, client.Device, client.Location)
	if err != nil {
		return nil, domain.Internal("issue token", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AccountService) LogOut(ctx context.Context, token string) error {
	return s.sessions.RevokeToken(ctx, token)
}

// UpdateMe applies the non-nil fields of update. Points are never written
// here; the returned user reflects the stored row.
func (s *AccountService) UpdateMe(ctx context.Context, user *domain.User, update ProfileUpdate) (*domain.User, error) {
	updated := *user
	if update.DisplayName != nil {
		if err := checkName("Display Name", *update.DisplayName); err != nil {
			return nil, err
		}
		updated.DisplayName = *update.DisplayName
	}
	if update.Username != nil && *update.Username != user.Username {
		if err := checkName("Username", *update.Username); err != nil {
			return nil, err
		}
		if n, err := s.store.Users.Count(ctx, Eq("username", *update.Username)); err != nil {
			return nil, domain.Internal("check username", err)
		} else if n > 0 {
			return nil, domain.ErrUsernameTaken
		}
		updated.Username = *update.Username
	}
	if update.Password != nil {
		if *update.Password == "" {
			return nil, domain.Validation("Password is Too Short")
		}
		hash, err := s.hasher.Derive(*update.Password)
		if err != nil {
			return nil, domain.Internal("derive password", err)
		}
		updated.Password = hash
	}
	if update.Bio != nil {
		if utf8.RuneCountInString(*update.Bio) > maxBioLen {
			return nil, domain.Validation("Bio is Too Long")
		}
		updated.Bio = *update.Bio
	}

	if err := s.store.Users.UpdateProfile(ctx, &updated); err != nil {
		if errors.Is(err, domain.ErrDuplicateRecord) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, domain.Internal("update user", err)
	}
	return &updated, nil
}

// DeleteMe removes the account; storage cascades to every per-user row.
func (s *AccountService) DeleteMe(ctx context.Context, user *domain.User) error {
	if err := s.store.Users.Delete(ctx, user.ID); err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return domain.Internal("delete user", err)
	}
	s.log.Info("user deleted", zap.Int64("user_id", user.ID))
	return nil
}

// Preferences returns the user's preferences, creating the defaults for
// accounts that predate them.
func (s *AccountService) Preferences(ctx context.Context, user *domain.User) (*domain.Preference, error) {
	pref, err := s.store.Preferences.First(ctx, Eq("user_id", user.ID))
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.Internal("load preferences", err)
	}
	pref = &domain.Preference{UserID: user.ID}
	if err := s.store.Preferences.Create(ctx, pref); err != nil {
		if errors.Is(err, domain.ErrDuplicateRecord) {
			return s.Preferences(ctx, user)
		}
		return nil, domain.Internal("create preferences", err)
	}
	return pref, nil
}

func (s *AccountService) UpdatePreferences(ctx context.Context, user *domain.User, dailyQuizReminder, weeklyNewsletter bool) (*domain.Preference, error) {
	pref, err := s.Preferences(ctx, user)
	if err != nil {
		return nil, err
	}
	pref.DailyQuizReminder = dailyQuizReminder
	pref.WeeklyNewsletter = weeklyNewsletter
	if err := s.store.Preferences.Update(ctx, pref); err != nil {
		return nil, domain.Internal("update preferences", err)
	}
	return pref, nil
}

// Sessions lists the user's active sessions.
func (s *AccountService) Sessions(ctx context.Context, user *domain.User) ([]*domain.Session, error) {
	return s.sessions.ActiveSessions(ctx, user.ID)
}

func checkName(field, value string) error {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return domain.Validation(field + " is Required")
	}
	if n > maxNameLen {
		return domain.Validation(field + " is Too Long")
	}
	return nil
}
