package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"hello-world-api/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 60 * time.Minute

// SessionManager issues, validates and revokes bearer tokens. A token is
// only honoured while both its signature and its session row are intact.
type SessionManager struct {
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	sessions Repository[domain.Session]
	users    UserRepository
	log      *zap.Logger
	observer Observer
}

type SessionOption func(*SessionManager)

func WithTokenTTL(ttl time.Duration) SessionOption {
	return func(s *SessionManager) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for deterministic expiry in tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionManager) { s.now = now }
}

func WithLogger(log *zap.Logger) SessionOption {
	return func(s *SessionManager) { s.log = log }
}

func WithObserver(o Observer) SessionOption {
	return func(s *SessionManager) { s.observer = o }
}

func NewSessionManager(secret []byte, sessions Repository[domain.Session], users UserRepository, opts ...SessionOption) (*SessionManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("session manager: empty signing secret")
	}
	key := make([]byte, len(secret))
	copy(key, secret)

	s := &SessionManager{
		secret:   key,
		ttl:      DefaultTokenTTL,
		now:      time.Now,
		sessions: sessions,
		users:    users,
		log:      zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueToken signs a token for userID and persists the matching session.
func (s *SessionManager) IssueToken(ctx context.Context, userID int64, device, location string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	session := &domain.Session{
		UserID:     userID,
		Token:      token,
		Device:     device,
		Location:   location,
		ExpiresAt:  claims.ExpiresAt.Time,
		LastActive: now,
		CreatedAt:  now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// ValidateToken resolves the user a token was issued to. Expired and
// malformed tokens have their session row removed before the error is
// returned; a failed removal is logged and never replaces the auth error.
func (s *SessionManager) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, s.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		s.discard(ctx, token)
		if errors.Is(err, jwt.ErrTokenExpired) {
			s.observer.TokenValidated("expired")
			return nil, domain.ErrExpiredToken
		}
		s.observer.TokenValidated("invalid")
		return nil, domain.ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		s.discard(ctx, token)
		s.observer.TokenValidated("invalid")
		return nil, domain.ErrInvalidToken
	}

	session, err := s.sessions.First(ctx, Eq("token", token))
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			s.observer.TokenValidated("revoked")
			return nil, domain.ErrInvalidToken
		}
		return nil, domain.Internal("load session", err)
	}
	if session.UserID != userID {
		s.observer.TokenValidated("invalid")
		return nil, domain.ErrInvalidToken
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			s.discard(ctx, token)
			s.observer.TokenValidated("invalid")
			return nil, domain.ErrInvalidToken
		}
		return nil, domain.Internal("load user", err)
	}

	session.LastActive = s.now()
	if err := s.sessions.Update(ctx, session); err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		s.log.Warn("touch session", zap.Int64("session_id", session.ID), zap.Error(err))
	}
	s.observer.TokenValidated("ok")
	return user, nil
}

// RevokeToken deletes the session bound to token. Unknown tokens are a no-op.
func (s *SessionManager) RevokeToken(ctx context.Context, token string) error {
	if _, err := s.sessions.DeleteWhere(ctx, Eq("token", token)); err != nil {
		return domain.Internal("revoke session", err)
	}
	return nil
}

// ActiveSessions lists userID's unexpired sessions, newest first.
func (s *SessionManager) ActiveSessions(ctx context.Context, userID int64) ([]*domain.Session, error) {
	sessions, err := s.sessions.Find(ctx,
		Eq("user_id", userID),
		Where("expires_at", OpGt, s.now()),
		OrderBy("created_at", true),
	)
	if err != nil {
		return nil, domain.Internal("list sessions", err)
	}
	return sessions, nil
}

// PurgeExpired removes every session whose expiry has passed.
func (s *SessionManager) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.sessions.DeleteWhere(ctx, Where("expires_at", OpLte, s.now()))
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return n, nil
}

func (s *SessionManager) key(t *jwt.Token) (any, error) {
	return s.secret, nil
}

func (s *SessionManager) discard(ctx context.Context, token string) {
	if _, err := s.sessions.DeleteWhere(ctx, Eq("token", token)); err != nil {
		s.log.Warn("discard session", zap.Error(err))
	}
}
