package app

import (
	"context"
	"time"
	"unicode/utf8"

	"hello-world-api/internal/domain"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 255
)

// EventInput is the editable part of a calendar event.
type EventInput struct {
	Title       string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
}

func (in EventInput) validate() error {
	if utf8.RuneCountInString(in.Title) > maxTitleLen {
		return domain.Validation("Title is Too Long")
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return domain.Validation("Description is Too Long")
	}
	if in.EndsAt.Before(in.StartsAt) {
		return domain.Validation("End Date is Before Start Date")
	}
	return nil
}

// InboxService owns a user's calendar events and notifications.
type InboxService struct {
	events        Repository[domain.Event]
	notifications Repository[domain.Notification]
	now           func() time.Time
}

func NewInboxService(store *Store, now func() time.Time) *InboxService {
	return &InboxService{events: store.Events, notifications: store.Notifications, now: now}
}

func (s *InboxService) Events(ctx context.Context, user *domain.User) ([]*domain.Event, error) {
	events, err := s.events.Find(ctx, Eq("user_id", user.ID), OrderBy("starts_at", false))
	if err != nil {
		return nil, domain.Internal("load events", err)
	}
	return events, nil
}

func (s *InboxService) CreateEvent(ctx context.Context, user *domain.User, in EventInput) (*domain.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	event := &domain.Event{
		UserID:      user.ID,
		Title:       in.Title,
		Description: in.Description,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, domain.Internal("create event", err)
	}
	return event, nil
}

func (s *InboxService) UpdateEvent(ctx context.Context, user *domain.User, id int64, in EventInput) (*domain.Event, error) {
	event, err := s.ownEvent(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	event.Title = in.Title
	event.Description = in.Description
	event.StartsAt = in.StartsAt
	event.EndsAt = in.EndsAt
	if err := s.events.Update(ctx, event); err != nil {
		return nil, notFound(err, domain.ErrEventNotFound, "update event")
	}
	return event, nil
}

func (s *InboxService) DeleteEvent(ctx context.Context, user *domain.User, id int64) error {
	if _, err := s.ownEvent(ctx, user, id); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return notFound(err, domain.ErrEventNotFound, "delete event")
	}
	return nil
}

// Notify appends a notification to userID's inbox.
func (s *InboxService) Notify(ctx context.Context, userID int64, title, content string) (*domain.Notification, error) {
	n := &domain.Notification{UserID: userID, Title: title, Content: content, NotifiedAt: s.now()}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, domain.Internal("create notification", err)
	}
	return n, nil
}

// Notifications lists the user's inbox, newest first.
func (s *InboxService) Notifications(ctx context.Context, user *domain.User) ([]*domain.Notification, error) {
	list, err := s.notifications.Find(ctx, Eq("user_id", user.ID), OrderBy("notified_at", true))
	if err != nil {
		return nil, domain.Internal("load notifications", err)
	}
	return list, nil
}

func (s *InboxService) DeleteNotification(ctx context.Context, user *domain.User, id int64) error {
	n, err := s.notifications.Get(ctx, id)
	if err != nil {
		return notFound(err, domain.ErrNotificationNotFound, "load notification")
	}
	if n.UserID != user.ID {
		return domain.ErrForbidden
	}
	if err := s.notifications.Delete(ctx, id); err != nil {
		return notFound(err, domain.ErrNotificationNotFound, "delete notification")
	}
	return nil
}

// ClearNotifications empties the user's inbox and reports how many were removed.
func (s *InboxService) ClearNotifications(ctx context.Context, user *domain.User) (int, error) {
	n, err := s.notifications.DeleteWhere(ctx, Eq("user_id", user.ID))
	if err != nil {
		return 0, domain.Internal("clear notifications", err)
	}
	return n, nil
}

func (s *InboxService) ownEvent(ctx context.Context, user *domain.User, id int64) (*domain.Event, error) {
	event, err := s.events.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, domain.ErrEventNotFound, "load event")
	}
	if event.UserID != user.ID {
		return nil, domain.ErrForbidden
	}
	return event, nil
}
