package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/matricare/matricare/internal/domain/role"
	"github.com/matricare/matricare/internal/entity"
	"github.com/matricare/matricare/internal/platform/directory"
)

// ErrNotFound is returned when a notification does not exist or belongs to
// another user.
var ErrNotFound = errors.New("notification not found")

// Service creates and manages notification entities.
type Service struct {
	store *entity.Store
	dir   directory.Directory
	log   zerolog.Logger
}

// NewService builds the fan-out service. dir may be nil when broadcasts are
// not needed.
func NewService(store *entity.Store, dir directory.Directory, log zerolog.Logger) *Service {
	return &Service{store: store, dir: dir, log: log}
}

// Notify writes one unread notification for the target user.
func (s *Service) Notify(ctx context.Context, targetUserID string, msg Message) error {
	if targetUserID == "" {
		return fmt.Errorf("notification requires a target user")
	}
	_, err := s.store.Create(ctx, TypeNotification, targetUserID, "", map[string]any{
		"type":    msg.Type,
		"title":   msg.Title,
		"message": msg.Body,
		"link":    msg.Link,
		"isRead":  false,
	})
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// BroadcastToRole notifies every user holding the role, under any of its
// historical spellings. Each recipient is an independent write: a failure is
// logged and skipped, and the loop continues. Partial delivery is the
// contract, not a failure mode. Returns how many notifications were written.
func (s *Service) BroadcastToRole(ctx context.Context, rawRole string, msg Message) (int, error) {
	if s.dir == nil {
		return 0, fmt.Errorf("broadcast requires a user directory")
	}
	r, err := role.Parse(rawRole)
	if err != nil {
		return 0, fmt.Errorf("broadcast target: %w", err)
	}

	ids, err := s.dir.UsersWithRole(ctx, role.ExpandForQuery(r))
	if err != nil {
		return 0, fmt.Errorf("resolve %s recipients: %w", r, err)
	}

	delivered := 0
	for _, id := range ids {
		if err := s.Notify(ctx, id, msg); err != nil {
			s.log.Warn().Err(err).Str("target_user", id).Str("role", string(r)).
				Msg("broadcast notification dropped")
			continue
		}
		delivered++
	}
	return delivered, nil
}

// ListForUser returns a page of the user's notifications, newest first.
// The unread filter applies within the fetched page.
func (s *Service) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*Notification, error) {
	entities, err := s.store.List(ctx, TypeNotification, entity.Filter{
		OwnerID: userID, Order: entity.OrderDesc, Limit: limit, Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	items := make([]*Notification, 0, len(entities))
	for _, e := range entities {
		n, err := fromEntity(e)
		if err != nil {
			s.log.Warn().Err(err).Str("notification_id", e.ID.String()).Msg("undecodable notification skipped")
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		items = append(items, n)
	}
	return items, nil
}

// MarkRead flags the user's notification as read. Only the owner can.
func (s *Service) MarkRead(ctx context.Context, userID string, id uuid.UUID) (*Notification, error) {
	updated, err := s.store.Update(ctx, id, TypeNotification, userID, map[string]any{"isRead": true})
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return fromEntity(updated)
}

// ClearForUser removes every notification of the user, the one bulk
// type-scoped cleanup notifications support.
func (s *Service) ClearForUser(ctx context.Context, userID string) (int64, error) {
	return s.store.DeleteByTypes(ctx, userID, []string{TypeNotification})
}
