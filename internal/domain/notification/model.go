// Package notification implements per-recipient in-app notifications and the
// fan-out that targets every holder of a role. Delivery is best-effort and
// at-most-once: a failed write is logged and dropped, never retried, and
// never fails the action that triggered it.
package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/matricare/matricare/internal/entity"
)

// TypeNotification tags notification entities.
const TypeNotification = "notification"

// Message is the caller-supplied content of a notification.
type Message struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"message"`
	Link  string `json:"link,omitempty"`
}

// Notification is a stored notification decoded into its typed form.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type notificationPayload struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Body   string `json:"message"`
	Link   string `json:"link,omitempty"`
	IsRead bool   `json:"isRead"`
}

func fromEntity(e *entity.Entity) (*Notification, error) {
	var p notificationPayload
	if err := e.Decode(&p); err != nil {
		return nil, err
	}
	return &Notification{
		ID:        e.ID,
		UserID:    e.Owner(),
		Type:      p.Type,
		Title:     p.Title,
		Body:      p.Body,
		Link:      p.Link,
		IsRead:    p.IsRead,
		CreatedAt: e.CreatedAt,
	}, nil
}
