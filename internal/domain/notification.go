package domain

import "time"

type NotificationKind string

const (
	NotificationAnswered  NotificationKind = "answered"
	NotificationMentioned NotificationKind = "mentioned"
)

// Notification is a message addressed to a user by a system event.
type Notification struct {
	ID        int64
	UserID    int64
	Kind      NotificationKind
	Message   string
	Read      bool
	CreatedAt time.Time
}
