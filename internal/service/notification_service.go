package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"stackit/internal/domain"
	"stackit/internal/mention"
	"stackit/internal/repository"
)

// NotificationService decides who hears about an answer and serves each
// user's notification inbox.
type NotificationService interface {
	// PlanAnswerNotifications builds the batch for one answer-post event.
	// It does not persist anything.
	PlanAnswerNotifications(ctx context.Context, question *domain.Question, author *domain.User, body string) ([]domain.Notification, error)
	List(ctx context.Context, user *domain.User) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, user *domain.User) (int, error)
	MarkAllRead(ctx context.Context, user *domain.User) (int64, error)
}

type notificationService struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	log           logrus.FieldLogger
}

func NewNotificationService(users repository.UserRepository, notifications repository.NotificationRepository, log logrus.FieldLogger) NotificationService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &notificationService{
		users:         users,
		notifications: notifications,
		log:           log,
	}
}

func (s *notificationService) PlanAnswerNotifications(ctx context.Context, question *domain.Question, author *domain.User, body string) ([]domain.Notification, error) {
	var batch []domain.Notification

	if question.UserID != author.ID {
		batch = append(batch, domain.Notification{
			UserID:  question.UserID,
			Kind:    domain.NotificationAnswered,
			Message: fmt.Sprintf("Your question was answered by %s", author.Username),
		})
	}

	// The owner may be mentioned too; that yields a second, separate notification.
	for _, name := range mention.Resolve(body) {
		user, err := s.users.GetByUsername(ctx, name)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.log.WithField("mention", name).Debug("dropping mention of unknown user")
				continue
			}
			return nil, fmt.Errorf("resolve mention %q: %w", name, err)
		}
		if user.ID == author.ID {
			continue
		}
		batch = append(batch, domain.Notification{
			UserID:  user.ID,
			Kind:    domain.NotificationMentioned,
			Message: fmt.Sprintf("You were mentioned by %s", author.Username),
		})
	}

	return dedupeMentions(batch), nil
}

// dedupeMentions keeps one mention per recipient. Names that differ only in
// case resolve to the same account.
func dedupeMentions(batch []domain.Notification) []domain.Notification {
	seen := make(map[int64]struct{}, len(batch))
	out := batch[:0]
	for _, n := range batch {
		if n.Kind == domain.NotificationMentioned {
			if _, ok := seen[n.UserID]; ok {
				continue
			}
			seen[n.UserID] = struct{}{}
		}
		out = append(out, n)
	}
	return out
}

func (s *notificationService) List(ctx context.Context, user *domain.User) ([]domain.Notification, error) {
	if err := requireContributor(user); err != nil {
		return nil, err
	}
	return s.notifications.ListByUser(ctx, user.ID)
}

func (s *notificationService) UnreadCount(ctx context.Context, user *domain.User) (int, error) {
	if err := requireContributor(user); err != nil {
		return 0, err
	}
	return s.notifications.CountUnread(ctx, user.ID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, user *domain.User) (int64, error) {
	if err := requireContributor(user); err != nil {
		return 0, err
	}
	return s.notifications.MarkAllRead(ctx, user.ID)
}
