package repository

import (
	"context"

	"stackit/internal/domain"
)

// AnswerRepository persists answers and their acceptance state.
type AnswerRepository interface {
	Init(ctx context.Context) error
	// CreateWithNotifications stores the answer and its notification batch in
	// one transaction. Notification IDs and timestamps are filled in place.
	CreateWithNotifications(ctx context.Context, answer *domain.Answer, batch []domain.Notification) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Answer, error)
	ListByQuestion(ctx context.Context, questionID int64) ([]domain.Answer, error)
	// MarkAccepted sets accepted=true. With exclusive set, every other answer
	// of the same question is cleared in the same transaction.
	MarkAccepted(ctx context.Context, id int64, exclusive bool) error
}

// VoteRepository stores at most one vote per (user, answer).
type VoteRepository interface {
	Init(ctx context.Context) error
	// Upsert creates the vote or overwrites the direction of the existing one.
	// It reports whether a new row was inserted.
	Upsert(ctx context.Context, vote *domain.Vote) (bool, error)
	Get(ctx context.Context, userID, answerID int64) (*domain.Vote, error)
	Tally(ctx context.Context, answerID int64) (domain.VoteTally, error)
}

// NotificationRepository reads and updates notifications. Creation happens
// through AnswerRepository.CreateWithNotifications.
type NotificationRepository interface {
	Init(ctx context.Context) error
	ListByUser(ctx context.Context, userID int64) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}
