package repository

import (
	"context"

	"stackit/internal/domain"
)

// QuestionRepository persists questions together with their tag associations.
type QuestionRepository interface {
	Init(ctx context.Context) error
	// Create stores the question and finds or creates every tag in one transaction.
	Create(ctx context.Context, question *domain.Question, tagNames []string) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Question, error)
	List(ctx context.Context, limit, offset int) ([]domain.Question, int, error)
}

// TagRepository manages the tag vocabulary.
type TagRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, name string) (*domain.Tag, error)
	List(ctx context.Context) ([]domain.Tag, error)
	ListByQuestion(ctx context.Context, questionID int64) ([]domain.Tag, error)
}
