package service

import (
	"context"
	"fmt"
	"strings"

	"stackit/internal/domain"
	"stackit/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// QuestionPage is one page of the question listing.
type QuestionPage struct {
	Questions []domain.Question
	Total     int
	Page      int
	Limit     int
}

// QuestionService covers questions and the tag vocabulary.
type QuestionService interface {
	CreateQuestion(ctx context.Context, author *domain.User, title, description string, tags []string) (*domain.Question, error)
	GetQuestion(ctx context.Context, id int64) (*domain.Question, error)
	ListQuestions(ctx context.Context, page, limit int) (*QuestionPage, error)
	ListTags(ctx context.Context) ([]domain.Tag, error)
	CreateTag(ctx context.Context, caller *domain.User, name string) (*domain.Tag, error)
}

type questionService struct {
	questions repository.QuestionRepository
	tags      repository.TagRepository
	answers   repository.AnswerRepository
}

func NewQuestionService(questions repository.QuestionRepository, tags repository.TagRepository, answers repository.AnswerRepository) QuestionService {
	return &questionService{
		questions: questions,
		tags:      tags,
		answers:   answers,
	}
}

func (s *questionService) CreateQuestion(ctx context.Context, author *domain.User, title, description string, tags []string) (*domain.Question, error) {
	if err := requireContributor(author); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, fmt.Errorf("title and description are required: %w", domain.ErrValidation)
	}

	question := &domain.Question{
		Title:       title,
		Description: description,
		UserID:      author.ID,
	}
	if _, err := s.questions.Create(ctx, question, normalizeTags(tags)); err != nil {
		return nil, err
	}
	question.Author = author
	return question, nil
}

func (s *questionService) GetQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	question, err := s.questions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if question.Tags, err = s.tags.ListByQuestion(ctx, id); err != nil {
		return nil, err
	}
	if question.Answers, err = s.answers.ListByQuestion(ctx, id); err != nil {
		return nil, err
	}
	return question, nil
}

func (s *questionService) ListQuestions(ctx context.Context, page, limit int) (*QuestionPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	questions, total, err := s.questions.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		if questions[i].Tags, err = s.tags.ListByQuestion(ctx, questions[i].ID); err != nil {
			return nil, err
		}
	}

	return &QuestionPage{
		Questions: questions,
		Total:     total,
		Page:      page,
		Limit:     limit,
	}, nil
}

func (s *questionService) ListTags(ctx context.Context) ([]domain.Tag, error) {
	return s.tags.List(ctx)
}

func (s *questionService) CreateTag(ctx context.Context, caller *domain.User, name string) (*domain.Tag, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tag name is required: %w", domain.ErrValidation)
	}
	return s.tags.Create(ctx, name)
}

// normalizeTags trims names, drops empty ones and collapses duplicates
// case-insensitively, keeping the first spelling.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
