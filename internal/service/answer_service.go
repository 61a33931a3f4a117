package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"stackit/internal/domain"
	"stackit/internal/repository"
)

// AcceptancePolicy controls the rules applied when an answer is accepted.
// The zero value accepts any existing answer for any caller and leaves other
// accepted answers of the question untouched.
type AcceptancePolicy struct {
	// OwnerOnly requires the caller to own the answer's question.
	OwnerOnly bool
	// Exclusive clears previously accepted answers of the same question.
	Exclusive bool
}

// AnswerService posts answers and transitions them to accepted.
type AnswerService interface {
	CreateAnswer(ctx context.Context, author *domain.User, questionID int64, description string) (*domain.Answer, []domain.Notification, error)
	AcceptAnswer(ctx context.Context, caller *domain.User, answerID int64) (*domain.Answer, error)
}

type answerService struct {
	questions     repository.QuestionRepository
	answers       repository.AnswerRepository
	notifications NotificationService
	policy        AcceptancePolicy
	log           logrus.FieldLogger
}

func NewAnswerService(
	questions repository.QuestionRepository,
	answers repository.AnswerRepository,
	notifications NotificationService,
	policy AcceptancePolicy,
	log logrus.FieldLogger,
) AnswerService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &answerService{
		questions:     questions,
		answers:       answers,
		notifications: notifications,
		policy:        policy,
		log:           log,
	}
}

func (s *answerService) CreateAnswer(ctx context.Context, author *domain.User, questionID int64, description string) (*domain.Answer, []domain.Notification, error) {
	if err := requireContributor(author); err != nil {
		return nil, nil, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, nil, fmt.Errorf("description is required: %w", domain.ErrValidation)
	}

	question, err := s.questions.Get(ctx, questionID)
	if err != nil {
		return nil, nil, err
	}

	batch, err := s.notifications.PlanAnswerNotifications(ctx, question, author, description)
	if err != nil {
		return nil, nil, err
	}

	answer := &domain.Answer{
		Description: description,
		UserID:      author.ID,
		QuestionID:  question.ID,
	}
	if _, err := s.answers.CreateWithNotifications(ctx, answer, batch); err != nil {
		return nil, nil, err
	}
	answer.Author = author

	s.log.WithFields(logrus.Fields{
		"answer_id":     answer.ID,
		"question_id":   question.ID,
		"notifications": len(batch),
	}).Info("answer posted")

	return answer, batch, nil
}

func (s *answerService) AcceptAnswer(ctx context.Context, caller *domain.User, answerID int64) (*domain.Answer, error) {
	answer, err := s.answers.Get(ctx, answerID)
	if err != nil {
		return nil, err
	}

	if s.policy.OwnerOnly {
		if caller == nil {
			return nil, fmt.Errorf("authentication required: %w", domain.ErrUnauthorized)
		}
		question, err := s.questions.Get(ctx, answer.QuestionID)
		if err != nil {
			return nil, err
		}
		if question.UserID != caller.ID {
			return nil, fmt.Errorf("only the question owner can accept an answer: %w", domain.ErrForbidden)
		}
	}

	if err := s.answers.MarkAccepted(ctx, answer.ID, s.policy.Exclusive); err != nil {
		return nil, err
	}
	answer.Accepted = true
	return answer, nil
}
