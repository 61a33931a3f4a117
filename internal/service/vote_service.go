package service

import (
	"context"
	"errors"

	"stackit/internal/domain"
	"stackit/internal/repository"
)

// VoteResult confirms a cast vote.
type VoteResult struct {
	Vote    domain.Vote
	Created bool
}

// VoteService is the ledger of per-user answer votes.
type VoteService interface {
	CastVote(ctx context.Context, voter *domain.User, answerID int64, voteType string) (*VoteResult, error)
	// Tally counts the votes on an answer. A non-nil viewer also gets their own
	// vote back.
	Tally(ctx context.Context, viewer *domain.User, answerID int64) (domain.VoteTally, error)
}

type voteService struct {
	answers repository.AnswerRepository
	votes   repository.VoteRepository
}

func NewVoteService(answers repository.AnswerRepository, votes repository.VoteRepository) VoteService {
	return &voteService{answers: answers, votes: votes}
}

func (s *voteService) CastVote(ctx context.Context, voter *domain.User, answerID int64, voteType string) (*VoteResult, error) {
	if err := requireContributor(voter); err != nil {
		return nil, err
	}
	direction, err := domain.ParseVoteDirection(voteType)
	if err != nil {
		return nil, err
	}
	if _, err := s.answers.Get(ctx, answerID); err != nil {
		return nil, err
	}

	vote := domain.Vote{
		UserID:    voter.ID,
		AnswerID:  answerID,
		Direction: direction,
	}
	created, err := s.votes.Upsert(ctx, &vote)
	if err != nil {
		return nil, err
	}
	return &VoteResult{Vote: vote, Created: created}, nil
}

func (s *voteService) Tally(ctx context.Context, viewer *domain.User, answerID int64) (domain.VoteTally, error) {
	if _, err := s.answers.Get(ctx, answerID); err != nil {
		return domain.VoteTally{}, err
	}
	tally, err := s.votes.Tally(ctx, answerID)
	if err != nil || viewer == nil {
		return tally, err
	}

	mine, err := s.votes.Get(ctx, viewer.ID, answerID)
	switch {
	case err == nil:
		tally.Mine = mine.Direction
	case !errors.Is(err, domain.ErrNotFound):
		return domain.VoteTally{}, err
	}
	return tally, nil
}
