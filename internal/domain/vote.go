package domain

import (
	"fmt"
	"strings"
)

type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// ParseVoteDirection accepts "up" or "down" in any case.
func ParseVoteDirection(s string) (VoteDirection, error) {
	switch VoteDirection(strings.ToLower(strings.TrimSpace(s))) {
	case VoteUp:
		return VoteUp, nil
	case VoteDown:
		return VoteDown, nil
	}
	return "", fmt.Errorf("vote type must be %q or %q: %w", VoteUp, VoteDown, ErrValidation)
}

// Vote records one user's direction on one answer.
type Vote struct {
	ID        int64
	UserID    int64
	AnswerID  int64
	Direction VoteDirection
}

// VoteTally is a derived read over the votes of an answer. Mine is the
// viewer's own direction, empty when there is no viewer or no vote.
type VoteTally struct {
	AnswerID int64
	Up       int
	Down     int
	Mine     VoteDirection
}

func (t VoteTally) Score() int {
	return t.Up - t.Down
}
