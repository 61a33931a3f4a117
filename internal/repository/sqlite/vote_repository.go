package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stackit/internal/domain"
	"stackit/internal/repository"
)

// The unique index is what guarantees one vote per (user, answer); the lookup
// in Upsert only avoids a conflicting insert in the common case, and
// insertVote turns a conflicting insert into an update.
const createVotesTable = `
CREATE TABLE IF NOT EXISTS votes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	answer_id INTEGER NOT NULL,
	vote_type TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id),
	FOREIGN KEY(answer_id) REFERENCES answers(id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_votes_user_answer ON votes(user_id, answer_id);
CREATE INDEX IF NOT EXISTS idx_votes_answer_id ON votes(answer_id);
`

type VoteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) repository.VoteRepository {
	return &VoteRepository{db: db}
}

func (r *VoteRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createVotesTable); err != nil {
		return fmt.Errorf("create votes table: %w", err)
	}
	return nil
}

func (r *VoteRepository) Upsert(ctx context.Context, vote *domain.Vote) (bool, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRowContext(ctx, `
SELECT id FROM votes WHERE user_id = ? AND answer_id = ?`,
		vote.UserID,
		vote.AnswerID,
	).Scan(&existingID)

	created := false
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `
UPDATE votes SET vote_type = ?, updated_at = ? WHERE id = ?`,
			string(vote.Direction),
			now,
			existingID,
		); err != nil {
			return false, fmt.Errorf("update vote: %w", err)
		}
		vote.ID = existingID
	case errors.Is(err, sql.ErrNoRows):
		if created, err = insertVote(ctx, tx, vote, now); err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("find vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit vote: %w", err)
	}
	return created, nil
}

// insertVote inserts the vote, or updates the row a concurrent writer inserted
// first. It reports whether this call created the row.
func insertVote(ctx context.Context, tx *sql.Tx, vote *domain.Vote, now time.Time) (bool, error) {
	err := tx.QueryRowContext(ctx, `
INSERT INTO votes (user_id, answer_id, vote_type, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(user_id, answer_id) DO NOTHING
RETURNING id`,
		vote.UserID,
		vote.AnswerID,
		string(vote.Direction),
		now,
		now,
	).Scan(&vote.ID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("insert vote: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `
UPDATE votes SET vote_type = ?, updated_at = ?
WHERE user_id = ? AND answer_id = ?
RETURNING id`,
		string(vote.Direction),
		now,
		vote.UserID,
		vote.AnswerID,
	).Scan(&vote.ID); err != nil {
		return false, fmt.Errorf("update conflicting vote: %w", err)
	}
	return false, nil
}

func (r *VoteRepository) Get(ctx context.Context, userID, answerID int64) (*domain.Vote, error) {
	var (
		vote      domain.Vote
		direction string
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, user_id, answer_id, vote_type FROM votes WHERE user_id = ? AND answer_id = ?`,
		userID,
		answerID,
	).Scan(&vote.ID, &vote.UserID, &vote.AnswerID, &direction)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("vote")
		}
		return nil, fmt.Errorf("scan vote: %w", err)
	}
	vote.Direction = domain.VoteDirection(direction)
	return &vote, nil
}

func (r *VoteRepository) Tally(ctx context.Context, answerID int64) (domain.VoteTally, error) {
	tally := domain.VoteTally{AnswerID: answerID}
	err := r.db.QueryRowContext(ctx, `
SELECT
	COALESCE(SUM(CASE WHEN vote_type = ? THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN vote_type = ? THEN 1 ELSE 0 END), 0)
FROM votes
WHERE answer_id = ?`,
		string(domain.VoteUp),
		string(domain.VoteDown),
		answerID,
	).Scan(&tally.Up, &tally.Down)
	if err != nil {
		return domain.VoteTally{}, fmt.Errorf("tally votes: %w", err)
	}
	return tally, nil
}
