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

const createAnswersTable = `
CREATE TABLE IF NOT EXISTS answers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	description TEXT NOT NULL,
	user_id INTEGER NOT NULL,
	question_id INTEGER NOT NULL,
	is_accepted INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id),
	FOREIGN KEY(question_id) REFERENCES questions(id)
);
CREATE INDEX IF NOT EXISTS idx_answers_question_id ON answers(question_id);
`

const selectAnswer = `
SELECT a.id, a.description, a.user_id, a.question_id, a.is_accepted, a.created_at,
	u.id, u.username, u.email, u.role, u.created_at, u.updated_at
FROM answers a
JOIN users u ON u.id = a.user_id`

type AnswerRepository struct {
	db *sql.DB
}

func NewAnswerRepository(db *sql.DB) repository.AnswerRepository {
	return &AnswerRepository{db: db}
}

func (r *AnswerRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAnswersTable); err != nil {
		return fmt.Errorf("create answers table: %w", err)
	}
	return nil
}

func (r *AnswerRepository) CreateWithNotifications(ctx context.Context, answer *domain.Answer, batch []domain.Notification) (int64, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	res, err := tx.ExecContext(ctx, `
INSERT INTO answers (description, user_id, question_id, is_accepted, created_at)
VALUES (?, ?, ?, 0, ?)`,
		answer.Description,
		answer.UserID,
		answer.QuestionID,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert answer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("answer last insert id: %w", err)
	}

	if err := insertNotifications(ctx, tx, batch, now); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit answer: %w", err)
	}

	answer.ID = id
	answer.Accepted = false
	answer.CreatedAt = now
	return id, nil
}

func (r *AnswerRepository) Get(ctx context.Context, id int64) (*domain.Answer, error) {
	row := r.db.QueryRowContext(ctx, selectAnswer+`
WHERE a.id = ?`, id)
	return scanAnswer(row)
}

func (r *AnswerRepository) ListByQuestion(ctx context.Context, questionID int64) ([]domain.Answer, error) {
	rows, err := r.db.QueryContext(ctx, selectAnswer+`
WHERE a.question_id = ?
ORDER BY a.is_accepted DESC, a.created_at ASC, a.id ASC`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, *a)
	}
	return answers, rows.Err()
}

func (r *AnswerRepository) MarkAccepted(ctx context.Context, id int64, exclusive bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var questionID int64
	if err := tx.QueryRowContext(ctx, `SELECT question_id FROM answers WHERE id = ?`, id).Scan(&questionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("answer")
		}
		return fmt.Errorf("find answer: %w", err)
	}

	if exclusive {
		if _, err := tx.ExecContext(ctx, `
UPDATE answers SET is_accepted = 0
WHERE question_id = ? AND id <> ? AND is_accepted = 1`, questionID, id); err != nil {
			return fmt.Errorf("clear accepted answers: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE answers SET is_accepted = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("accept answer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accept: %w", err)
	}
	return nil
}

func scanAnswer(row scanner) (*domain.Answer, error) {
	var (
		a      domain.Answer
		author domain.User
		role   string
	)
	if err := row.Scan(
		&a.ID,
		&a.Description,
		&a.UserID,
		&a.QuestionID,
		&a.Accepted,
		&a.CreatedAt,
		&author.ID,
		&author.Username,
		&author.Email,
		&role,
		&author.CreatedAt,
		&author.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("answer")
		}
		return nil, fmt.Errorf("scan answer: %w", err)
	}
	author.Role = domain.Role(role)
	a.Author = &author
	return &a, nil
}
