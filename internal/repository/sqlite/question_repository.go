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

const createQuestionsTable = `
CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	user_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_questions_created_at ON questions(created_at);
`

const selectQuestion = `
SELECT q.id, q.title, q.description, q.user_id, q.created_at,
	u.id, u.username, u.email, u.role, u.created_at, u.updated_at
FROM questions q
JOIN users u ON u.id = q.user_id`

type QuestionRepository struct {
	db *sql.DB
}

func NewQuestionRepository(db *sql.DB) repository.QuestionRepository {
	return &QuestionRepository{db: db}
}

func (r *QuestionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createQuestionsTable); err != nil {
		return fmt.Errorf("create questions table: %w", err)
	}
	return nil
}

func (r *QuestionRepository) Create(ctx context.Context, question *domain.Question, tagNames []string) (int64, error) {
	question.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	res, err := tx.ExecContext(ctx, `
INSERT INTO questions (title, description, user_id, created_at)
VALUES (?, ?, ?, ?)`,
		question.Title,
		question.Description,
		question.UserID,
		question.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("question last insert id: %w", err)
	}

	tags := make([]domain.Tag, 0, len(tagNames))
	for _, name := range tagNames {
		tag, err := findOrCreateTag(ctx, tx, name)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO question_tags (question_id, tag_id) VALUES (?, ?)`,
			id,
			tag.ID,
		); err != nil {
			return 0, fmt.Errorf("link tag %q: %w", name, err)
		}
		tags = append(tags, *tag)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit question: %w", err)
	}

	question.ID = id
	question.Tags = tags
	return id, nil
}

func (r *QuestionRepository) Get(ctx context.Context, id int64) (*domain.Question, error) {
	row := r.db.QueryRowContext(ctx, selectQuestion+`
WHERE q.id = ?`, id)
	return scanQuestion(row)
}

func (r *QuestionRepository) List(ctx context.Context, limit, offset int) ([]domain.Question, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count questions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, selectQuestion+`
ORDER BY q.created_at DESC, q.id DESC
LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		questions = append(questions, *q)
	}
	return questions, total, rows.Err()
}

func scanQuestion(row scanner) (*domain.Question, error) {
	var (
		q      domain.Question
		author domain.User
		role   string
	)
	if err := row.Scan(
		&q.ID,
		&q.Title,
		&q.Description,
		&q.UserID,
		&q.CreatedAt,
		&author.ID,
		&author.Username,
		&author.Email,
		&role,
		&author.CreatedAt,
		&author.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("question")
		}
		return nil, fmt.Errorf("scan question: %w", err)
	}
	author.Role = domain.Role(role)
	q.Author = &author
	return &q, nil
}
