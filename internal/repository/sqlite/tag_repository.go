package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stackit/internal/domain"
	"stackit/internal/repository"
)

const createTagsTables = `
CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE
);
CREATE TABLE IF NOT EXISTS question_tags (
	question_id INTEGER NOT NULL,
	tag_id INTEGER NOT NULL,
	PRIMARY KEY (question_id, tag_id),
	FOREIGN KEY(question_id) REFERENCES questions(id),
	FOREIGN KEY(tag_id) REFERENCES tags(id)
);
CREATE INDEX IF NOT EXISTS idx_question_tags_tag_id ON question_tags(tag_id);
`

type TagRepository struct {
	db *sql.DB
}

func NewTagRepository(db *sql.DB) repository.TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTagsTables); err != nil {
		return fmt.Errorf("create tags tables: %w", err)
	}
	return nil
}

func (r *TagRepository) Create(ctx context.Context, name string) (*domain.Tag, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("tag %q already exists: %w", name, domain.ErrConflict)
		}
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("tag last insert id: %w", err)
	}
	return &domain.Tag{ID: id, Name: name}, nil
}

func (r *TagRepository) List(ctx context.Context) ([]domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()
	return collectTags(rows)
}

func (r *TagRepository) ListByQuestion(ctx context.Context, questionID int64) ([]domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT t.id, t.name
FROM tags t
JOIN question_tags qt ON qt.tag_id = t.id
WHERE qt.question_id = ?
ORDER BY t.name ASC`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query question tags: %w", err)
	}
	defer rows.Close()
	return collectTags(rows)
}

func collectTags(rows *sql.Rows) ([]domain.Tag, error) {
	var tags []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func findOrCreateTag(ctx context.Context, tx *sql.Tx, name string) (*domain.Tag, error) {
	tag := domain.Tag{Name: name}
	err := tx.QueryRowContext(ctx, `SELECT id, name FROM tags WHERE name = ?`, name).Scan(&tag.ID, &tag.Name)
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find tag %q: %w", name, err)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert tag %q: %w", name, err)
	}
	if tag.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("tag last insert id: %w", err)
	}
	return &tag, nil
}
