// Package posts persists saved blog drafts in Postgres.
package posts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quill/pkg/logging"
	"quill/pkg/models"
)

// ErrNotFound is returned when no saved post exists for the given id.
var ErrNotFound = errors.New("blog post not found")

const listLimit = 10

type Store struct {
	db     *sql.DB
	logger logging.Logger
}

func NewStore(db *sql.DB, logger logging.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// CreateInput carries the caller-supplied fields of a new saved post.
// Status always starts as draft.
type CreateInput struct {
	Title       string
	Content     string
	SourcePosts []models.SocialPost
	Author      string
}

// UpdateInput carries the mutable fields of a saved post. UpdatedAt is
// caller-supplied; the store writes it as given rather than stamping its
// own clock.
type UpdateInput struct {
	Title     string
	Content   string
	Status    string
	UpdatedAt time.Time
}

func (s *Store) Create(ctx context.Context, input CreateInput) (models.SavedPost, error) {
	sourceJSON, err := marshalSourcePosts(input.SourcePosts)
	if err != nil {
		return models.SavedPost{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO blog_posts (title, content, source_posts, author)
		VALUES ($1, $2, $3, $4)
		RETURNING id, title, content, source_posts, status, author, created_at, updated_at`,
		input.Title, input.Content, sourceJSON, input.Author)

	post, err := scanPost(row)
	if err != nil {
		return models.SavedPost{}, fmt.Errorf("create blog post: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"post_id": post.ID,
		"title":   post.Title,
	}).Info("Saved blog post")
	return post, nil
}

// List returns the most recent saved posts, newest first, capped at 10.
func (s *Store) List(ctx context.Context) ([]models.SavedPost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, source_posts, status, author, created_at, updated_at
		FROM blog_posts
		ORDER BY created_at DESC
		LIMIT $1`, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}
	defer rows.Close()

	result := make([]models.SavedPost, 0, listLimit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("list blog posts: %w", err)
		}
		result = append(result, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}
	return result, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.SavedPost, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, source_posts, status, author, created_at, updated_at
		FROM blog_posts
		WHERE id = $1`, id)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SavedPost{}, ErrNotFound
	}
	if err != nil {
		return models.SavedPost{}, fmt.Errorf("get blog post: %w", err)
	}
	return post, nil
}

func (s *Store) Update(ctx context.Context, id string, input UpdateInput) (models.SavedPost, error) {
	if !models.ValidStatus(input.Status) {
		return models.SavedPost{}, fmt.Errorf("invalid status %q", input.Status)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE blog_posts
		SET title = $2, content = $3, status = $4, updated_at = $5
		WHERE id = $1
		RETURNING id, title, content, source_posts, status, author, created_at, updated_at`,
		id, input.Title, input.Content, input.Status, input.UpdatedAt)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SavedPost{}, ErrNotFound
	}
	if err != nil {
		return models.SavedPost{}, fmt.Errorf("update blog post: %w", err)
	}
	return post, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPost(row scannable) (models.SavedPost, error) {
	var post models.SavedPost
	var sourceJSON []byte
	err := row.Scan(&post.ID, &post.Title, &post.Content, &sourceJSON,
		&post.Status, &post.Author, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return models.SavedPost{}, err
	}

	if len(sourceJSON) > 0 {
		if err := json.Unmarshal(sourceJSON, &post.SourcePosts); err != nil {
			return models.SavedPost{}, fmt.Errorf("decode source posts: %w", err)
		}
	}
	return post, nil
}

func marshalSourcePosts(sourcePosts []models.SocialPost) ([]byte, error) {
	if sourcePosts == nil {
		sourcePosts = []models.SocialPost{}
	}
	data, err := json.Marshal(sourcePosts)
	if err != nil {
		return nil, fmt.Errorf("encode source posts: %w", err)
	}
	return data, nil
}
