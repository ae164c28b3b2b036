package posts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"quill/pkg/logging"
	"quill/pkg/models"
)

func testLogger() logging.Logger {
	logger := logging.NewLogger()
	logger.SetOutput(&strings.Builder{})
	return logger
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return NewStore(db, testLogger()), mock, func() { db.Close() }
}

func postColumns() []string {
	return []string{"id", "title", "content", "source_posts", "status", "author", "created_at", "updated_at"}
}

func TestCreate(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	source := []models.SocialPost{{ID: "1", Text: "A", CreatedAt: "2024-01-01"}}
	sourceJSON, _ := json.Marshal(source)
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO blog_posts`).
		WithArgs("My Post", "Body", sourceJSON, "me").
		WillReturnRows(sqlmock.NewRows(postColumns()).
			AddRow("abc-123", "My Post", "Body", sourceJSON, "draft", "me", now, now))

	post, err := store.Create(context.Background(), CreateInput{
		Title:       "My Post",
		Content:     "Body",
		SourcePosts: source,
		Author:      "me",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if post.ID != "abc-123" || post.Status != models.StatusDraft {
		t.Errorf("unexpected post %+v", post)
	}
	if len(post.SourcePosts) != 1 || post.SourcePosts[0].Text != "A" {
		t.Errorf("source posts not round-tripped: %+v", post.SourcePosts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateNilSourcePosts(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO blog_posts`).
		WithArgs("T", "C", []byte("[]"), "me").
		WillReturnRows(sqlmock.NewRows(postColumns()).
			AddRow("id-1", "T", "C", []byte("[]"), "draft", "me", now, now))

	post, err := store.Create(context.Background(), CreateInput{Title: "T", Content: "C", Author: "me"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(post.SourcePosts) != 0 {
		t.Errorf("expected empty source posts, got %+v", post.SourcePosts)
	}
}

func TestListNewestFirstCapped(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(postColumns()).
		AddRow("b", "Newer", "c2", []byte("[]"), "draft", "me", now, now).
		AddRow("a", "Older", "c1", []byte("[]"), "published", "me", now.Add(-time.Hour), now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT id, title, content, source_posts, status, author, created_at, updated_at\s+FROM blog_posts\s+ORDER BY created_at DESC\s+LIMIT`).
		WithArgs(10).
		WillReturnRows(rows)

	result, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(result) != 2 || result[0].Title != "Newer" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestGetNotFound(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT .* FROM blog_posts\s+WHERE id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUsesCallerSuppliedUpdatedAt(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	updatedAt := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE blog_posts`).
		WithArgs("abc-123", "New Title", "New Body", "published", updatedAt).
		WillReturnRows(sqlmock.NewRows(postColumns()).
			AddRow("abc-123", "New Title", "New Body", []byte("[]"), "published", "me", created, updatedAt))

	post, err := store.Update(context.Background(), "abc-123", UpdateInput{
		Title:     "New Title",
		Content:   "New Body",
		Status:    models.StatusPublished,
		UpdatedAt: updatedAt,
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if post.Status != models.StatusPublished {
		t.Errorf("status = %q", post.Status)
	}
	if !post.UpdatedAt.Equal(updatedAt) {
		t.Errorf("updatedAt = %v, want caller-supplied %v", post.UpdatedAt, updatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`UPDATE blog_posts`).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Update(context.Background(), "missing", UpdateInput{
		Status:    models.StatusDraft,
		UpdatedAt: time.Now(),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRejectsInvalidStatus(t *testing.T) {
	store, _, cleanup := newMockStore(t)
	defer cleanup()

	_, err := store.Update(context.Background(), "abc", UpdateInput{Status: "archived"})
	if err == nil {
		t.Fatal("expected error for invalid status")
	}
}
