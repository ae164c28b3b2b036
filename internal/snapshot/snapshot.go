// Package snapshot persists the most recent feed fetch to a local markdown
// file for debugging and archival. The file is overwritten wholesale on
// every fetch; there is no concurrent-writer protection.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"quill/pkg/models"
)

type Writer struct {
	path string
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

func (w *Writer) Path() string {
	return w.path
}

// Write renders the posts newest-first and replaces the snapshot file.
func (w *Writer) Write(posts []models.SocialPost) error {
	if w.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	sorted := make([]models.SocialPost, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, iOK := parseCreatedAt(sorted[i].CreatedAt)
		tj, jOK := parseCreatedAt(sorted[j].CreatedAt)
		if !iOK || !jOK {
			return false
		}
		return ti.After(tj)
	})

	var b strings.Builder
	for _, post := range sorted {
		b.WriteString(fmt.Sprintf("## %s | topic = []\n%s\n\n---\n\n", displayDate(post.CreatedAt), post.Text))
	}

	if err := os.WriteFile(w.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func parseCreatedAt(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func displayDate(value string) string {
	if t, ok := parseCreatedAt(value); ok {
		return t.UTC().Format("2006-01-02 15:04:05")
	}
	return value
}
