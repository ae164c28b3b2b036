package models

import (
	"time"
)

// SocialPost is a single short message fetched from the external social
// platform. CreatedAt carries the provider's timestamp string verbatim;
// providers are not consistent about formats, so parsing is left to the
// point of use.
type SocialPost struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

// Theme is a model-inferred cluster of related posts. Posts holds the raw
// post texts, not ids: if the organizing model paraphrases a text the link
// back to its SocialPost breaks silently. Known limitation.
type Theme struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Posts       []string `json:"posts"`
	Context     string   `json:"context"`
}

// OrganizedContent wraps the organizer's output. Themes may be empty when
// no posts were supplied or the model found no clusters.
type OrganizedContent struct {
	Themes []Theme `json:"themes"`
}

// SavedPost statuses. No other values exist.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// SavedPost is a persisted blog draft.
type SavedPost struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	SourcePosts []SocialPost `json:"sourcePosts"`
	Status      string       `json:"status"`
	Author      string       `json:"author"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// ValidStatus reports whether s is one of the two saved-post statuses.
func ValidStatus(s string) bool {
	return s == StatusDraft || s == StatusPublished
}
