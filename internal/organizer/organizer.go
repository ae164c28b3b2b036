// Package organizer clusters raw post texts into named themes via a
// text-generation model.
package organizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"quill/pkg/llm"
	"quill/pkg/logging"
	"quill/pkg/models"
)

// ParseError is returned when the model's output is not valid JSON of the
// expected shape. It is distinct from a valid response with zero themes.
type ParseError struct {
	Err error
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("organizer output is not valid organized content: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const systemPrompt = "You are an expert at analyzing and organizing content by themes and concepts."

// Temperature kept low for consistent categorization.
const organizeTemperature = 0.3

type Organizer struct {
	provider llm.Provider
	logger   logging.Logger
}

func New(provider llm.Provider, logger logging.Logger) *Organizer {
	return &Organizer{provider: provider, logger: logger}
}

// Organize sends every post text in a single prompt and parses the model's
// response as OrganizedContent. There is no chunking or length guard; a
// large enough post set can exceed the model's context window. Failures
// are not retried.
func (o *Organizer) Organize(ctx context.Context, posts []models.SocialPost) (models.OrganizedContent, error) {
	if o.provider == nil {
		return models.OrganizedContent{}, errors.New("organizer provider is required")
	}

	raw, err := o.provider.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(posts)},
		},
		Temperature: organizeTemperature,
	})
	if err != nil {
		return models.OrganizedContent{}, fmt.Errorf("organize posts: %w", err)
	}

	content, err := parseOrganizedContent(raw)
	if err != nil {
		if o.logger != nil {
			o.logger.WithError(err).Warn("Organizer returned unparseable output")
		}
		return models.OrganizedContent{}, err
	}

	return content, nil
}

func buildPrompt(posts []models.SocialPost) string {
	texts := make([]string, 0, len(posts))
	for _, post := range posts {
		texts = append(texts, post.Text)
	}

	return fmt.Sprintf(`Analyze these posts and organize them into coherent themes or topics.
For each theme:
1. Identify the main concept
2. Group related posts
3. Provide brief context about how they connect

Return the result as a JSON object with this structure:
{
  "themes": [{
    "name": "Theme name",
    "description": "Brief theme description",
    "posts": ["post1", "post2"],
    "context": "How these posts relate to each other"
  }]
}

Posts to analyze:
%s`, strings.Join(texts, "\n\n"))
}

// parseOrganizedContent strictly decodes the model output. The themes key
// must be present (it may be an empty array) and no unknown fields are
// tolerated; any mismatch is a ParseError rather than a silently empty
// result.
func parseOrganizedContent(raw string) (models.OrganizedContent, error) {
	cleaned := stripCodeFence(raw)

	var decoded struct {
		Themes *[]models.Theme `json:"themes"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&decoded); err != nil {
		return models.OrganizedContent{}, &ParseError{Err: err, Raw: raw}
	}
	if decoded.Themes == nil {
		return models.OrganizedContent{}, &ParseError{Err: errors.New("missing themes field"), Raw: raw}
	}

	themes := *decoded.Themes
	for i, theme := range themes {
		if strings.TrimSpace(theme.Name) == "" {
			return models.OrganizedContent{}, &ParseError{Err: fmt.Errorf("theme %d has no name", i), Raw: raw}
		}
	}

	return models.OrganizedContent{Themes: themes}, nil
}

// stripCodeFence removes a surrounding markdown code fence if the model
// wrapped its JSON in one.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
