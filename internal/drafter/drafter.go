// Package drafter turns organized themes into a long-form blog draft via a
// text-generation model.
package drafter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quill/pkg/llm"
	"quill/pkg/logging"
	"quill/pkg/models"
)

type Drafter struct {
	provider llm.Provider
	logger   logging.Logger
}

func New(provider llm.Provider, logger logging.Logger) *Drafter {
	return &Drafter{provider: provider, logger: logger}
}

// GenerateDraft asks the model for a complete blog post built from the
// organized themes and returns the text verbatim. No post-processing or
// validation of the draft's structure is attempted; an empty completion is
// an error. Failures are not retried.
func (d *Drafter) GenerateDraft(ctx context.Context, content models.OrganizedContent) (string, error) {
	if d.provider == nil {
		return "", errors.New("drafter provider is required")
	}

	draft, err := d.provider.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: buildPrompt(content)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate draft: %w", err)
	}
	if strings.TrimSpace(draft) == "" {
		return "", errors.New("drafter returned an empty completion")
	}

	if d.logger != nil {
		d.logger.WithField("draft_length", len(draft)).Debug("Generated blog draft")
	}
	return draft, nil
}

func buildPrompt(content models.OrganizedContent) string {
	var b strings.Builder
	b.WriteString("Write a cohesive blog post draft from the following themes. ")
	b.WriteString("Include a title, an introduction, a body section per theme, and a conclusion. ")
	b.WriteString("Write in a reflective first-person voice and weave the source posts into the narrative.\n\n")

	if len(content.Themes) == 0 {
		b.WriteString("There are no themes; write a short placeholder draft acknowledging an empty source set.\n")
		return b.String()
	}

	for i, theme := range content.Themes {
		fmt.Fprintf(&b, "Theme %d: %s\n", i+1, theme.Name)
		if theme.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", theme.Description)
		}
		if theme.Context != "" {
			fmt.Fprintf(&b, "Context: %s\n", theme.Context)
		}
		for _, post := range theme.Posts {
			fmt.Fprintf(&b, "- %s\n", post)
		}
		b.WriteString("\n")
	}
	return b.String()
}
