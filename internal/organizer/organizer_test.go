package organizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"quill/pkg/llm"
	"quill/pkg/logging"
	"quill/pkg/models"
)

type stubProvider struct {
	response string
	err      error
	lastReq  llm.Request
}

func (s *stubProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	s.lastReq = req
	return s.response, s.err
}

func testLogger() logging.Logger {
	logger := logging.NewLogger()
	logger.SetOutput(&strings.Builder{})
	return logger
}

func TestOrganizeParsesThemes(t *testing.T) {
	stub := &stubProvider{response: `{
		"themes": [{
			"name": "Distributed Systems",
			"description": "Posts about consensus",
			"posts": ["raft is neat", "paxos is hard"],
			"context": "Both discuss replication"
		}]
	}`}

	org := New(stub, testLogger())
	content, err := org.Organize(context.Background(), []models.SocialPost{
		{ID: "1", Text: "raft is neat"},
		{ID: "2", Text: "paxos is hard"},
	})
	if err != nil {
		t.Fatalf("Organize returned error: %v", err)
	}
	if len(content.Themes) != 1 {
		t.Fatalf("expected 1 theme, got %d", len(content.Themes))
	}
	theme := content.Themes[0]
	if theme.Name != "Distributed Systems" {
		t.Errorf("unexpected theme name %q", theme.Name)
	}
	if len(theme.Posts) != 2 || theme.Posts[0] != "raft is neat" {
		t.Errorf("unexpected theme posts %v", theme.Posts)
	}

	if stub.lastReq.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %v", stub.lastReq.Temperature)
	}
	if len(stub.lastReq.Messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(stub.lastReq.Messages))
	}
	user := stub.lastReq.Messages[1].Content
	if !strings.Contains(user, "raft is neat") || !strings.Contains(user, "paxos is hard") {
		t.Errorf("prompt missing post texts:\n%s", user)
	}
}

func TestOrganizeStripsCodeFence(t *testing.T) {
	stub := &stubProvider{response: "```json\n{\"themes\": []}\n```"}

	content, err := New(stub, testLogger()).Organize(context.Background(), nil)
	if err != nil {
		t.Fatalf("Organize returned error: %v", err)
	}
	if len(content.Themes) != 0 {
		t.Fatalf("expected no themes, got %d", len(content.Themes))
	}
}

func TestOrganizeMalformedOutput(t *testing.T) {
	cases := map[string]string{
		"not json":        "here are your themes!",
		"missing themes":  `{}`,
		"unknown fields":  `{"themes": [], "extra": true}`,
		"unnamed theme":   `{"themes": [{"name": "", "posts": []}]}`,
		"wrong shape":     `{"themes": {"name": "x"}}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			stub := &stubProvider{response: raw}
			_, err := New(stub, testLogger()).Organize(context.Background(), nil)

			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.Raw != raw {
				t.Errorf("ParseError.Raw = %q, want %q", parseErr.Raw, raw)
			}
		})
	}
}

func TestOrganizePropagatesProviderError(t *testing.T) {
	apiErr := &llm.APIError{Provider: "openai", StatusCode: 500, Body: "boom"}
	stub := &stubProvider{err: apiErr}

	_, err := New(stub, testLogger()).Organize(context.Background(), nil)
	var got *llm.APIError
	if !errors.As(err, &got) {
		t.Fatalf("expected APIError to propagate, got %v", err)
	}
	if got.StatusCode != 500 {
		t.Errorf("unexpected status %d", got.StatusCode)
	}
}
