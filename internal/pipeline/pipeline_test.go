package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"quill/internal/feed"
	"quill/internal/organizer"
	"quill/pkg/llm"
	"quill/pkg/logging"
	"quill/pkg/models"
)

type stubFetcher struct {
	userID     string
	resolveErr error
	posts      []models.SocialPost
	fetchErr   error
	lastOpts   feed.FilterOptions
}

func (s *stubFetcher) ResolveUserID(_ context.Context, _ string) (string, error) {
	return s.userID, s.resolveErr
}

func (s *stubFetcher) FetchFilteredPosts(_ context.Context, _ string, opts feed.FilterOptions) ([]models.SocialPost, error) {
	s.lastOpts = opts
	return s.posts, s.fetchErr
}

type stubOrganizer struct {
	content models.OrganizedContent
	err     error
	calls   int
}

func (s *stubOrganizer) Organize(_ context.Context, _ []models.SocialPost) (models.OrganizedContent, error) {
	s.calls++
	return s.content, s.err
}

type stubDrafter struct {
	draft string
	err   error
	calls int
}

func (s *stubDrafter) GenerateDraft(_ context.Context, _ models.OrganizedContent) (string, error) {
	s.calls++
	return s.draft, s.err
}

func testLogger() logging.Logger {
	logger := logging.NewLogger()
	logger.SetOutput(&strings.Builder{})
	return logger
}

func themedContent() models.OrganizedContent {
	return models.OrganizedContent{Themes: []models.Theme{
		{Name: "T1", Description: "d", Posts: []string{"A", "B"}, Context: "c"},
	}}
}

func TestGenerateSuccess(t *testing.T) {
	org := &stubOrganizer{content: themedContent()}
	dr := &stubDrafter{draft: "Title\n\nBody"}
	p := New(nil, org, dr, nil, testLogger())

	result, err := p.Generate(context.Background(), []models.SocialPost{
		{ID: "1", Text: "A"}, {ID: "2", Text: "B"},
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if result.Draft != "Title\n\nBody" {
		t.Errorf("draft = %q", result.Draft)
	}
	if len(result.Themes) != 1 || result.Themes[0].Name != "T1" {
		t.Errorf("themes = %+v", result.Themes)
	}
}

func TestGenerateEmptyPostsRejectedBeforeOrganizing(t *testing.T) {
	org := &stubOrganizer{content: themedContent()}
	p := New(nil, org, &stubDrafter{draft: "x"}, nil, testLogger())

	_, err := p.Generate(context.Background(), nil)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if org.calls != 0 {
		t.Errorf("organizer was called %d times for empty input", org.calls)
	}
}

func TestGenerateOrganizingFailureTagged(t *testing.T) {
	parseErr := &organizer.ParseError{Err: errors.New("bad json"), Raw: "oops"}
	p := New(nil, &stubOrganizer{err: parseErr}, &stubDrafter{}, nil, testLogger())

	_, err := p.Generate(context.Background(), []models.SocialPost{{ID: "1", Text: "A"}})
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if se.Stage != StageOrganizing {
		t.Errorf("stage = %q, want %q", se.Stage, StageOrganizing)
	}
	var pe *organizer.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("cause should remain reachable via errors.As")
	}
}

func TestGenerateDraftingFailureDiscardsThemes(t *testing.T) {
	org := &stubOrganizer{content: themedContent()}
	dr := &stubDrafter{err: &llm.APIError{Provider: "anthropic", StatusCode: 529, Body: "overloaded"}}
	p := New(nil, org, dr, nil, testLogger())

	_, err := p.Generate(context.Background(), []models.SocialPost{{ID: "1", Text: "A"}})
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if se.Stage != StageDrafting {
		t.Errorf("stage = %q, want %q", se.Stage, StageDrafting)
	}
	if se.Status != 529 || se.Details != "overloaded" {
		t.Errorf("upstream diagnostics not carried: status=%d details=%q", se.Status, se.Details)
	}
}

func TestRunFetchesWhenPostsAbsent(t *testing.T) {
	fetcher := &stubFetcher{
		userID: "42",
		posts:  []models.SocialPost{{ID: "1", Text: "A"}},
	}
	org := &stubOrganizer{content: themedContent()}
	dr := &stubDrafter{draft: "draft"}
	p := New(fetcher, org, dr, nil, testLogger())

	result, err := p.Run(context.Background(), RunRequest{
		Handle:        "someone",
		MinEngagement: 5,
		MaxResults:    10,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if fetcher.lastOpts.MinEngagement != 5 || fetcher.lastOpts.MaxResults != 10 {
		t.Errorf("filter options not forwarded: %+v", fetcher.lastOpts)
	}
	if len(result.Posts) != 1 || result.Draft != "draft" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestRunSuppliedPostsSkipFetch(t *testing.T) {
	fetcher := &stubFetcher{resolveErr: errors.New("should not be called")}
	p := New(fetcher, &stubOrganizer{content: themedContent()}, &stubDrafter{draft: "d"}, nil, testLogger())

	result, err := p.Run(context.Background(), RunRequest{
		Posts: []models.SocialPost{{ID: "1", Text: "A"}},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Posts) != 1 {
		t.Errorf("unexpected posts %+v", result.Posts)
	}
}

func TestRunNoHandleNoPosts(t *testing.T) {
	p := New(&stubFetcher{}, &stubOrganizer{}, &stubDrafter{}, nil, testLogger())

	_, err := p.Run(context.Background(), RunRequest{})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRunFetchFailureTagged(t *testing.T) {
	fetcher := &stubFetcher{
		userID:   "42",
		fetchErr: &feed.UpstreamError{StatusCode: 403, Body: "forbidden"},
	}
	org := &stubOrganizer{}
	p := New(fetcher, org, &stubDrafter{}, nil, testLogger())

	_, err := p.Run(context.Background(), RunRequest{Handle: "someone"})
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if se.Stage != StageFetchingPosts {
		t.Errorf("stage = %q", se.Stage)
	}
	if se.Status != 403 {
		t.Errorf("status = %d, want 403", se.Status)
	}
	if org.calls != 0 {
		t.Errorf("organizing started after a fetch failure")
	}
}

func TestRunEmptyFetchRejected(t *testing.T) {
	fetcher := &stubFetcher{userID: "42", posts: nil}
	org := &stubOrganizer{}
	p := New(fetcher, org, &stubDrafter{}, nil, testLogger())

	_, err := p.Run(context.Background(), RunRequest{Handle: "someone"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if org.calls != 0 {
		t.Errorf("organizing started with no posts")
	}
}
