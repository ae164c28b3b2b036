// Package pipeline sequences the fetch, organize, and draft stages behind a
// single entry point and tags every failure with the stage it occurred in.
package pipeline

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"quill/internal/feed"
	"quill/pkg/logging"
	"quill/pkg/models"
)

// Fetcher retrieves posts for a handle. Satisfied by *feed.Client.
type Fetcher interface {
	ResolveUserID(ctx context.Context, handle string) (string, error)
	FetchFilteredPosts(ctx context.Context, userID string, opts feed.FilterOptions) ([]models.SocialPost, error)
}

// Organizer clusters posts into themes. Satisfied by *organizer.Organizer.
type Organizer interface {
	Organize(ctx context.Context, posts []models.SocialPost) (models.OrganizedContent, error)
}

// Drafter produces a blog draft from organized themes. Satisfied by
// *drafter.Drafter.
type Drafter interface {
	GenerateDraft(ctx context.Context, content models.OrganizedContent) (string, error)
}

// Metrics holds the pipeline's prometheus instruments. All fields are
// optional; a nil Metrics disables instrumentation entirely.
type Metrics struct {
	Runs          *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
}

type Pipeline struct {
	fetcher   Fetcher
	organizer Organizer
	drafter   Drafter
	metrics   *Metrics
	logger    logging.Logger
}

func New(fetcher Fetcher, organizer Organizer, drafter Drafter, metrics *Metrics, logger logging.Logger) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		organizer: organizer,
		drafter:   drafter,
		metrics:   metrics,
		logger:    logger,
	}
}

// Result is the outcome of generating a draft from caller-supplied posts.
type Result struct {
	Draft  string
	Themes []models.Theme
}

// RunRequest drives the diagnostic full-pipeline run. Posts, when non-empty,
// short-circuits the fetch stage; otherwise Handle plus the filter knobs
// select what to fetch.
type RunRequest struct {
	Handle        string
	MinEngagement int
	MaxResults    int
	Posts         []models.SocialPost
}

// RunResult carries every intermediate artifact of a full run.
type RunResult struct {
	Posts  []models.SocialPost
	Themes []models.Theme
	Draft  string
}

// Generate organizes the supplied posts and drafts a blog post from the
// themes. The stages run strictly in order; a drafting failure discards the
// organized themes and the whole request must be resubmitted. Empty input is
// rejected before any model call.
func (p *Pipeline) Generate(ctx context.Context, posts []models.SocialPost) (Result, error) {
	if len(posts) == 0 {
		return Result{}, &ValidationError{Message: "no posts available to process"}
	}

	content, err := p.runOrganize(ctx, posts)
	if err != nil {
		return Result{}, err
	}

	draft, err := p.runDraft(ctx, content)
	if err != nil {
		return Result{}, err
	}

	p.countRun("success", StageDone)
	return Result{Draft: draft, Themes: content.Themes}, nil
}

// Run executes the full pipeline, fetching posts first unless the request
// supplies them directly.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	posts := req.Posts
	if len(posts) == 0 {
		if req.Handle == "" {
			return RunResult{}, &ValidationError{Message: "no posts available to process"}
		}

		fetched, err := p.runFetch(ctx, req)
		if err != nil {
			return RunResult{}, err
		}
		posts = fetched
	}

	if len(posts) == 0 {
		p.countRun("failure", StageFetchingPosts)
		return RunResult{}, &ValidationError{Message: "no posts available to process"}
	}

	content, err := p.runOrganize(ctx, posts)
	if err != nil {
		return RunResult{}, err
	}

	draft, err := p.runDraft(ctx, content)
	if err != nil {
		return RunResult{}, err
	}

	p.countRun("success", StageDone)
	return RunResult{Posts: posts, Themes: content.Themes, Draft: draft}, nil
}

func (p *Pipeline) runFetch(ctx context.Context, req RunRequest) ([]models.SocialPost, error) {
	done := p.timeStage(StageFetchingPosts)
	defer done()

	userID, err := p.fetcher.ResolveUserID(ctx, req.Handle)
	if err != nil {
		p.countRun("failure", StageFetchingPosts)
		return nil, wrapStage(StageFetchingPosts, err)
	}

	posts, err := p.fetcher.FetchFilteredPosts(ctx, userID, feed.FilterOptions{
		MinEngagement: req.MinEngagement,
		MaxResults:    req.MaxResults,
	})
	if err != nil {
		p.countRun("failure", StageFetchingPosts)
		return nil, wrapStage(StageFetchingPosts, err)
	}

	if p.logger != nil {
		p.logger.WithFields(logging.Fields{
			"handle": req.Handle,
			"posts":  len(posts),
		}).Info("Fetched posts for pipeline run")
	}
	return posts, nil
}

func (p *Pipeline) runOrganize(ctx context.Context, posts []models.SocialPost) (models.OrganizedContent, error) {
	done := p.timeStage(StageOrganizing)
	defer done()

	content, err := p.organizer.Organize(ctx, posts)
	if err != nil {
		p.countRun("failure", StageOrganizing)
		return models.OrganizedContent{}, wrapStage(StageOrganizing, err)
	}
	return content, nil
}

func (p *Pipeline) runDraft(ctx context.Context, content models.OrganizedContent) (string, error) {
	done := p.timeStage(StageDrafting)
	defer done()

	draft, err := p.drafter.GenerateDraft(ctx, content)
	if err != nil {
		p.countRun("failure", StageDrafting)
		return "", wrapStage(StageDrafting, err)
	}
	return draft, nil
}

func (p *Pipeline) countRun(status string, stage Stage) {
	if p.metrics == nil || p.metrics.Runs == nil {
		return
	}
	p.metrics.Runs.WithLabelValues(status, string(stage)).Inc()
}

func (p *Pipeline) timeStage(stage Stage) func() {
	if p.metrics == nil || p.metrics.StageDuration == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}
