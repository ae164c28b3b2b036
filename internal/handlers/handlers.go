// Package handlers exposes the blog-generation pipeline and the saved-post
// store over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quill/internal/feed"
	"quill/internal/pipeline"
	"quill/internal/posts"
	"quill/pkg/logging"
	"quill/pkg/middleware"
	"quill/pkg/models"
)

// Defaults for the diagnostic pipeline run when the caller omits filters.
const (
	defaultMinEngagement = 5
	defaultMaxResults    = 10
)

// FeedClient is the slice of *feed.Client the handlers use directly.
type FeedClient interface {
	ResolveUserID(ctx context.Context, handle string) (string, error)
	FetchRecentPosts(ctx context.Context, userID string, window *feed.Window) ([]models.SocialPost, error)
}

// Runner is the pipeline surface. Satisfied by *pipeline.Pipeline.
type Runner interface {
	Generate(ctx context.Context, posts []models.SocialPost) (pipeline.Result, error)
	Run(ctx context.Context, req pipeline.RunRequest) (pipeline.RunResult, error)
}

// PostStore is the saved-post persistence surface. Satisfied by *posts.Store.
type PostStore interface {
	Create(ctx context.Context, input posts.CreateInput) (models.SavedPost, error)
	List(ctx context.Context) ([]models.SavedPost, error)
	Get(ctx context.Context, id string) (models.SavedPost, error)
	Update(ctx context.Context, id string, input posts.UpdateInput) (models.SavedPost, error)
}

type Handlers struct {
	pipeline      Runner
	feed          FeedClient
	store         PostStore
	defaultUserID string
	logger        logging.Logger
}

func New(runner Runner, feedClient FeedClient, store PostStore, defaultUserID string, logger logging.Logger) *Handlers {
	return &Handlers{
		pipeline:      runner,
		feed:          feedClient,
		store:         store,
		defaultUserID: defaultUserID,
		logger:        logger,
	}
}

// RegisterRoutes attaches every route to the router.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.POST("/generate-blog", h.GenerateBlog)
	router.POST("/test-pipeline", h.TestPipeline)
	router.GET("/posts", h.GetDefaultPosts)
	router.GET("/posts/:handle", h.GetPosts)
	router.POST("/saved-posts", h.CreateSavedPost)
	router.GET("/saved-posts", h.ListSavedPosts)
	router.GET("/saved-posts/:id", h.GetSavedPost)
	router.PUT("/saved-posts/:id", h.UpdateSavedPost)
}

// GenerateBlog organizes caller-supplied posts into themes and drafts a
// blog post from them.
func (h *Handlers) GenerateBlog(c middleware.Context) {
	var req struct {
		Posts []models.SocialPost `json:"posts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	result, err := h.pipeline.Generate(c.Request.Context(), req.Posts)
	if err != nil {
		h.writePipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, middleware.H{
		"draft":  result.Draft,
		"themes": result.Themes,
	})
}

// TestPipeline runs the full fetch-organize-draft chain and returns every
// intermediate artifact. Diagnostic entry point, not the production path.
func (h *Handlers) TestPipeline(c middleware.Context) {
	var req struct {
		Handle        string              `json:"handle"`
		MinEngagement *int                `json:"minEngagement"`
		MaxResults    *int                `json:"maxResults"`
		Posts         []models.SocialPost `json:"posts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}

	run := pipeline.RunRequest{
		Handle:        req.Handle,
		MinEngagement: defaultMinEngagement,
		MaxResults:    defaultMaxResults,
		Posts:         req.Posts,
	}
	if req.MinEngagement != nil {
		run.MinEngagement = *req.MinEngagement
	}
	if req.MaxResults != nil {
		run.MaxResults = *req.MaxResults
	}

	result, err := h.pipeline.Run(c.Request.Context(), run)
	if err != nil {
		h.writePipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, middleware.H{
		"originalPosts":   result.Posts,
		"organizedThemes": result.Themes,
		"draft":           result.Draft,
	})
}

// GetPosts returns today's posts for the given handle.
func (h *Handlers) GetPosts(c middleware.Context) {
	handle := c.Param("handle")

	userID, err := h.feed.ResolveUserID(c.Request.Context(), handle)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.respondPosts(c, userID)
}

// GetDefaultPosts returns today's posts for the configured account.
func (h *Handlers) GetDefaultPosts(c middleware.Context) {
	if h.defaultUserID == "" {
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "no default feed account configured"})
		return
	}
	h.respondPosts(c, h.defaultUserID)
}

func (h *Handlers) respondPosts(c middleware.Context, userID string) {
	fetched, err := h.feed.FetchRecentPosts(c.Request.Context(), userID, nil)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fetched)
}

// CreateSavedPost persists a new draft.
func (h *Handlers) CreateSavedPost(c middleware.Context) {
	var req struct {
		Title       string              `json:"title"`
		Content     string              `json:"content"`
		SourcePosts []models.SocialPost `json:"sourcePosts"`
		Author      string              `json:"author"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}
	if req.Title == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "title and content are required"})
		return
	}

	post, err := h.store.Create(c.Request.Context(), posts.CreateInput{
		Title:       req.Title,
		Content:     req.Content,
		SourcePosts: req.SourcePosts,
		Author:      req.Author,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, post)
}

// ListSavedPosts returns the latest saved posts, newest first.
func (h *Handlers) ListSavedPosts(c middleware.Context) {
	result, err := h.store.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) GetSavedPost(c middleware.Context) {
	post, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// UpdateSavedPost replaces a saved post's mutable fields. The updatedAt
// timestamp comes from the caller when supplied; the server clock is only a
// fallback.
func (h *Handlers) UpdateSavedPost(c middleware.Context) {
	var req struct {
		Title     string     `json:"title"`
		Content   string     `json:"content"`
		Status    string     `json:"status"`
		UpdatedAt *time.Time `json:"updatedAt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": err.Error()})
		return
	}
	if !models.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "status must be draft or published"})
		return
	}

	updatedAt := time.Now().UTC()
	if req.UpdatedAt != nil {
		updatedAt = *req.UpdatedAt
	}

	post, err := h.store.Update(c.Request.Context(), c.Param("id"), posts.UpdateInput{
		Title:     req.Title,
		Content:   req.Content,
		Status:    req.Status,
		UpdatedAt: updatedAt,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// writePipelineError maps a pipeline failure onto the wire contract:
// validation failures are 400s, stage-tagged failures carry their stage
// name and the upstream status when one exists, and anything untyped is a
// 500 tagged with the "unknown" stage.
func (h *Handlers) writePipelineError(c middleware.Context, err error) {
	var vErr *pipeline.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, middleware.H{"error": vErr.Message})
		return
	}

	var se *pipeline.StageError
	if errors.As(err, &se) {
		status := http.StatusInternalServerError
		if se.Status > 0 {
			status = se.Status
		}
		body := middleware.H{
			"error": se.Err.Error(),
			"stage": string(se.Stage),
		}
		if se.Details != "" {
			body["details"] = se.Details
		}
		h.logger.WithError(se.Err).WithField("stage", se.Stage).Error("Pipeline request failed")
		c.JSON(status, body)
		return
	}

	h.logger.WithError(err).Error("Pipeline request failed")
	c.JSON(http.StatusInternalServerError, middleware.H{
		"error": err.Error(),
		"stage": string(pipeline.StageUnknown),
	})
}

// writeError maps non-pipeline failures: missing saved posts are 404s,
// upstream feed errors keep their status, everything else is a plain 500.
func (h *Handlers) writeError(c middleware.Context, err error) {
	if errors.Is(err, posts.ErrNotFound) {
		c.JSON(http.StatusNotFound, middleware.H{"error": "Blog post not found"})
		return
	}

	var upstream *feed.UpstreamError
	if errors.As(err, &upstream) {
		h.logger.WithError(err).Error("Feed request failed")
		c.JSON(upstream.StatusCode, middleware.H{"error": err.Error()})
		return
	}

	h.logger.WithError(err).Error("Request failed")
	c.JSON(http.StatusInternalServerError, middleware.H{"error": err.Error()})
}
