package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/redis/go-redis/v9"

	"quill/internal/snapshot"
	"quill/pkg/clients"
	"quill/pkg/logging"
	"quill/pkg/models"
)

const (
	// Page size requested from the feed API. The provider caps pages at 100.
	pageSize = 100

	handleCacheTTL = 24 * time.Hour
)

// UpstreamError is returned for any non-2xx, non-429 feed API response.
// Rate limiting (429) is handled internally and never surfaces.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("feed API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("feed API returned status %d: %s", e.StatusCode, body)
}

// Window bounds a fetch to posts created within [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// TodayWindow returns the default fetch window: start of the current UTC
// day through now.
func TodayWindow(now time.Time) Window {
	now = now.UTC()
	return Window{
		Start: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		End:   now,
	}
}

// FilterOptions narrows a diagnostic fetch. MinEngagement is a like-count
// threshold; MaxResults caps the returned slice (<=0 means no cap).
type FilterOptions struct {
	MinEngagement int
	MaxResults    int
}

// Client wraps the social feed REST API behind bearer-token auth. All
// requests run through a rate-limit executor that sleeps until the
// provider's advertised reset time and retries, once per 429 received,
// with no upper bound on consecutive waits.
type Client struct {
	baseURL     string
	bearerToken string
	client      *http.Client
	executor    failsafe.Executor[*http.Response]
	snapshot    *snapshot.Writer
	cache       *redis.Client
	logger      logging.Logger
	now         func() time.Time
	onWait      func(delay time.Duration)
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithHandleCache enables Redis-backed caching of handle resolution.
// Cache failures degrade to a direct lookup.
func WithHandleCache(cache *redis.Client) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRateLimitWaitHook registers a callback invoked with the computed
// delay before each rate-limit wait.
func WithRateLimitWaitHook(hook func(delay time.Duration)) Option {
	return func(c *Client) {
		c.onWait = hook
	}
}

func NewClient(baseURL, bearerToken, snapshotPath string, logger logging.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		bearerToken: bearerToken,
		client:      &http.Client{Timeout: 30 * time.Second},
		snapshot:    snapshot.NewWriter(snapshotPath),
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.executor = clients.NewRateLimitExecutor(clients.RateLimitExecutorConfig{
		OnWait: func(delay time.Duration) {
			if c.logger != nil {
				c.logger.WithField("wait", delay.String()).Warn("Rate limited by feed API; waiting until reset")
			}
			if c.onWait != nil {
				c.onWait(delay)
			}
		},
	})
	return c
}

// ResolveUserID looks up the account id for a human-readable handle.
func (c *Client) ResolveUserID(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", errors.New("handle is required")
	}

	if id, ok := c.cachedUserID(ctx, handle); ok {
		return id, nil
	}

	body, err := c.get(ctx, "/users/by/username/"+url.PathEscape(handle), nil)
	if err != nil {
		return "", err
	}

	var decoded struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode user lookup: %w", err)
	}
	if decoded.Data.ID == "" {
		return "", fmt.Errorf("no user found for handle %q", handle)
	}

	c.storeUserID(ctx, handle, decoded.Data.ID)
	return decoded.Data.ID, nil
}

// FetchRecentPosts requests posts created within the window (default:
// start of the current UTC day through now), excluding reposts but keeping
// replies, capped at one page. The fetched set is written to the local
// snapshot file, newest first, before returning.
func (c *Client) FetchRecentPosts(ctx context.Context, userID string, window *Window) ([]models.SocialPost, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	w := TodayWindow(c.now())
	if window != nil {
		w = *window
	}

	params := url.Values{}
	params.Set("max_results", fmt.Sprintf("%d", pageSize))
	params.Set("tweet.fields", "created_at,referenced_tweets")
	params.Set("start_time", w.Start.UTC().Format(time.RFC3339))
	params.Set("end_time", w.End.UTC().Format(time.RFC3339))
	params.Set("exclude", "retweets")

	posts, err := c.fetchPosts(ctx, userID, params)
	if err != nil {
		return nil, err
	}

	if err := c.snapshot.Write(posts); err != nil {
		// Snapshot is archival; a write failure should not fail the fetch.
		if c.logger != nil {
			c.logger.WithError(err).Warn("Failed to write feed snapshot")
		}
	} else if c.logger != nil {
		c.logger.WithFields(logging.Fields{
			"count": len(posts),
			"path":  c.snapshot.Path(),
		}).Info("Saved feed snapshot")
	}

	return posts, nil
}

// FetchFilteredPosts is the diagnostic variant: it additionally filters by
// a like-count threshold and caps the result count. Not used by the
// production pipeline path.
func (c *Client) FetchFilteredPosts(ctx context.Context, userID string, opts FilterOptions) ([]models.SocialPost, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	params := url.Values{}
	params.Set("max_results", fmt.Sprintf("%d", pageSize))
	params.Set("tweet.fields", "created_at,referenced_tweets,public_metrics")
	params.Set("exclude", "retweets")

	raw, err := c.fetchRawPosts(ctx, userID, params)
	if err != nil {
		return nil, err
	}

	posts := make([]models.SocialPost, 0, len(raw))
	for _, p := range raw {
		if p.PublicMetrics.LikeCount < opts.MinEngagement {
			continue
		}
		posts = append(posts, models.SocialPost{ID: p.ID, Text: p.Text, CreatedAt: p.CreatedAt})
		if opts.MaxResults > 0 && len(posts) >= opts.MaxResults {
			break
		}
	}

	return posts, nil
}

type apiPost struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		LikeCount    int `json:"like_count"`
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
	} `json:"public_metrics"`
}

func (c *Client) fetchPosts(ctx context.Context, userID string, params url.Values) ([]models.SocialPost, error) {
	raw, err := c.fetchRawPosts(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	posts := make([]models.SocialPost, 0, len(raw))
	for _, p := range raw {
		posts = append(posts, models.SocialPost{ID: p.ID, Text: p.Text, CreatedAt: p.CreatedAt})
	}
	return posts, nil
}

func (c *Client) fetchRawPosts(ctx context.Context, userID string, params url.Values) ([]apiPost, error) {
	body, err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/tweets", params)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Data []apiPost `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	return decoded.Data, nil
}

// get issues a bearer-authed GET through the rate-limit executor and
// returns the response body. 429 responses are never returned: the
// executor waits out the reset window and reissues the request.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	resp, err := clients.ExecuteHTTP(ctx, c.executor, func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
		req.Header.Set("Content-Type", "application/json")

		attempt, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if attempt.StatusCode == http.StatusTooManyRequests {
			// This attempt will be retried; release the body now. Headers
			// stay readable for the reset-time delay computation.
			_, _ = io.Copy(io.Discard, attempt.Body)
			_ = attempt.Body.Close()
		}
		return attempt, nil
	})
	if err != nil {
		return nil, fmt.Errorf("feed API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed API response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

func (c *Client) cachedUserID(ctx context.Context, handle string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	id, err := c.cache.Get(ctx, handleCacheKey(handle)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.logger != nil {
			c.logger.WithError(err).Debug("Handle cache read failed")
		}
		return "", false
	}
	return id, id != ""
}

func (c *Client) storeUserID(ctx context.Context, handle, id string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, handleCacheKey(handle), id, handleCacheTTL).Err(); err != nil && c.logger != nil {
		c.logger.WithError(err).Debug("Handle cache write failed")
	}
}

func handleCacheKey(handle string) string {
	return "feed:handle:" + strings.ToLower(handle)
}
