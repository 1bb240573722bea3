package e621

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"e621dl/pkg/config"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
	"e621dl/pkg/ratelimit"
	"e621dl/pkg/retry"
)

// Options configures a Client
type Options struct {
	BaseURL     string
	SafeBaseURL string
	// UserAgent is mandatory for the e621 API; requests without one are rejected
	UserAgent string
	Login     string
	APIKey    string
	Timeout   time.Duration

	RequestsPerSecond int
	MaxRetries        int

	Logger     logger.Logger
	HTTPClient *http.Client
	Limiter    ratelimit.Limiter
	Retry      *retry.Config
}

// OptionsFromSettings maps application settings onto client options
func OptionsFromSettings(s *config.Settings, log logger.Logger) Options {
	return Options{
		BaseURL:           s.API.BaseURL,
		SafeBaseURL:       s.API.SafeBaseURL,
		UserAgent:         s.API.UserAgent,
		Login:             s.API.Login,
		APIKey:            s.API.APIKey,
		Timeout:           s.API.Timeout,
		RequestsPerSecond: s.RateLimit.RequestsPerSecond,
		MaxRetries:        s.RateLimit.MaxRetries,
		Logger:            log,
	}
}

// Client talks to the e621 API. It is safe for concurrent use, although
// the downloader drives it sequentially.
type Client struct {
	httpClient *http.Client
	opts       Options
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger

	mu   sync.RWMutex
	safe bool
}

// NewClient creates a Client, filling unset options with defaults
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if opts.SafeBaseURL == "" {
		opts.SafeBaseURL = SafeBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultSettings().API.UserAgent
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.New(opts.RequestsPerSecond)
	}

	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
		// MaxRetries counts retries; the retry package counts attempts
		retryCfg.MaxAttempts = opts.MaxRetries + 1
	}
	if retryCfg.Logger == nil {
		retryCfg.Logger = opts.Logger
	}

	return &Client{
		httpClient: httpClient,
		opts:       opts,
		limiter:    limiter,
		retry:      retryCfg,
		logger:     opts.Logger,
	}
}

// UpdateToSafe switches every later request to the safe host. It cannot be undone.
func (c *Client) UpdateToSafe() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.safe {
		c.logger.InfoWithFields("switching to safe mode", map[string]interface{}{
			"base_url": c.opts.SafeBaseURL,
		})
	}
	c.safe = true
}

// IsSafe reports whether UpdateToSafe has been called
func (c *Client) IsSafe() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.safe
}

func (c *Client) baseURL() string {
	if c.IsSafe() {
		return c.opts.SafeBaseURL
	}
	return c.opts.BaseURL
}

// SearchPosts returns one page of posts matching tags, newest first
func (c *Client) SearchPosts(ctx context.Context, tags string, page, limit int) ([]Post, error) {
	url := GetPostsURL(c.baseURL(), tags, page, limit)

	var resp postsResponse
	if err := c.getJSON(ctx, "search posts", url, &resp); err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("search page fetched", map[string]interface{}{
		"tags":  tags,
		"page":  page,
		"posts": len(resp.Posts),
	})
	return resp.Posts, nil
}

// FetchPost returns a single post by id
func (c *Client) FetchPost(ctx context.Context, id int64) (*Post, error) {
	var resp postResponse
	if err := c.getJSON(ctx, "fetch post", GetPostURL(c.baseURL(), id), &resp); err != nil {
		return nil, err
	}
	return &resp.Post, nil
}

// FetchPool returns a pool by id
func (c *Client) FetchPool(ctx context.Context, id int64) (*Pool, error) {
	var pool Pool
	if err := c.getJSON(ctx, "fetch pool", GetPoolURL(c.baseURL(), id), &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

// DownloadImage returns the bytes at fileURL. A length different from
// expectedSize is logged and otherwise ignored.
func (c *Client) DownloadImage(ctx context.Context, fileURL string, expectedSize int64) ([]byte, error) {
	data, err := retry.DoWithResult(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		resp, err := c.do(ctx, "download image", fileURL, false)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeNetwork,
				Op:      "download image",
				Message: "failed to read response body",
				Err:     err,
			}
		}
		return data, nil
	})
	if err != nil {
		c.logger.ErrorWithFields("failed to download image", map[string]interface{}{
			"url":   fileURL,
			"error": err.Error(),
		})
		return nil, err
	}

	if expectedSize > 0 && int64(len(data)) != expectedSize {
		c.logger.WarnWithFields("downloaded size differs from reported size", map[string]interface{}{
			"url":      fileURL,
			"expected": expectedSize,
			"actual":   len(data),
		})
	}

	return data, nil
}

// getJSON performs a rate limited, retried API request and decodes the body
func (c *Client) getJSON(ctx context.Context, op, url string, target interface{}) error {
	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		logger.LogRateLimit(c.logger, url)

		resp, err := c.do(ctx, op, url, true)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &errs.Error{
				Type:    errs.ErrorTypeNetwork,
				Op:      op,
				Message: "failed to read response body",
				Code:    resp.StatusCode,
				Err:     err,
			}
		}

		if err := json.Unmarshal(body, target); err != nil {
			preview := string(body)
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
				"url":          url,
				"error":        err.Error(),
				"body_preview": preview,
			})
			return &errs.Error{
				Type:    errs.ErrorTypeParsing,
				Op:      op,
				Message: "failed to parse JSON",
				Code:    resp.StatusCode,
				Err:     err,
			}
		}
		return nil
	})
}

// do sends one GET request and maps failure statuses to typed errors.
// Credentials are only attached to API requests.
func (c *Client) do(ctx context.Context, op, url string, withAuth bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrorTypeUnknown, op, err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if withAuth {
		req.Header.Set("Accept", "application/json")
		if c.opts.Login != "" && c.opts.APIKey != "" {
			req.SetBasicAuth(c.opts.Login, c.opts.APIKey)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return nil, errs.Wrapf(errs.ErrorTypeNetwork, op, err, "request failed")
	}
	logger.LogRequest(c.logger, req.Method, url, resp.StatusCode, time.Since(start).Milliseconds())

	if err := checkResponseStatus(op, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// checkResponseStatus converts non-2xx statuses into typed errors
func checkResponseStatus(op string, resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	e := &errs.Error{Op: op, Code: code}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e.Type = errs.ErrorTypeAuth
		e.Message = "access denied; check login and API key"
	case code == http.StatusNotFound:
		e.Type = errs.ErrorTypeNotFound
		e.Message = "resource not found"
	case code == http.StatusTooManyRequests:
		e.Type = errs.ErrorTypeRateLimit
		e.Message = "rate limit exceeded"
	case code >= 500:
		e.Type = errs.ErrorTypeServerError
		e.Message = "server error"
	default:
		e.Type = errs.ErrorTypeUnknown
		e.Message = fmt.Sprintf("unexpected status code %d", code)
	}
	return e
}
