package neocities

import (
	"fmt"
	"runtime"
	"time"

	"github.com/imroc/req/v3"

	"github.com/pixelhosted/neosync/internal/version"
)

const (
	DefaultBaseURL = "https://neocities.org"

	apiList   = "/api/list"
	apiUpload = "/api/upload"
	apiDelete = "/api/delete"
	apiInfo   = "/api/info"

	defaultTimeout    = 5 * time.Minute
	defaultRetryCount = 3
)

var userAgent = fmt.Sprintf("neosync/%s (%s; %s/%s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// Client is an authenticated Neocities API client for one site.
// Retries for transient failures happen here, so callers treat every
// returned error as final.
type Client struct {
	client *req.Client
}

type Option func(*req.Client)

// WithBaseURL points the client at a different API server. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *req.Client) {
		c.SetBaseURL(baseURL)
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *req.Client) {
		c.SetTimeout(d)
	}
}

// WithRetryCount overrides the transient-failure retry count.
func WithRetryCount(n int) Option {
	return func(c *req.Client) {
		c.SetCommonRetryCount(n)
	}
}

func New(apiKey string, opts ...Option) *Client {
	client := req.C().
		SetBaseURL(DefaultBaseURL).
		SetCommonBearerAuthToken(apiKey).
		SetUserAgent(userAgent).
		SetTimeout(defaultTimeout).
		SetCommonRetryCount(defaultRetryCount).
		SetCommonRetryFixedInterval(1 * time.Second).
		SetCommonRetryCondition(shouldRetry).
		SetCommonErrorResult(&APIError{})

	for _, opt := range opts {
		opt(client)
	}

	return &Client{client: client}
}

// shouldRetry limits client-level retries to transient failure classes.
// Auth, permission and other request errors surface immediately.
func shouldRetry(resp *req.Response, err error) bool {
	if err != nil {
		return IsTransient(err)
	}
	return resp.StatusCode == 429 || resp.StatusCode >= 500
}
