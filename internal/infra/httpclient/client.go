package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Common errors.
var (
	ErrNetwork      = errors.New("httpclient: network failure")
	ErrNotFound     = errors.New("httpclient: resource not found")
	ErrForbidden    = errors.New("httpclient: access forbidden")
	ErrUnauthorized = errors.New("httpclient: unauthorized")
	ErrServerError  = errors.New("httpclient: server error")
)

// StatusError is returned for a non-success response when status validation is on.
// It unwraps to one of the sentinel errors above when the code has one.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response from %s: %s", e.URL, e.Status)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusNotFound:
		return ErrNotFound
	case e.Code == http.StatusForbidden:
		return ErrForbidden
	case e.Code == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Code >= 500:
		return ErrServerError
	default:
		return nil
	}
}

// Options configures the HTTP client.
type Options struct {
	// Timeout for a whole request including reading the body.
	// Default: 60s
	Timeout time.Duration

	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 32
	MaxIdleConnsPerHost int

	// ValidateStatus rejects non-2xx responses instead of returning their body.
	ValidateStatus bool
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:             60 * time.Second,
		MaxIdleConnsPerHost: 32,
		ValidateStatus:      true,
	}
}

// Client performs single unauthenticated GET requests.
type Client struct {
	client *http.Client
	opts   Options
}

// New creates a new Client with the given options. Zero values fall back to DefaultOptions.
func New(opts Options) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = opts.MaxIdleConnsPerHost
	transport.MaxIdleConns = opts.MaxIdleConnsPerHost * 2

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// Get issues one GET request for url and returns the response body.
// The caller must close the returned reader.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	if c.opts.ValidateStatus && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode, Status: resp.Status}
	}

	return resp.Body, nil
}
