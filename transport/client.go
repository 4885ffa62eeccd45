package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mindwell-app/sessionkit/store"
)

const defaultTimeout = 10 * time.Second

// Refresher mints a new credential when a request hits an authorization
// failure. The coordinator implements it; its own backend call must run with
// [Request.NoRetry] so the refresh path can never re-enter the retry logic.
type Refresher interface {
	RefreshCredential(ctx context.Context) (string, error)
}

// Config carries the transport settings.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Request describes one backend call. Out, when non-nil, receives the decoded
// JSON response body. NoRetry disables the refresh-and-retry path.
type Request struct {
	Method  string
	Path    string
	Body    any
	Out     any
	NoRetry bool
}

// Client issues authenticated JSON requests against the backend. The bearer
// credential is read from the store on every attempt, never cached, so a
// refresh performed by any collaborator is picked up immediately.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	store     store.Store
	log       logrus.FieldLogger

	mu        sync.RWMutex
	refresher Refresher
}

// NewClient creates a transport client. httpClient may be nil; a client with
// the configured timeout is used then. log may be nil to disable logging.
func NewClient(cfg Config, st store.Store, httpClient *http.Client, log logrus.FieldLogger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		log = logger
	}

	return &Client{
		http:      httpClient,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		store:     st,
		log:       log,
	}
}

// SetRefresher wires the refresh primitive. Called once by the builder after
// the coordinator exists; requests issued before that simply never retry.
func (c *Client) SetRefresher(r Refresher) {
	c.mu.Lock()
	c.refresher = r
	c.mu.Unlock()
}

func (c *Client) currentRefresher() Refresher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refresher
}

// Do issues req and decodes the JSON response into req.Out. On a 401/403 it
// performs the single bounded refresh-and-retry documented on this package.
func (c *Client) Do(ctx context.Context, req Request) error {
	return c.do(ctx, req, false)
}

// Get issues a GET to path and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Out: out})
}

// Post issues a POST with a JSON body and decodes the response into out.
// body and out may each be nil.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Out: out})
}

// do is the only request path. retried marks the one permitted re-issue; a
// retried call that fails returns its error without ever looping back here.
func (c *Client) do(ctx context.Context, req Request, retried bool) error {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Detail: decodeDetail(body)}
		if !apiErr.AuthFailure() || retried || req.NoRetry {
			return apiErr
		}

		refresher := c.currentRefresher()
		if refresher == nil {
			return apiErr
		}

		credential, refreshErr := refresher.RefreshCredential(ctx)
		if refreshErr != nil || credential == "" {
			c.log.WithField("path", req.Path).WithError(refreshErr).
				Debug("credential refresh after auth failure did not produce a new credential")
			return apiErr
		}

		c.log.WithField("path", req.Path).Debug("retrying request with refreshed credential")
		if retryErr := c.do(ctx, req, true); retryErr != nil {
			// The caller branches on the original failure's taxonomy (auth
			// failure vs. network failure); whatever the retry died of is
			// recorded in the log only.
			c.log.WithField("path", req.Path).WithError(retryErr).
				Debug("retried request failed, surfacing original error")
			return apiErr
		}
		return nil
	}

	if req.Out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, req.Out); err != nil {
			return fmt.Errorf("decode response from %s: %w", req.Path, err)
		}
	}

	return nil
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	var reader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body for %s: %w", req.Path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", req.Path, err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	state, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if state.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+state.Credential)
	}

	return httpReq, nil
}

func decodeDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Detail
}
