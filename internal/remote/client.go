// ABOUTME: HTTP client for the remote nutrition endpoint.
// ABOUTME: Pull and push snapshots with bearer auth; server failures are retried with backoff.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/harperreed/nutrition/internal/models"
	"github.com/rs/zerolog"
)

// Path is the nutrition sync endpoint.
const Path = "/api/nutrition"

// PullResponse is the body of GET /api/nutrition.
type PullResponse struct {
	Success    bool             `json:"success"`
	HasUpdates bool             `json:"hasUpdates"`
	Data       *models.Snapshot `json:"data,omitempty"`
	LastSync   models.Stamp     `json:"lastSync"`
	Error      string           `json:"error,omitempty"`
}

// PushRequest is the body of POST /api/nutrition. BaseUpdatedAt is the server
// updatedAt the client last saw, used to detect conflicting writers.
type PushRequest struct {
	models.Snapshot
	BaseUpdatedAt models.Stamp `json:"baseUpdatedAt"`
}

// PushResponse is the reply to a push.
type PushResponse struct {
	Success  bool         `json:"success"`
	LastSync models.Stamp `json:"lastSync"`
	Conflict bool         `json:"conflict,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Client talks to one sync server.
type Client struct {
	http       *resty.Client
	token      func() string
	maxRetries uint64
	backoff    time.Duration
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets a fixed bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = func() string { return token } }
}

// WithTokenSource reads the bearer token before every request.
func WithTokenSource(fn func() string) Option {
	return func(c *Client) { c.token = fn }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithRetry sets how many times a server failure is retried and the first delay.
func WithRetry(maxRetries uint64, initial time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoff = initial
	}
}

// WithLogger sets the client's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetTimeout(15 * time.Second),
		token:      func() string { return "" },
		maxRetries: 3,
		backoff:    250 * time.Millisecond,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pull asks for the server snapshot if it changed after since.
func (c *Client) Pull(ctx context.Context, since models.Stamp) (*PullResponse, error) {
	body, err := c.do(ctx, http.MethodGet, func(r *resty.Request) {
		if since.IsSet() {
			r.SetQueryParam("lastSync", since.Time().Format(time.RFC3339Nano))
		}
	})
	if err != nil {
		return nil, err
	}

	var out PullResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{Kind: KindProtocol, Err: fmt.Errorf("decode pull response: %w", err)}
	}
	if !out.Success {
		return nil, &Error{Kind: KindServer, Err: fmt.Errorf("pull rejected: %s", out.Error)}
	}
	if out.HasUpdates && out.Data == nil {
		return nil, &Error{Kind: KindProtocol, Err: errors.New("pull response has updates but no data")}
	}
	return &out, nil
}

// Push uploads the full client snapshot.
func (c *Client) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	if req.DailyLogs == nil {
		req.DailyLogs = map[string]models.DailyLog{}
	}
	body, err := c.do(ctx, http.MethodPost, func(r *resty.Request) {
		r.SetBody(req)
	})
	if err != nil {
		return nil, err
	}

	var out PushResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{Kind: KindProtocol, Err: fmt.Errorf("decode push response: %w", err)}
	}
	if !out.Success {
		return nil, &Error{Kind: KindServer, Err: fmt.Errorf("push rejected: %s", out.Error)}
	}
	if !out.LastSync.IsSet() {
		return nil, &Error{Kind: KindProtocol, Err: errors.New("push response has no lastSync")}
	}
	return &out, nil
}

// do runs one request, retrying server failures with exponential backoff.
// Every other failure returns at once.
func (c *Client) do(ctx context.Context, method string, build func(*resty.Request)) ([]byte, error) {
	var body []byte
	attempt := 0

	op := func() error {
		attempt++
		req := c.http.R().SetContext(ctx)
		if tok := c.token(); tok != "" {
			req.SetAuthToken(tok)
		}
		build(req)

		resp, err := req.Execute(method, Path)
		if err != nil {
			return backoff.Permanent(Classify(err))
		}
		if resp.StatusCode() >= 300 {
			re := StatusError(resp.StatusCode(), strings.TrimSpace(errorText(resp.Body())))
			if re.Kind == KindServer {
				c.log.Warn().Err(re).Int("attempt", attempt).Str("method", method).Msg("sync server error, retrying")
				return re
			}
			return backoff.Permanent(re)
		}
		body = resp.Body()
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.backoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(exp, c.maxRetries), ctx))
	if err != nil {
		return nil, Classify(err)
	}
	return body, nil
}

// errorText pulls the error field out of a JSON error body, or returns it raw.
func errorText(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}
