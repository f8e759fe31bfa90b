// Package syncclient is the local counterpart to internal/syncserver: it
// manages named remote entries and drives clone/fetch/pull/push against a
// remote's HTTP sync protocol (spec.md §4.9, §4.10). Grounded in
// internal/repomanager's Config+defaults construction style, generalized
// from "shell out to git clone" to "speak the sync protocol over HTTP."
// The remote URL is used as given; it is not normalized or host-checked.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/rune-vcs/rune/internal/rerr"
)

// retryBaseDelay, retryCap, and retryMaxAttempts implement spec.md §4.10's
// "transport-level retries use exponential backoff with jitter (base
// 200ms, cap 10s, max 5 attempts)."
const (
	retryBaseDelay   = 200 * time.Millisecond
	retryCap         = 10 * time.Second
	retryMaxAttempts = 5
	retryJitterPct   = 20
)

// Client speaks the HTTP sync protocol against one remote.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewClient builds a Client for the given remote.
func NewClient(remote Remote) *Client {
	return &Client{
		baseURL:   remote.URL,
		authToken: remote.AuthToken,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func newBackoff() retry.Backoff {
	b, err := retry.NewExponential(retryBaseDelay)
	if err != nil {
		// Only possible if retryBaseDelay <= 0, which it never is.
		panic(err)
	}
	b = retry.WithJitterPercent(retryJitterPct, b)
	b = retry.WithCappedDuration(retryCap, b)
	// WithMaxRetries counts retries after the first call.
	return retry.WithMaxRetries(retryMaxAttempts-1, b)
}

// doJSON performs one HTTP round trip, encoding req as the JSON body (if
// non-nil) and decoding the response into resp (if non-nil). A non-2xx
// response is surfaced as a *rerr.Error whose Kind is derived from the
// status code.
func (c *Client) doJSON(ctx context.Context, method, path string, req, resp any) error {
	var body io.Reader
	if req != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(req); err != nil {
			return rerr.Wrap(rerr.Internal, rerr.CodeDecodeError, err)
		}
		body = buf
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return rerr.Wrap(rerr.Network, rerr.CodeIoError, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return rerr.Wrap(rerr.Network, rerr.CodeIoError, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return rerr.Wrap(rerr.Network, rerr.CodeIoError, err)
	}

	if httpResp.StatusCode >= 300 {
		return statusError(httpResp.StatusCode, data)
	}

	if resp != nil && len(data) > 0 {
		if err := json.Unmarshal(data, resp); err != nil {
			return rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
		}
	}
	return nil
}

func statusError(status int, body []byte) error {
	msg := fmt.Sprintf("remote returned %d: %s", status, string(bytes.TrimSpace(body)))
	switch status {
	case http.StatusUnauthorized:
		return rerr.New(rerr.Auth, rerr.CodeUnauthorized, msg)
	case http.StatusForbidden:
		return rerr.New(rerr.Auth, rerr.CodeForbidden, msg)
	case http.StatusConflict:
		return rerr.New(rerr.State, rerr.CodeNonFastForward, msg)
	case http.StatusBadRequest:
		return rerr.New(rerr.UserInput, rerr.CodeDecodeError, msg)
	default:
		return rerr.New(rerr.Network, rerr.CodeIoError, msg)
	}
}

// idempotent retries doJSON with exponential backoff and jitter, per
// spec.md §4.10: "Idempotent endpoints are retried automatically." Network
// and 5xx-shaped failures are retried; auth and non-fast-forward failures
// are not, since retrying them can never succeed without the caller
// changing its request.
func (c *Client) idempotent(ctx context.Context, method, path string, req, resp any) error {
	return retry.Do(ctx, newBackoff(), func(ctx context.Context) error {
		err := c.doJSON(ctx, method, path, req, resp)
		if err == nil {
			return nil
		}
		kind, ok := rerr.KindOf(err)
		if ok && (kind == rerr.Auth || kind == rerr.State || kind == rerr.UserInput) {
			return err
		}
		return retry.RetryableError(err)
	})
}
