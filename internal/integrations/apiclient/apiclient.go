// Package apiclient sends JSON requests to third-party HTTP APIs with the
// shared retry policy.  Non-2xx responses surface as *apperr.StatusError so
// callers and the retry loop can classify them.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smartvid/smartvid/internal/apperr"
	"github.com/smartvid/smartvid/internal/retry"
)

// DefaultTimeout bounds one HTTP attempt.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 2048

// Request describes one outbound call.  Body is resent on every attempt.
type Request struct {
	Op     string
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a successful reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client couples an *http.Client with a retry policy.
type Client struct {
	HTTP  *http.Client
	Retry retry.Policy
}

// New returns a Client with the default timeout and retry policy.
func New() *Client {
	return &Client{HTTP: &http.Client{Timeout: DefaultTimeout}, Retry: retry.DefaultPolicy()}
}

// Do sends r until it succeeds or fails with a non-retryable error.
func (c *Client) Do(ctx context.Context, r Request) (Response, error) {
	return retry.DoValue(ctx, c.Retry, func(ctx context.Context) (Response, error) {
		return c.once(ctx, r)
	})
}

// DoJSON marshals in (when non-nil) as the body, sends the request and
// decodes the reply into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, r Request, in, out any) error {
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", r.Op, err)
		}
		r.Body = b
		if r.Header == nil {
			r.Header = http.Header{}
		}
		r.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", r.Op, err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, r Request) (Response, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("%s: new request: %w", r.Op, err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", r.Op, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%s: read body: %w", r.Op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := ParseRetryAfter(resp.Header.Get("Retry-After"))
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return Response{}, &apperr.StatusError{
			Op:         r.Op,
			StatusCode: resp.StatusCode,
			Body:       string(data),
			RetryAfter: retryAfter,
		}
	}
	return Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
