package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	initialBackoff = 250 * time.Millisecond
	maxBackoff     = 2 * time.Second
	maxBodyBytes   = 4 << 20
)

// ErrHTTPStatus matches every *StatusError.
var ErrHTTPStatus = errors.New("unexpected HTTP status")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrHTTPStatus }

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// NewHTTPClient returns a client with a per-request timeout and a traced
// transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(tr)}
}

// transport is the request helper shared by the HTTP adapters.
type transport struct {
	client    *http.Client
	attempts  int
	userAgent string
	backoff   time.Duration
}

func newTransport(client *http.Client, attempts int, userAgent string) *transport {
	if attempts < 1 {
		attempts = 1
	}
	return &transport{client: client, attempts: attempts, userAgent: userAgent, backoff: initialBackoff}
}

// getJSON issues a GET and decodes the JSON body into out, retrying network
// errors, 429 and 5xx responses with exponential backoff.
func (t *transport) getJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	var body []byte
	err := retry(ctx, t.attempts, t.backoff, maxBackoff, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return false, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		if t.userAgent != "" {
			req.Header.Set("User-Agent", t.userAgent)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return ctx.Err() == nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
			return serr.retryable(), serr
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return true, fmt.Errorf("reading body: %w", err)
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// retry runs fn up to attempts times. fn reports whether its error is worth
// another attempt.
func retry(ctx context.Context, attempts int, initial, limit time.Duration, fn func() (bool, error)) error {
	d := initial
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
			d *= 2
			if d > limit {
				d = limit
			}
		}
		var again bool
		again, err = fn()
		if err == nil {
			return nil
		}
		if !again {
			return err
		}
	}
	return err
}
