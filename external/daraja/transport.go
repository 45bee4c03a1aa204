package daraja

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

const (
	maxAttempts    = 3
	attemptTimeout = 5 * time.Second
)

// Transport wraps one logical gateway request with a per-attempt timeout,
// bounded retry with exponential backoff, and circuit-breaker accounting.
type Transport struct {
	client  *http.Client
	breaker *CircuitBreaker

	// backoffBase scales the sleep between attempts: 2^attempt * backoffBase
	// (2s then 4s at the 1s default). Tests shrink it.
	backoffBase time.Duration
}

func NewTransport(breaker *CircuitBreaker) *Transport {
	return &Transport{
		client:      &http.Client{},
		breaker:     breaker,
		backoffBase: time.Second,
	}
}

// HeaderFunc produces the headers for one attempt. It runs inside the retry
// loop so a failed token fetch is retried like any other transient failure.
type HeaderFunc func(ctx context.Context) (map[string]string, error)

// Execute posts body to url, asking headerFn for headers before each attempt.
// A breaker rejection does not count as a failed attempt. Non-2xx responses
// count as failures and are retried like transport errors; the response body
// of the last failure is carried in the returned HTTPError.
func (t *Transport) Execute(ctx context.Context, method, url string, body []byte, headerFn HeaderFunc) ([]byte, error) {
	if !t.breaker.Allow() {
		return nil, &CircuitOpenError{}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := t.attempt(ctx, method, url, body, headerFn)
		if err == nil {
			t.breaker.RecordSuccess()
			return out, nil
		}

		// a caller-side cancel is not upstream ill health
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		t.breaker.RecordFailure()
		lastErr = err

		if attempt < maxAttempts {
			delay := time.Duration(1<<attempt) * t.backoffBase
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (t *Transport) attempt(ctx context.Context, method, url string, body []byte, headerFn HeaderFunc) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	headers, err := headerFn(attemptCtx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(out)}
	}
	return out, nil
}
