// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the generation backends.
package httputil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// throttled responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 5

// statusOverloaded is the non-standard status some model APIs return when
// their capacity is exhausted.
const statusOverloaded = 529

// Retryable reports whether a response status signals a transient
// throttling condition worth retrying: 429, 503 or 529.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, statusOverloaded:
		return true
	}
	return false
}

// DoWithRetry executes an HTTP request and retries on throttled responses
// (see Retryable) with exponential backoff. The delay starts at
// RetryBaseDelay and doubles each attempt.
//
// When maxRetries is 0 the default (5) is used. Request bodies are rewound
// through req.GetBody before each retry. On each throttled response the body
// is drained and closed before sleeping. If the context is cancelled during
// a backoff wait the function returns ctx.Err(). After exhausting retries
// the last throttled response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		slog.Debug("throttled, retrying",
			"url", req.URL.Redacted(), "status", resp.StatusCode,
			"backoff", backoff, "attempt", attempt+1, "max", maxRetries)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
