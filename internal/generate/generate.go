// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate wraps Generative AI backends behind a context-plus-
// instruction contract. A Client holds the standing context for one engine
// and forwards each instruction to its backend with retries.
package generate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyResponse is returned when a backend answers with no usable text.
var ErrEmptyResponse = errors.New("empty response from model")

// ErrNotConfigured is returned when a backend lacks an API key or model.
var ErrNotConfigured = errors.New("backend not configured")

// StatusError is a non-success HTTP answer from a backend API.
type StatusError struct {
	API  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.API, e.Code, e.Body)
}

// retryable reports whether another attempt could succeed. Missing
// configuration and client errors other than timeouts and rate limits
// fail the same way every time.
func retryable(err error) bool {
	if errors.Is(err, ErrNotConfigured) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusRequestTimeout ||
			se.Code == http.StatusTooManyRequests ||
			se.Code >= http.StatusInternalServerError
	}
	return true
}

// Backend abstracts a Generative AI API so tests can supply a mock. The
// context is sent as standing instructions (system prompt) and the
// instruction as the user turn.
type Backend interface {
	Generate(ctx context.Context, system, instruction string) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, system, instruction string) (string, error)

// Generate calls f.
func (f BackendFunc) Generate(ctx context.Context, system, instruction string) (string, error) {
	return f(ctx, system, instruction)
}

// Client is a generation handle bound to one backend. It is not safe for
// concurrent use; callers serialize access per engine.
type Client struct {
	model      string
	backend    Backend
	context    string
	maxRetries int
}

// NewClient wraps backend under the given model identifier.
func NewClient(model string, backend Backend, maxRetries int) *Client {
	return &Client{model: model, backend: backend, maxRetries: maxRetries}
}

// Model returns the backend identifier the client was selected with.
func (c *Client) Model() string {
	return c.model
}

// SetContext replaces the standing context for subsequent Ask calls.
func (c *Client) SetContext(text string) {
	c.context = text
}

// Context returns the standing context.
func (c *Client) Context() string {
	return c.context
}

// Ask sends instruction under the standing context and returns the reply
// with surrounding code fences removed.
func (c *Client) Ask(ctx context.Context, instruction string) (string, error) {
	text, err := callWithRetry(ctx, c.backend, c.context, instruction, c.maxRetries)
	if err != nil {
		return "", fmt.Errorf("asking %s: %w", c.model, err)
	}
	text = cleanMarkdownOutput(text)
	if text == "" {
		return "", fmt.Errorf("asking %s: %w", c.model, ErrEmptyResponse)
	}
	return text, nil
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the backend with exponential backoff.
func callWithRetry(ctx context.Context, backend Backend, system, instruction string, maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := backend.Generate(ctx, system, instruction)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// cleanMarkdownOutput strips a fenced code block wrapper models sometimes
// put around Markdown answers.
func cleanMarkdownOutput(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```markdown") {
		text = strings.TrimPrefix(text, "```markdown")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}
