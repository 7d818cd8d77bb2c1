// Package xqueue implements the external grading queue client.
// Problems whose grading runs out of process are submitted here; the grader
// posts its result back to the queue callback URL carried in the header.
package xqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/xmodule"
	"github.com/campus-hub/courseware-hub/pkg/circuitbreaker"
	"github.com/campus-hub/courseware-hub/pkg/logger"
	"github.com/campus-hub/courseware-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the grading queue client.
type Config struct {
	// BaseURL is the queue's base URL.
	BaseURL string

	// DefaultQueue is used when a submission names no queue.
	DefaultQueue string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		DefaultQueue: "default",
		Timeout:      10 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client submits grading jobs over HTTP. Submissions are retried with backoff,
// and a circuit breaker keeps a dead grader from stalling problem checks.
type Client struct {
	config     Config
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	log        *logger.Logger
}

// NewClient creates a grading queue client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retrier: retry.XQueueRetrier(),
		log:     log,
	}
	c.breaker = circuitbreaker.XQueueBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("grading queue circuit state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})

	return c
}

// Submit implements runtime.QueueClient. Any failure surfaces as
// shared.ErrQueueUnavailable so modules can tell students grading is down
// without leaking transport detail.
func (c *Client) Submit(ctx context.Context, sub xmodule.QueueSubmission) error {
	queueName := sub.QueueName
	if queueName == "" {
		queueName = c.config.DefaultQueue
	}

	header, err := json.Marshal(submissionHeader{
		LMSCallbackURL: sub.CallbackURL,
		LMSKey:         sub.QueueKey,
		QueueName:      queueName,
	})
	if err != nil {
		return fmt.Errorf("xqueue: marshal header: %w", err)
	}

	body, err := json.Marshal(sub.Body)
	if err != nil {
		return fmt.Errorf("xqueue: marshal body: %w", err)
	}

	form := url.Values{}
	form.Set("xqueue_header", string(header))
	form.Set("xqueue_body", string(body))

	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.post(ctx, form)
		})
	})
	if err != nil {
		c.log.Error("grading queue submission failed",
			logger.String("queue", queueName),
			logger.String("queue_key", sub.QueueKey),
			logger.Err(err),
		)
		return fmt.Errorf("%w: %v", shared.ErrQueueUnavailable, err)
	}

	c.log.Debug("grading queue submission accepted",
		logger.String("queue", queueName),
		logger.String("queue_key", sub.QueueKey),
	)
	return nil
}

// post performs one submission attempt.
func (c *Client) post(ctx context.Context, form url.Values) error {
	submitURL := strings.TrimSuffix(c.config.BaseURL, "/") + "/xqueue/submit/"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, strings.NewReader(form.Encode()))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("submit request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		return retry.Retryable(fmt.Errorf("queue error: status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		// Client errors will not improve with retries.
		return retry.Permanent(fmt.Errorf("queue rejected submission: status %d", resp.StatusCode))
	}

	var ack submitResponse
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if ack.ReturnCode != 0 {
		return retry.Permanent(fmt.Errorf("queue rejected submission: %s", ack.Content))
	}

	return nil
}

// IsHealthy reports whether the queue endpoint is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	statusURL := strings.TrimSuffix(c.config.BaseURL, "/") + "/xqueue/status/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
