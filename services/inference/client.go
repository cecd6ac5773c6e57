// Package inference is a client for the hosted object-detection endpoint.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	goutils "go.viam.com/utils"

	"github.com/invscan/autocount/logging"
	"github.com/invscan/autocount/utils"
	"github.com/invscan/autocount/vision/objectdetection"
)

const (
	// DefaultMaxAttempts is the total number of requests made while the model reports it is loading.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is multiplied by the attempt number to get the wait before the next attempt.
	DefaultBaseDelay = time.Second
	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 60 * time.Second

	maxResponseBytes = 4 << 20
	maxErrorSnippet  = 200
)

// ErrModelLoading is returned when the model is still warming up (HTTP 503).
var ErrModelLoading = errors.New("inference model is loading")

// StatusError is a non-2xx answer from the inference endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("inference endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("inference endpoint returned status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrModelLoading) match a 503.
func (e *StatusError) Is(target error) bool {
	return target == ErrModelLoading && e.StatusCode == http.StatusServiceUnavailable
}

// SleepFunc waits for d and reports whether the full duration elapsed before ctx was done.
type SleepFunc func(ctx context.Context, d time.Duration) bool

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRetry sets the total number of attempts and the base delay between them.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = max(1, maxAttempts)
		c.baseDelay = baseDelay
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// Client calls the inference endpoint, retrying while the model is loading.
type Client struct {
	url         string
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	sleep       SleepFunc
	logger      logging.Logger
}

// NewClient returns a client for the model hosted at url.
func NewClient(url string, logger logging.Logger, opts ...Option) *Client {
	c := &Client{
		url:         url,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       goutils.SelectContextOrWait,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Detect sends the raw image bytes to the model and returns its detections. While the model
// reports it is loading the request is repeated, waiting attempt × base delay between tries, up
// to the configured number of attempts. Any other failure is returned immediately.
func (c *Client) Detect(ctx context.Context, token string, image []byte, mimeType string) ([]objectdetection.Detection, error) {
	ctx, span := trace.StartSpan(ctx, "inference::Detect")
	defer span.End()

	for attempt := 1; ; attempt++ {
		dets, err := c.detectOnce(ctx, token, image, mimeType)
		if err == nil {
			span.AddAttributes(trace.Int64Attribute("attempts", int64(attempt)))
			return dets, nil
		}
		if !errors.Is(err, ErrModelLoading) || attempt >= c.maxAttempts {
			return nil, errors.Wrapf(err, "inference failed after %d attempt(s)", attempt)
		}
		delay := time.Duration(attempt) * c.baseDelay
		c.logger.CInfow(ctx, "model loading, retrying", "attempt", attempt, "max_attempts", c.maxAttempts, "delay", delay)
		if !c.sleep(ctx, delay) {
			return nil, errors.Wrap(ctx.Err(), "interrupted while waiting for model to load")
		}
	}
}

func (c *Client) detectOnce(ctx context.Context, token string, image []byte, mimeType string) ([]objectdetection.Detection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(image))
	if err != nil {
		return nil, errors.Wrap(err, "could not build inference request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if mimeType == "" {
		mimeType = utils.MimeTypeDefault
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Accept", utils.MimeTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "inference request failed")
	}
	defer goutils.UncheckedErrorFunc(resp.Body.Close)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "could not read inference response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return ParseDetections(body)
}

// errorMessage pulls the "error" field out of a JSON error body, or a short prefix of the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	s := string(bytes.TrimSpace(body))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet]
	}
	return s
}
