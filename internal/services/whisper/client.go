// Package whisper transcribes media through an OpenAI-compatible
// /audio/transcriptions endpoint.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"transkribator/internal/config"
	"transkribator/internal/logging"
	"transkribator/internal/pipeline"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultModel          = "whisper-1"
	defaultTimeout        = 300 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
	maxRetryDelay         = 30 * time.Second
)

// ErrNotConfigured is returned when no API key is configured.
var ErrNotConfigured = errors.New("transcription api key not configured")

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("transcription request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// StatusCode returns the HTTP status carried by err, or 0 when err did not
// come from a non-2xx response.
func StatusCode(err error) int {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// Client calls the transcription endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	language   string
	httpClient *http.Client
	logger     *slog.Logger

	retryAttempts int
	sleeper       func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryAttempts overrides the attempt count (minimum 1).
func WithRetryAttempts(attempts int) Option {
	return func(c *Client) { c.retryAttempts = attempts }
}

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.sleeper = sleeper }
}

// New builds a client from configuration.
func New(cfg config.Transcription, logger *slog.Logger, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:        apiKey,
		model:         strings.TrimSpace(cfg.Model),
		language:      strings.TrimSpace(cfg.Language),
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logging.NewComponentLogger(logger, "whisper"),
		retryAttempts: defaultRetryAttempts,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// HealthCheck lists models once to confirm the endpoint and key work.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcription health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// Transcribe implements pipeline.TranscribeFunc.
func (c *Client) Transcribe(ctx context.Context, _ *pipeline.Context, mediaPath string) (string, error) {
	return c.TranscribeFile(ctx, mediaPath)
}

// TranscribeFile uploads mediaPath and returns the recognized text.
func (c *Client) TranscribeFile(ctx context.Context, mediaPath string) (string, error) {
	data, err := os.ReadFile(mediaPath)
	if err != nil {
		return "", fmt.Errorf("read media: %w", err)
	}
	attempts := c.retryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	logger := logging.WithContext(ctx, c.logger)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		started := time.Now()
		text, err := c.sendOnce(ctx, filepath.Base(mediaPath), data)
		if err == nil {
			logger.Info("transcription complete",
				logging.String("media_path", mediaPath),
				logging.Int("transcript_length", len(text)),
				logging.Duration("duration", time.Since(started)),
			)
			return text, nil
		}
		lastErr = err
		if attempt == attempts || !retryable(ctx, err) {
			break
		}
		delay := backoff(attempt)
		logger.Warn("transcription attempt failed; retrying",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "transcription_retry"),
			logging.String(logging.FieldErrorHint, "check the transcription API status"),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("transcribe %s: %w", filepath.Base(mediaPath), lastErr)
}

func (c *Client) sendOnce(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write file part: %w", err)
	}
	fields := map[string]string{"model": c.model, "response_format": "json"}
	if c.language != "" {
		fields["language"] = c.language
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: string(payload)}
	}
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func backoff(attempt int) time.Duration {
	delay := defaultRetryBaseDelay << (attempt - 1)
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
