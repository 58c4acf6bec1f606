package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"transkribator/internal/config"
	"transkribator/internal/logging"
)

// MaxMessageLength is the Bot API limit for sendMessage text.
const MaxMessageLength = 4096

// ErrNotConfigured is returned when no bot token is configured.
var ErrNotConfigured = errors.New("telegram bot token not configured")

// APIError is a Bot API response with ok=false.
type APIError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed (%d): %s", e.Method, e.ErrorCode, e.Description)
}

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// File is the result of getFile.
type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size"`
	FilePath     string `json:"file_path"`
}

// User is the result of getMe.
type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// Client is a minimal Bot API client.
type Client struct {
	baseURL string
	token   string
	client  HTTPDoer
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.client = doer
		}
	}
}

// New builds a client from configuration.
func New(cfg config.Telegram, logger *slog.Logger, opts ...Option) (*Client, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, ErrNotConfigured
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if base == "" {
		base = "https://api.telegram.org"
	}
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		baseURL: base,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logging.NewComponentLogger(logger, "telegram"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetMe returns the bot account; it doubles as a token check.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("getMe"), nil)
	if err != nil {
		return User{}, fmt.Errorf("build getMe request: %w", err)
	}
	var user User
	if err := c.call(req, "getMe", &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// GetFile resolves a file id to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	query := url.Values{"file_id": {fileID}}
	endpoint := c.methodURL("getFile") + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return File{}, fmt.Errorf("build getFile request: %w", err)
	}
	var file File
	if err := c.call(req, "getFile", &file); err != nil {
		return File{}, err
	}
	if file.FilePath == "" {
		return File{}, fmt.Errorf("telegram getFile returned no file_path for %s", fileID)
	}
	return file, nil
}

// DownloadFile streams a file path returned by GetFile into dest.
func (c *Client) DownloadFile(ctx context.Context, filePath, dest string) (int64, error) {
	endpoint := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, strings.TrimLeft(filePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download telegram file: %w", redactErr(err, c.token))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("telegram file download returned %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create download target: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if err != nil {
		out.Close()
		return 0, fmt.Errorf("write download target: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close download target: %w", err)
	}
	return written, nil
}

// SendMessage posts a plain text message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("encode sendMessage: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.call(req, "sendMessage", nil)
}

// SendDocument uploads content as a document.
func (c *Client) SendDocument(ctx context.Context, chatID int64, filename string, content []byte, caption string) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return err
		}
	}
	part, err := writer.CreateFormFile("document", filename)
	if err != nil {
		return fmt.Errorf("create document part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("write document part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), &buf)
	if err != nil {
		return fmt.Errorf("build sendDocument request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.call(req, "sendDocument", nil)
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) call(req *http.Request, method string, result any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, redactErr(err, c.token))
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err != nil {
		return fmt.Errorf("decode telegram %s response (%d): %w", method, resp.StatusCode, err)
	}
	if !envelope.OK {
		return &APIError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   envelope.ErrorCode,
			Description: envelope.Description,
		}
	}
	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode telegram %s result: %w", method, err)
		}
	}
	return nil
}

// redactErr keeps the bot token out of url.Error messages.
func redactErr(err error, token string) error {
	if err == nil || token == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, token) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, token, "<redacted>"))
}
