package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// BaseURL is the Google AI Studio API base URL
	BaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultTimeout for a single request when the caller passes none
	DefaultTimeout = 2 * time.Minute

	// DefaultRateLimitDelay is the pause before switching keys after a 429
	DefaultRateLimitDelay = 500 * time.Millisecond
)

// ErrKeysExhausted is returned by Generate when every key in the pool failed
var ErrKeysExhausted = errors.New("all API keys exhausted")

// Logger receives diagnostics about key switches
type Logger interface {
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Debugf(string, ...any) {}

// Client is the Google Gemini API client
type Client struct {
	keys           *KeyPool
	model          string
	baseURL        string
	httpClient     *http.Client
	rateLimitDelay time.Duration
	log            Logger
	sleep          func(time.Duration)
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing)
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return
		}
		if parsed.Host == "" {
			return
		}
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithModel sets the model used for every call
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimitDelay sets the wait after a 429 before the next key is tried
func WithRateLimitDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.rateLimitDelay = d
	}
}

// WithLogger routes key-switch diagnostics to l
func WithLogger(l Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a new Gemini client backed by a key pool
func NewClient(keys *KeyPool, opts ...ClientOption) (*Client, error) {
	if keys == nil || keys.Size() == 0 {
		return nil, ErrNoKeys
	}

	c := &Client{
		keys:           keys,
		model:          ModelGemini25FlashPreview,
		baseURL:        BaseURL,
		httpClient:     &http.Client{},
		rateLimitDelay: DefaultRateLimitDelay,
		log:            nopLogger{},
		sleep:          time.Sleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// Generate sends prompt (and img, when not nil) and returns the generated
// text. Each attempt takes a fresh key from the pool and gets its own
// timeout. Any failure moves on to the next key; after one attempt per key
// the call gives up with ErrKeysExhausted.
func (c *Client) Generate(ctx context.Context, prompt string, img *Image, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	req := buildRequest(prompt, img)
	total := c.keys.Size()

	for attempt := 1; attempt <= total; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		key := c.keys.Next()
		text, err := c.generateContent(ctx, key, req, timeout)
		if err == nil && text != "" {
			return text, nil
		}

		var apiErr *APIError
		switch {
		case err == nil:
			c.log.Warnf("Empty response, switching key (attempt %d/%d)", attempt, total)
		case errors.As(err, &apiErr) && apiErr.IsRateLimited():
			c.log.Warnf("Rate limit hit, switching key (attempt %d/%d)", attempt, total)
			c.sleep(c.rateLimitDelay)
		case errors.As(err, &apiErr):
			c.log.Warnf("API error [%d], switching key (attempt %d/%d)", apiErr.StatusCode, attempt, total)
		case errors.Is(err, context.DeadlineExceeded):
			c.log.Warnf("Timeout after %s, switching key (attempt %d/%d)", timeout, attempt, total)
		default:
			c.log.Warnf("Request failed, switching key (attempt %d/%d): %s", attempt, total, truncate(err.Error(), 80))
		}
	}

	c.log.Warnf("All %d API keys exhausted", total)
	return "", ErrKeysExhausted
}

// buildRequest assembles the single-turn request body
func buildRequest(prompt string, img *Image) *GenerateContentRequest {
	parts := []*Part{{Text: prompt}}
	if img != nil && len(img.Data) > 0 {
		mimeType := img.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		parts = append(parts, &Part{
			InlineData: &InlineData{
				MIMEType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	return &GenerateContentRequest{
		Contents: []*Content{{Parts: parts}},
	}
}

// generateContent makes one API call with one key
func (c *Client) generateContent(ctx context.Context, key string, req *GenerateContentRequest, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	apiURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(key))

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	c.log.Debugf("POST %s (parts: %d)", strings.Replace(apiURL, url.QueryEscape(key), "***", 1), len(req.Contents[0].Parts))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    apiErr.Error.Message,
			Details:    apiErr.Error.Status,
		}
	}

	var result GenerateContentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if u := result.UsageMetadata; u != nil {
		c.log.Debugf("Finish: %s, tokens: %d in, %d out", result.FinishReason(), u.PromptTokenCount, u.CandidatesTokenCount)
	} else if reason := result.FinishReason(); reason != "" {
		c.log.Debugf("Finish: %s", reason)
	}

	return result.Text(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
