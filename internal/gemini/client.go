package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the public Gemini REST endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/"

const apiVersion = "v1beta"

// Config holds the immutable settings of a Client.
type Config struct {
	APIKey    string
	BaseURL   string // optional, defaults to DefaultBaseURL
	Timeout   time.Duration
	UserAgent string
}

// Client sends requests to the Gemini API. It never interprets the HTTP
// status of a response; callers decide what a non-200 means.
type Client struct {
	apiKey     string
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Gemini client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		apiKey:    cfg.APIKey,
		baseURL:   baseURL,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// GenerateContent posts a serialized request to models/{model}:generateContent
// and returns the raw body with the HTTP status code.
func (c *Client) GenerateContent(ctx context.Context, model string, body []byte) ([]byte, int, error) {
	if strings.TrimSpace(model) == "" {
		return nil, 0, errors.New("gemini: model name required")
	}

	endpoint := c.baseURL + apiVersion + "/models/" + url.PathEscape(model) + ":generateContent"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Sending request to Gemini",
		zap.String("model", model),
		zap.Int("body_length", len(body)))

	return c.do(httpReq)
}

// ListModels fetches the models listing.
func (c *Client) ListModels(ctx context.Context) ([]byte, int, error) {
	endpoint := c.baseURL + apiVersion + "/models?key=" + url.QueryEscape(c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("gemini: create request: %w", err)
	}

	return c.do(httpReq)
}

func (c *Client) do(httpReq *http.Request) ([]byte, int, error) {
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// the URL may carry the key as a query parameter
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, 0, fmt.Errorf("gemini: send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("gemini: read response: %w", err)
	}

	c.logger.Debug("Gemini responded",
		zap.String("path", httpReq.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	return respBody, resp.StatusCode, nil
}
