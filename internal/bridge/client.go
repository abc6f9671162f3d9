package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/kbagent/internal/agent"
)

const (
	DefaultBackendURL = "http://localhost:8000"
	DefaultTimeout    = 30 * time.Second
	maxErrorBody      = 4 << 10
)

// StatusError is returned when the facade answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// Client calls the HTTP facade. Each call is one request bounded by the
// client timeout.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a facade client. A zero timeout means DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBackendURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithToken sets the bearer token sent with every request.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// BaseURL is the facade address the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Chat(ctx context.Context, req agent.ChatRequest) (agent.ChatResponse, error) {
	var resp agent.ChatResponse
	err := c.do(ctx, http.MethodPost, "/chat", req, &resp)
	return resp, err
}

func (c *Client) Summarize(ctx context.Context, req agent.SummaryRequest) (agent.SummaryResponse, error) {
	var resp agent.SummaryResponse
	err := c.do(ctx, http.MethodPost, "/summarize", req, &resp)
	return resp, err
}

func (c *Client) Quiz(ctx context.Context, req agent.QuizRequest) (agent.QuizResponse, error) {
	var resp agent.QuizResponse
	err := c.do(ctx, http.MethodPost, "/quiz", req, &resp)
	return resp, err
}

func (c *Client) QueryKnowledgeBase(ctx context.Context, q agent.KnowledgeBaseQuery) (agent.KnowledgeBaseResult, error) {
	var resp agent.KnowledgeBaseResult
	err := c.do(ctx, http.MethodPost, "/knowledge-base/query", q, &resp)
	return resp, err
}

func (c *Client) Conversation(ctx context.Context, id string) (agent.Conversation, error) {
	var resp agent.Conversation
	err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) Health(ctx context.Context) (agent.Health, error) {
	var resp agent.Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// errorMessage extracts the message of the facade's error envelope, falling
// back to the raw body.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
