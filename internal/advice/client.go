// Package advice asks a hosted chat-completion service for spending advice.
package advice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	pfmlog "pfm/internal/log"
)

const (
	DefaultBaseURL   = "https://api.webraft.in/v1"
	DefaultModel     = openai.GPT4
	DefaultMaxTokens = 200
	DefaultTimeout   = 30 * time.Second

	SystemPrompt = "You are a helpful expense management assistant."
	promptSuffix = "\n\nRecommendations:"
)

// Config describes the remote service. APIKey comes from the environment.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	// HTTPClient overrides the transport; nil uses a client without its own
	// timeout since the request context carries one.
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{cfg: cfg}
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// GetAdvice sends summary to the service and returns the first choice's
// message content. Every failure is an *Error.
func (c *Client) GetAdvice(ctx context.Context, summary string) (string, error) {
	if !c.Configured() {
		return "", &Error{Kind: KindNotConfigured}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	rec := &recordingDoer{next: c.cfg.HTTPClient}
	oc := openai.DefaultConfig(c.cfg.APIKey)
	oc.BaseURL = c.cfg.BaseURL
	oc.HTTPClient = rec
	api := openai.NewClientWithConfig(oc)

	start := time.Now()
	resp, err := api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: summary + promptSuffix},
		},
	})
	status, body := rec.result()

	if err != nil {
		aerr := classify(status, body, err)
		slog.WarnContext(ctx, "Advice request failed", pfmlog.FieldComponent, pfmlog.ComponentAdvice,
			"kind", aerr.Kind.String(),
			"status", status,
			"duration", time.Since(start))
		return "", aerr
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, StatusCode: status, Body: body, Err: errors.New("no choices in response")}
	}

	slog.InfoContext(ctx, "Advice received", pfmlog.FieldComponent, pfmlog.ComponentAdvice, "status", status, "duration", time.Since(start))
	return resp.Choices[0].Message.Content, nil
}

func classify(status int, body string, err error) *Error {
	switch {
	case status == 0:
		return &Error{Kind: KindTransport, Err: err}
	case status < 200 || status >= 300:
		return &Error{Kind: KindStatus, StatusCode: status, Body: body, Err: err}
	default:
		return &Error{Kind: KindMalformed, StatusCode: status, Body: body, Err: err}
	}
}

// recordingDoer keeps the status and raw body of the last response so
// failures can be reported with what the service actually sent.
type recordingDoer struct {
	next *http.Client

	mu     sync.Mutex
	status int
	body   []byte
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.next.Do(req)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.status = resp.StatusCode
	d.body = data
	d.mu.Unlock()

	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}

func (d *recordingDoer) result() (int, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status, string(d.body)
}
