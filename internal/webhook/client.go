// Package webhook talks to the Spacebot webhook: one send, then a bounded
// poll loop that aggregates streamed or one-shot replies.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"spacebot-echo-show/internal/config"
)

const (
	maxErrorBody = 512
	maxPollBody  = 1 << 20
)

// Client owns the send and poll calls. It holds no per-turn state and may be
// shared by concurrent turns.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(s config.Settings, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: config.HostTurnBudget},
		baseURL:      s.BaseURL,
		pollInterval: s.PollInterval,
		maxWait:      s.MaxWait,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage posts one message to the backend. Any non-2xx status is a
// *TransportError; there is no retry.
func (c *Client) SendMessage(ctx context.Context, msg OutboundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	resp, err := c.do(ctx, http.MethodPost, "/send", bytes.NewReader(body))
	if err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("send", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// PollMessages fetches whatever the backend has queued for the conversation.
// A malformed body or missing messages list yields no messages, not an error.
func (c *Client) PollMessages(ctx context.Context, conversationID string) ([]InboundMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, "/poll/"+url.PathEscape(conversationID), nil)
	if err != nil {
		return nil, &TransportError{Op: "poll", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError("poll", resp)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPollBody))
	if err != nil {
		return nil, &TransportError{Op: "poll", Err: err}
	}
	return parseMessages(b), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &TransportError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

func parseMessages(body []byte) []InboundMessage {
	if !gjson.ValidBytes(body) {
		return nil
	}
	list := gjson.GetBytes(body, "messages")
	if !list.IsArray() {
		return nil
	}
	var out []InboundMessage
	list.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		msg := InboundMessage{Type: MessageType(item.Get("type").String())}
		if content := item.Get("content"); content.Type == gjson.String {
			msg.Content = content.Str
		}
		out = append(out, msg)
		return true
	})
	return out
}
