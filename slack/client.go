// Package slack is a minimal Slack Web API client covering what the triage
// workflow needs: posting a message with interactive blocks, replying in a
// thread, updating a message, and verifying inbound action signatures.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultAPIBase = "https://slack.com/api"

// MessageRef identifies a posted message: the delivery coordinates
// recorded into workflow state.
type MessageRef struct {
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// Config configures the Slack client.
type Config struct {
	BotToken string        `yaml:"bot_token" json:"bot_token"`
	BaseURL  string        `yaml:"base_url" json:"base_url"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// Client calls the Slack Web API with a bot token.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a Slack client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token cannot be empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "slack_client")),
	}, nil
}

type postMessageRequest struct {
	Channel  string  `json:"channel"`
	Text     string  `json:"text,omitempty"`
	ThreadTS string  `json:"thread_ts,omitempty"`
	Blocks   []Block `json:"blocks,omitempty"`
}

type updateMessageRequest struct {
	Channel string  `json:"channel"`
	TS      string  `json:"ts"`
	Text    string  `json:"text"`
	Blocks  []Block `json:"blocks"`
}

type apiResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

// PostMessage posts a message to a channel. ThreadTS, when non-empty,
// posts into that thread.
func (c *Client) PostMessage(ctx context.Context, channel, text, threadTS string, blocks []Block) (*MessageRef, error) {
	resp, err := c.call(ctx, "chat.postMessage", postMessageRequest{
		Channel:  channel,
		Text:     text,
		ThreadTS: threadTS,
		Blocks:   blocks,
	})
	if err != nil {
		return nil, err
	}
	return &MessageRef{Channel: resp.Channel, TS: resp.TS}, nil
}

// UpdateMessage replaces the text of an existing message and clears its
// blocks, which is how the actions handler exhausts the triage buttons.
func (c *Client) UpdateMessage(ctx context.Context, channel, ts, text string) error {
	_, err := c.call(ctx, "chat.update", updateMessageRequest{
		Channel: channel,
		TS:      ts,
		Text:    text,
		Blocks:  []Block{},
	})
	return err
}

func (c *Client) call(ctx context.Context, method string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.cfg.BotToken)

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}
	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s returned HTTP %d", method, httpResp.StatusCode)
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("%s failed: %s", method, resp.Error)
	}
	return &resp, nil
}
