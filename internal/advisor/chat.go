package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"diet-ledger/internal/logger"
	"diet-ledger/internal/models"
)

const defaultChatEndpoint = "https://api.openai.com/v1/chat/completions"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatClient talks to an OpenAI-compatible chat-completions endpoint.
type ChatClient struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

func NewChatClient(cfg Config, log *logger.Logger) *ChatClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultChatEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &ChatClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

func (c *ChatClient) Advise(ctx context.Context, snap models.Snapshot) (string, error) {
	if err := checkSnapshot(snap); err != nil {
		return "", err
	}
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: no API key configured", models.ErrAdvisoryUnavailable)
	}

	body := chatPayload{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(snap, c.cfg.Language)},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("advisor: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", models.ErrAdvisoryUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	c.log.Debug("advisor: POST %s (%d bytes)", c.cfg.Endpoint, len(jsonData))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrAdvisoryUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", models.ErrAdvisoryUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: API %s: %s", models.ErrAdvisoryUnavailable, resp.Status, truncate(string(respBody), 200))
	}

	reply := strings.TrimSpace(gjson.GetBytes(respBody, "choices.0.message.content").String())
	if reply == "" {
		return "", fmt.Errorf("%w: empty response", models.ErrAdvisoryUnavailable)
	}
	c.log.Debug("advisor: reply (%d chars): %s", utf8.RuneCountInString(reply), truncate(reply, 120))
	return reply, nil
}
