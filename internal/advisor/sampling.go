// internal/advisor/sampling.go
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"diet-ledger/internal/logger"
	"diet-ledger/internal/models"
)

const defaultProxyURL = "http://mcp-compose-http-proxy:9876"

// SamplingClient requests completions through an MCP proxy that fronts an
// OpenRouter gateway, calling its create_completion tool.
type SamplingClient struct {
	httpClient *http.Client
	proxyURL   string
	apiKey     string
	model      string
	cfg        Config
	log        *logger.Logger
}

func NewSamplingClient(cfg Config, log *logger.Logger) *SamplingClient {
	proxyURL := cfg.Endpoint
	if proxyURL == "" {
		proxyURL = defaultProxyURL
	}

	model := cfg.Model
	if model == "" {
		model = "anthropic/claude-3.5-sonnet" // Default fallback
	}

	return &SamplingClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		proxyURL: strings.TrimRight(proxyURL, "/"),
		apiKey:   cfg.APIKey,
		model:    model,
		cfg:      cfg,
		log:      log,
	}
}

func (s *SamplingClient) Advise(ctx context.Context, snap models.Snapshot) (string, error) {
	if err := checkSnapshot(snap); err != nil {
		return "", err
	}
	if s.apiKey == "" {
		return "", fmt.Errorf("%w: no proxy API key configured", models.ErrAdvisoryUnavailable)
	}

	completionRequest := map[string]interface{}{
		"model":         s.model,
		"system_prompt": systemPrompt,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": BuildPrompt(snap, s.cfg.Language),
			},
		},
		"max_tokens":  s.cfg.MaxTokens,
		"temperature": s.cfg.Temperature,
	}

	text, err := s.callGateway(ctx, "create_completion", completionRequest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrAdvisoryUnavailable, err)
	}

	reply := strings.TrimSpace(extractCompletion(text))
	if reply == "" {
		return "", fmt.Errorf("%w: empty completion", models.ErrAdvisoryUnavailable)
	}
	s.log.Debug("advisor: gateway reply (%d chars)", len(reply))
	return reply, nil
}

func (s *SamplingClient) callGateway(ctx context.Context, toolName string, args interface{}) (string, error) {
	url := fmt.Sprintf("%s/openrouter-gateway", s.proxyURL)

	requestData := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      toolName,
			"arguments": args,
		},
	}

	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return "", fmt.Errorf("gateway error: %s", msg.String())
	}
	text := gjson.GetBytes(body, "result.content.0.text")
	if !text.Exists() {
		return "", fmt.Errorf("unexpected response format")
	}
	return text.String(), nil
}

// extractCompletion pulls the "content" field out of the gateway's completion
// JSON, or returns the text unchanged when it is not JSON.
func extractCompletion(text string) string {
	if gjson.Valid(text) {
		if content := gjson.Get(text, "content"); content.Exists() {
			return content.String()
		}
	}
	return text
}
