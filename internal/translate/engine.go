package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EngineConfig configures the HTTP translation engine client.
type EngineConfig struct {
	APIKey    string
	APIURL    string
	Model     string
	UserAgent string
	Timeout   time.Duration
}

func (c EngineConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("translation api key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("translation api url is required")
	}
	return nil
}

// HTTPEngine talks to an OpenAI-compatible chat completion endpoint.
// Thread-safe for concurrent use.
type HTTPEngine struct {
	config     EngineConfig
	httpClient *http.Client
}

func NewHTTPEngine(config EngineConfig) (*HTTPEngine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &HTTPEngine{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (e *HTTPEngine) TranslateDocument(ctx context.Context, payload, sourceLang, targetLang string) (string, error) {
	systemPrompt := fmt.Sprintf(
		"You are a professional subtitle translator. Translate the following SRT subtitle document from %s to %s. "+
			"Keep every cue index and every timestamp line exactly as-is; translate only the text lines. "+
			"Return ONLY the complete SRT document, nothing else.",
		sourceLang, targetLang)

	return e.complete(ctx, systemPrompt, payload)
}

func (e *HTTPEngine) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	systemPrompt := fmt.Sprintf(
		"You are a professional subtitle translator. Translate each subtitle line from %s to %s. "+
			"Lines are separated by %q; preserve the separators and the %q inline break markers. "+
			"Return ONLY the translated lines with the same separators. "+
			"The number of output lines must exactly match the number of input lines.",
		sourceLang, targetLang, strings.TrimSpace(lineSeparator), inlineBreakPlaceholder)

	formatted := make([]string, 0, len(texts))
	for _, text := range texts {
		formatted = append(formatted, strings.ReplaceAll(text, "\n", inlineBreakPlaceholder))
	}

	content, err := e.complete(ctx, systemPrompt, strings.Join(formatted, lineSeparator))
	if err != nil {
		return nil, err
	}

	content = strings.ReplaceAll(content, inlineBreakPlaceholder, "\n")
	parts := strings.Split(content, strings.TrimSpace(lineSeparator))
	ret := make([]string, 0, len(parts))
	for _, part := range parts {
		ret = append(ret, strings.TrimSpace(part))
	}
	return ret, nil
}

func (e *HTTPEngine) complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: e.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.APIURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if e.config.UserAgent != "" {
		req.Header.Set("User-Agent", e.config.UserAgent)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("translation request returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("translation response contained no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
