// internal/oracle/gemini.go
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/config"
)

// GeminiClient implements schemas.Oracle against the Gemini REST API.
type GeminiClient struct {
	id         string
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	cfg        config.OracleModelConfig
}

// -- Gemini API request/response structures (internal to this file) --

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig,omitempty"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// NewGeminiClient initializes the client.
func NewGeminiClient(id string, cfg config.OracleModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required for oracle %q", id)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &GeminiClient{
		id:         id,
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("oracle.gemini"),
	}, nil
}

// ProviderID implements schemas.Oracle.
func (c *GeminiClient) ProviderID() string {
	return c.id
}

// Ask sends the prompts to the Gemini API with exponential-backoff retries
// and returns the generated content. A timeout or exhausted retry budget is
// an error; the caller decides whether that ends its cycle.
func (c *GeminiClient) Ask(ctx context.Context, prompt, systemPrompt string, opts schemas.AskOptions) (schemas.OracleResponse, error) {
	started := time.Now()

	if opts.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	payload := c.buildRequestPayload(prompt, systemPrompt, opts)
	body, err := json.Marshal(payload)
	if err != nil {
		return schemas.OracleResponse{}, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	retries := opts.Retries
	if retries <= 0 {
		retries = c.cfg.MaxRetries
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)

	var content string
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("gemini request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read gemini response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			// Parsed below.
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("gemini returned retryable status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(respBody)))
		}

		var parsed geminiResponsePayload
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode gemini response: %w", err))
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini response contained no candidates"))
		}
		content = parsed.Candidates[0].Content.Parts[0].Text
		return nil
	}

	if err := backoff.Retry(operation, b); err != nil {
		c.logger.Warn("Gemini call failed.", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return schemas.OracleResponse{ProviderID: c.id, LatencyMs: time.Since(started).Milliseconds()}, err
	}

	return schemas.OracleResponse{
		Success:    true,
		Content:    content,
		ProviderID: c.id,
		LatencyMs:  time.Since(started).Milliseconds(),
	}, nil
}

func (c *GeminiClient) buildRequestPayload(prompt, systemPrompt string, opts schemas.AskOptions) geminiRequestPayload {
	payload := geminiRequestPayload{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{Temperature: opts.Temperature},
	}
	if systemPrompt != "" {
		payload.SystemInstruction = &geminiSystemInstruction{Parts: []geminiPart{{Text: systemPrompt}}}
	}
	if opts.ForceJSON {
		payload.GenerationConfig.ResponseMimeType = "application/json"
	}
	return payload
}
