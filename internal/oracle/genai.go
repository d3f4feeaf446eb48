// internal/oracle/genai.go
package oracle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/config"
)

// GenAIClient implements schemas.Oracle using the official google.golang.org/genai SDK.
// It exists alongside the raw-HTTP Gemini client so the dual-review gate can
// draw its two opinions from genuinely separate client stacks.
type GenAIClient struct {
	id     string
	client *genai.Client
	model  string
	logger *zap.Logger
	cfg    config.OracleModelConfig
}

// NewGenAIClient initializes the SDK-backed client.
func NewGenAIClient(ctx context.Context, id string, cfg config.OracleModelConfig, logger *zap.Logger) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai API key is required for oracle %q", id)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GenAIClient{
		id:     id,
		client: client,
		model:  model,
		cfg:    cfg,
		logger: logger.Named("oracle.genai"),
	}, nil
}

// ProviderID implements schemas.Oracle.
func (c *GenAIClient) ProviderID() string {
	return c.id
}

// Ask sends one generation request through the SDK.
func (c *GenAIClient) Ask(ctx context.Context, prompt, systemPrompt string, opts schemas.AskOptions) (schemas.OracleResponse, error) {
	started := time.Now()

	if opts.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	} else if c.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.APITimeout)
		defer cancel()
	}

	temp := float32(opts.Temperature)
	genCfg := &genai.GenerateContentConfig{Temperature: &temp}
	if systemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if opts.ForceJSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		c.logger.Warn("GenAI call failed.", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return schemas.OracleResponse{ProviderID: c.id, LatencyMs: time.Since(started).Milliseconds()}, err
	}

	text := result.Text()
	if text == "" {
		err := fmt.Errorf("genai response contained no text")
		return schemas.OracleResponse{ProviderID: c.id, LatencyMs: time.Since(started).Milliseconds()}, err
	}

	return schemas.OracleResponse{
		Success:    true,
		Content:    text,
		ProviderID: c.id,
		LatencyMs:  time.Since(started).Milliseconds(),
	}, nil
}
