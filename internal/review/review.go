// internal/review/review.go

// Package review implements the dual-review gate: two independently-obtained
// oracle opinions about one proposed mutation, of which only the evaluator's
// structured verdict can grant approval. The asymmetry is intentional; a
// single sycophantic response must never approve its own suggestion.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/oracleutil"
)

// evaluatorVerdict is the structured response expected from the evaluator.
type evaluatorVerdict struct {
	Approve bool    `json:"approve"`
	Score   float64 `json:"score"`
	Risks   string  `json:"risks"`
}

// Options tunes the gate.
type Options struct {
	ScoreFloor float64       // minimum evaluator score (default 7.0 of 10)
	Timeout    time.Duration // per-call timeout (default 2m)
}

func (o Options) withDefaults() Options {
	if o.ScoreFloor <= 0 {
		o.ScoreFloor = 7.0
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Minute
	}
	return o
}

// Gate issues the two review queries. The proposer and evaluator must be
// distinct oracle instances.
type Gate struct {
	logger    *zap.Logger
	proposer  schemas.Oracle
	evaluator schemas.Oracle
	opts      Options
}

// NewGate creates the gate. It returns an error when both roles resolve to
// the same provider, which would defeat the independence requirement.
func NewGate(logger *zap.Logger, proposer, evaluator schemas.Oracle, opts Options) (*Gate, error) {
	if proposer.ProviderID() == evaluator.ProviderID() {
		return nil, fmt.Errorf("dual review requires distinct providers, both roles resolve to %q", proposer.ProviderID())
	}
	return &Gate{
		logger:    logger.Named("dual_review"),
		proposer:  proposer,
		evaluator: evaluator,
		opts:      opts.withDefaults(),
	}, nil
}

// Review runs both queries concurrently and awaits the pair. Approval
// requires the evaluator's response to parse, report approve=true, and score
// at or above the floor. Any parse failure, timeout, or missing field on the
// evaluator side is non-approval, never approval-by-default. The proposer's
// output is informational only.
func (g *Gate) Review(ctx context.Context, candidate schemas.Candidate, originalText string) schemas.ReviewVerdict {
	verdict := schemas.ReviewVerdict{
		RaterA: g.proposer.ProviderID(),
		RaterB: g.evaluator.ProviderID(),
	}

	var proposerContent string
	var evalResp schemas.OracleResponse
	var evalErr error

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		resp, err := g.proposer.Ask(egCtx, g.proposerPrompt(candidate, originalText), proposerSystem, schemas.AskOptions{
			TimeoutMs: g.opts.Timeout.Milliseconds(),
		})
		if err != nil {
			// A failed proposer never blocks the verdict; it only loses its
			// supporting framing.
			g.logger.Warn("Proposer query failed.", zap.Error(err))
			return nil
		}
		proposerContent = resp.Content
		return nil
	})
	eg.Go(func() error {
		evalResp, evalErr = g.evaluator.Ask(egCtx, g.evaluatorPrompt(candidate, originalText), evaluatorSystem, schemas.AskOptions{
			TimeoutMs: g.opts.Timeout.Milliseconds(),
			ForceJSON: true,
		})
		return nil
	})
	// Goroutines above never return errors; Wait only joins them.
	_ = eg.Wait()

	if evalErr != nil || !evalResp.Success {
		g.logger.Info("Evaluator query failed; rejecting (fail-closed).", zap.Error(evalErr))
		return verdict
	}

	parsed := oracleutil.ExtractJSON[evaluatorVerdict](evalResp.Content)
	if !parsed.OK {
		g.logger.Info("Evaluator response did not parse; rejecting (fail-closed).",
			zap.String("reason", parsed.Reason))
		return verdict
	}

	verdict.Score = parsed.Value.Score
	verdict.Risks = parsed.Value.Risks
	verdict.Approved = parsed.Value.Approve && parsed.Value.Score >= g.opts.ScoreFloor

	g.logger.Info("Dual review completed.",
		zap.Bool("approved", verdict.Approved),
		zap.Float64("score", verdict.Score),
		zap.String("proposer", verdict.RaterA),
		zap.String("evaluator", verdict.RaterB),
		zap.Bool("proposer_responded", proposerContent != ""),
	)
	return verdict
}

const proposerSystem = `You are reviewing a proposed source code change. Argue the strongest good-faith case FOR applying it. Describe the benefit it delivers and the problem it addresses. Do not score it and do not approve or reject it.`

const evaluatorSystem = `You are the final safety reviewer for a proposed source code change. List the concrete risks of applying it, then give a quality score from 0 to 10 and an approval decision.
Respond ONLY with a JSON object: {"approve": true|false, "score": <0-10>, "risks": "<summary of risks>"}`

func (g *Gate) proposerPrompt(c schemas.Candidate, originalText string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Proposed change: %s\nCategory: %s\n\n", c.Description, c.Category)
	fmt.Fprintf(&sb, "Text to replace:\n```\n%s\n```\n\nReplacement:\n```\n%s\n```\n", c.Search, c.Replace)
	fmt.Fprintf(&sb, "\nFile context (may be truncated):\n```go\n%s\n```\n", oracleutil.Truncate(originalText, 6000))
	return sb.String()
}

func (g *Gate) evaluatorPrompt(c schemas.Candidate, originalText string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A change is proposed to a live source file.\nDescription: %s\n\n", c.Description)
	fmt.Fprintf(&sb, "Text to replace:\n```\n%s\n```\n\nReplacement:\n```\n%s\n```\n", c.Search, c.Replace)
	fmt.Fprintf(&sb, "\nFile context (may be truncated):\n```go\n%s\n```\n", oracleutil.Truncate(originalText, 6000))
	sb.WriteString("\nList the risks, score the change 0-10, and decide approval. JSON only.")
	return sb.String()
}
