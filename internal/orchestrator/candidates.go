// File: internal/orchestrator/candidates.go
// Description: Candidate acquisition. Wraps the proposer oracle call with the
// per-framing prompt, then extracts and validates the candidate JSON from the
// untrusted response.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/oracleutil"
)

// framing selects the intent the proposer is prompted with. All framings feed
// the same downstream gate sequence.
type framing string

const (
	framingImprove framing = "improve"
	framingRepair  framing = "repair"
	framingPattern framing = "pattern"
)

const candidateSystemPrompt = `You are a careful Go maintainer proposing one small, surgical improvement to a single file.
Respond with a single JSON object and nothing else:
{"description": "<one sentence>", "search": "<exact text currently in the file>", "replace": "<replacement text>", "confidence": <0.0-1.0>, "category": "<refactor|bugfix|robustness|performance|pattern>"}
The "search" text must be copied verbatim from the file. Keep the edit minimal; never remove exported declarations.`

// candidatePayload is the wire shape of a proposed edit.
type candidatePayload struct {
	Description string  `json:"description"`
	Search      string  `json:"search"`
	Replace     string  `json:"replace"`
	Confidence  float64 `json:"confidence"`
	Category    string  `json:"category"`
}

// Sentinel causes for a failed candidate acquisition; the caller maps them to
// terminal outcomes.
var (
	errOracleFailed = errors.New("proposer oracle call failed")
	errNoCandidate  = errors.New("response held no usable candidate")
)

// requestCandidate asks the proposer for one edit against the target.
func (o *Orchestrator) requestCandidate(ctx context.Context, file, originalText string, fr framing) (schemas.Candidate, error) {
	prompt := o.candidatePrompt(file, originalText, fr)

	resp, err := o.proposer.Ask(ctx, prompt, candidateSystemPrompt, schemas.AskOptions{
		ForceJSON:   true,
		Temperature: 0.7,
		TimeoutMs:   o.cfg.OracleTimeout.Milliseconds(),
	})
	if err != nil || !resp.Success {
		o.logger.Warn("Proposer oracle call failed.", zap.String("file", file), zap.Error(err))
		return schemas.Candidate{}, errOracleFailed
	}

	result := oracleutil.ExtractJSON[candidatePayload](resp.Content)
	if !result.OK {
		o.logger.Warn("Proposer response held no parsable candidate.",
			zap.String("file", file), zap.String("reason", result.Reason))
		return schemas.Candidate{}, errNoCandidate
	}

	p := result.Value
	if strings.TrimSpace(p.Search) == "" || p.Replace == p.Search {
		o.logger.Debug("Proposer returned an empty or no-op edit.", zap.String("file", file))
		return schemas.Candidate{}, errNoCandidate
	}
	if p.Confidence < 0 {
		p.Confidence = 0
	}
	if p.Confidence > 1 {
		p.Confidence = 1
	}

	return schemas.Candidate{
		ID:             uuid.New().String(),
		Description:    strings.TrimSpace(p.Description),
		Search:         p.Search,
		Replace:        oracleutil.CleanCodeOutput(p.Replace),
		Confidence:     p.Confidence,
		Category:       p.Category,
		OriginProvider: o.proposer.ProviderID(),
	}, nil
}

// candidatePrompt renders the user prompt for a framing. The file content is
// sent with line numbers so the oracle can reference positions; the matcher's
// marker-stripping tier absorbs the numbers when they leak into "search".
func (o *Orchestrator) candidatePrompt(file, originalText string, fr framing) string {
	var intent string
	switch fr {
	case framingRepair:
		intent = "This file was implicated in a recent runtime error. Propose one edit that makes it more robust against the failure class you consider most likely."
	case framingPattern:
		intent = "Propose one edit that introduces a well-established Go pattern this file would genuinely benefit from (e.g. early returns, sentinel errors, table-driven structure). Do not restructure more than one spot."
	default:
		intent = "Propose one small improvement: clearer naming, tighter error handling, or a simplification that preserves behavior."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nFile: %s\n\n", intent, file)
	for i, line := range strings.Split(originalText, "\n") {
		fmt.Fprintf(&b, "%4d | %s\n", i+1, line)
	}
	return b.String()
}
