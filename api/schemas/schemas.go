// api/schemas/schemas.go
package schemas

import (
	"time"
)

// Candidate is an oracle-proposed, unverified source edit. It is created per
// pipeline invocation and discarded at the first gate it fails.
type Candidate struct {
	ID             string  `json:"id"`
	Description    string  `json:"description"`
	Search         string  `json:"search"`
	Replace        string  `json:"replace"`
	Confidence     float64 `json:"confidence"`
	Category       string  `json:"category"`
	OriginProvider string  `json:"origin_provider"`
}

// MatchStrategy names the tier of the matching cascade that located a snippet.
type MatchStrategy string

const (
	MatchExact      MatchStrategy = "exact"
	MatchStripped   MatchStrategy = "line_marker_stripped"
	MatchNormalized MatchStrategy = "whitespace_normalized"
	MatchAnchored   MatchStrategy = "first_line_anchor"
	MatchNone       MatchStrategy = "none"
)

// MatchResult is the output of the patcher's Locate call. When Found is true,
// replacing ExactText at [ByteOffset, ByteOffset+ByteLength) with the
// candidate's Replace text is well defined and reproducible.
type MatchResult struct {
	Found      bool          `json:"found"`
	ByteOffset int           `json:"byte_offset"`
	ByteLength int           `json:"byte_length"`
	ExactText  string        `json:"exact_text"`
	Strategy   MatchStrategy `json:"strategy"`
}

// FeatureVectorDim is the fixed dimensionality of every feature vector the
// extractor produces. Vectors of differing dimensionality must never be compared.
const FeatureVectorDim = 14

// FeatureVector is a fixed-dimension array of non-negative counts and ratios
// describing the structural shape of a source body.
type FeatureVector [FeatureVectorDim]float64

// Indices into a FeatureVector.
const (
	FeatLineCount = iota
	FeatFuncCount
	FeatTypeCount
	FeatBranchCount
	FeatLoopCount
	FeatSwitchCount
	FeatDeferRecoverCount
	FeatGoroutineCount
	FeatChannelOpCount
	FeatCompositeLitCount
	FeatRegexLitCount
	FeatImportCount
	FeatCommentRatio
	FeatAvgLineLength
)

// NoveltyRecord is one archived mutation outcome used for k-nearest-neighbor
// novelty scoring.
type NoveltyRecord struct {
	Features  FeatureVector     `json:"features"`
	Fitness   float64           `json:"fitness"`
	Novelty   float64           `json:"novelty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// CheckResult is the outcome of one named verification check.
type CheckResult struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

// VerificationReport aggregates every check run against a proposed mutation.
// It is immutable once produced; Pass is the logical AND of all checks.
type VerificationReport struct {
	File   string        `json:"file"`
	Pass   bool          `json:"pass"`
	Checks []CheckResult `json:"checks"`
}

// Summary renders a compact one-line digest of the report for log entries.
func (r VerificationReport) Summary() string {
	if r.Pass {
		return "all checks passed"
	}
	for _, c := range r.Checks {
		if !c.Pass {
			if c.Reason != "" {
				return c.Name + ": " + c.Reason
			}
			return c.Name + " failed"
		}
	}
	return "failed"
}

// ReviewVerdict is the result of the dual-review gate. RaterA is the proposer
// framing (informational only); RaterB is the evaluator and the actual gate.
type ReviewVerdict struct {
	Approved bool    `json:"approved"`
	Score    float64 `json:"score"`
	RaterA   string  `json:"rater_a"`
	RaterB   string  `json:"rater_b"`
	Risks    string  `json:"risks,omitempty"`
}

// CycleOutcome labels the terminal transition of one orchestrator cycle.
type CycleOutcome string

const (
	OutcomeCommitted          CycleOutcome = "committed"
	OutcomeNoCandidate        CycleOutcome = "no_candidate"
	OutcomeNoMatch            CycleOutcome = "no_match"
	OutcomeLowConfidence      CycleOutcome = "low_confidence"
	OutcomeLowNovelty         CycleOutcome = "low_novelty"
	OutcomeReviewRejected     CycleOutcome = "review_rejected"
	OutcomeVerificationFailed CycleOutcome = "verification_failed"
	OutcomeCommitFailed       CycleOutcome = "commit_failed"
	OutcomeOracleFailed       CycleOutcome = "oracle_failed"
	OutcomeDryRun             CycleOutcome = "dry_run"
)

// EvolutionLogEntry is the append-only audit record of one terminal transition.
// The journal of these entries is the pipeline's only durable decision trail.
type EvolutionLogEntry struct {
	ID                  string       `json:"id"`
	Cycle               uint64       `json:"cycle"`
	File                string       `json:"file"`
	Description         string       `json:"description"`
	FitnessScore        float64      `json:"fitness_score"`
	NoveltyScore        float64      `json:"novelty_score"`
	VerificationSummary string       `json:"verification_summary,omitempty"`
	Outcome             CycleOutcome `json:"outcome"`
	Timestamp           time.Time    `json:"timestamp"`
}
