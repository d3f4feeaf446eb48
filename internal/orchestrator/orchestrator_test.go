// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/config"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/journal"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/mocks"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/novelty"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/review"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/verifier"
)

const targetFile = "target.go"

const targetSource = `package tool

// Process handles one item.
func Process(item string) string {
	if item == "" {
		return "unset"
	}
	return item
}

func helper() int {
	return 1
}
`

const goodCandidateJSON = `{"description": "normalize the processed item", "search": "return item", "replace": "return normalize(item)", "confidence": 0.9, "category": "refactor"}`

const approveJSON = `{"approve": true, "score": 9, "risks": "minimal"}`
const rejectJSON = `{"approve": false, "score": 3, "risks": "removes a branch"}`

// harness bundles one fully wired orchestrator over an in-memory store.
type harness struct {
	orch      *Orchestrator
	store     *mocks.MemStore
	journal   *journal.Journal
	archive   *novelty.Archive
	proposer  *mocks.MockOracle
	evaluator *mocks.MockOracle
	committer *mocks.MockCommitter
}

func defaultEvolutionConfig() config.EvolutionConfig {
	return config.EvolutionConfig{
		TargetFiles:        []string{targetFile},
		FitnessWeight:      0.6,
		NoveltyWeight:      0.4,
		ConfidenceCutoff:   0.7,
		NoveltyFloor:       0.1,
		FunctionCountFloor: 0.8,
		SizeDeltaBound:     0.2,
		ReviewScoreFloor:   7.0,
		OracleTimeout:      time.Minute,
		MinAnchorLength:    10,
	}
}

func newHarness(t *testing.T, cfg config.EvolutionConfig) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store := mocks.NewMemStore()
	store.Seed(targetFile, []byte(targetSource))

	proposer := mocks.NewMockOracle("proposer-mock")
	evaluator := mocks.NewMockOracle("evaluator-mock")
	gate, err := review.NewGate(logger, proposer, evaluator, review.Options{ScoreFloor: cfg.ReviewScoreFloor})
	require.NoError(t, err)

	arch := novelty.NewArchive(logger, novelty.Options{
		FitnessWeight: cfg.FitnessWeight,
		NoveltyWeight: cfg.NoveltyWeight,
	})
	jrnl := journal.New(logger, filepath.Join(t.TempDir(), "journal.json"), 0)
	committer := &mocks.MockCommitter{}

	orch, err := New(logger, cfg, Deps{
		Store:     store,
		Proposer:  proposer,
		Gate:      gate,
		Verifier:  verifier.New(logger, verifier.Options{}),
		Archive:   arch,
		Journal:   jrnl,
		Committer: committer,
	})
	require.NoError(t, err)

	return &harness{
		orch:      orch,
		store:     store,
		journal:   jrnl,
		archive:   arch,
		proposer:  proposer,
		evaluator: evaluator,
		committer: committer,
	}
}

func (h *harness) stubProposer(content string) {
	h.proposer.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(schemas.OracleResponse{Success: true, Content: content, ProviderID: "proposer-mock"}, nil)
}

func (h *harness) stubEvaluator(content string) {
	h.evaluator.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(schemas.OracleResponse{Success: true, Content: content, ProviderID: "evaluator-mock"}, nil)
}

func (h *harness) lastOutcome(t *testing.T) schemas.EvolutionLogEntry {
	t.Helper()
	entries := h.journal.Entries()
	require.NotEmpty(t, entries, "a terminal transition must always be journaled")
	return entries[len(entries)-1]
}

func TestRunOneCycle_CommitsApprovedMutation(t *testing.T) {
	h := newHarness(t, defaultEvolutionConfig())
	h.stubProposer(goodCandidateJSON)
	h.stubEvaluator(approveJSON)
	h.committer.On("RecordMutation", targetFile, mock.Anything).Return("abc123", nil)

	entry, err := h.orch.RunOneCycle(context.Background())

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, schemas.OutcomeCommitted, entry.Outcome)
	assert.InDelta(t, 0.9, entry.FitnessScore, 1e-9)

	content, err := h.store.Read(targetFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "return normalize(item)")

	assert.Equal(t, 1, h.archive.Len(), "a committed mutation must enter the novelty archive")
	h.committer.AssertExpectations(t)
}

func TestRunOneCycle_NoMatchIsJournaledAndReturnsNil(t *testing.T) {
	h := newHarness(t, defaultEvolutionConfig())
	h.stubProposer(`{"description": "edit", "search": "text that exists nowhere in this file at all", "replace": "x", "confidence": 0.9, "category": "refactor"}`)
	h.stubEvaluator(approveJSON)

	entry, err := h.orch.RunOneCycle(context.Background())

	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, schemas.OutcomeNoMatch, h.lastOutcome(t).Outcome)

	content, _ := h.store.Read(targetFile)
	assert.Equal(t, targetSource, string(content), "a failed match must leave the target untouched")
}

func TestRunOneCycle_LowConfidenceRejected(t *testing.T) {
	h := newHarness(t, defaultEvolutionConfig())
	h.stubProposer(`{"description": "risky edit", "search": "return item", "replace": "return x", "confidence": 0.3, "category": "refactor"}`)

	entry, err := h.orch.RunOneCycle(context.Background())

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, schemas.OutcomeLowConfidence, entry.Outcome)
	// Neither review nor verification ran.
	h.evaluator.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunOneCycle_LowNoveltyRejectedBeforeReview(t *testing.T) {
	cfg := defaultEvolutionConfig()
	cfg.NoveltyFloor = 1.1 // unreachable floor forces the gate to trip
	h := newHarness(t, cfg)
	h.stubProposer(goodCandidateJSON)

	entry, err := h.orch.RunOneCycle(context.Background())

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, schemas.OutcomeLowNovelty, entry.Outcome)
	h.evaluator.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunOneCycle_ReviewRejection(t *testing.T) {
	h := newHarness(t, defaultEvolutionConfig())
	h.stubProposer(goodCandidateJSON)
	h.stubEvaluator(rejectJSON)

	entry, err := h.orch.RunOneCycle(context.Background())

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, schemas.OutcomeReviewRejected, entry.Outcome)

	content, _ := h.store.Read(targetFile)
	assert.Equal(t, targetSource, string(content))
}

func TestRunOneCycle_VerificationFailure(t *testing.T) {
	h := newHarness(t, defaultEvolutionConfig())
	// The replacement breaks the syntax, so the compile check rejects it.
	h.stubProposer(`{"description": "bad edit", "search": "return item", "replace": "return }", "confidence": 0.9, "category": "refactor"}`)
	h.stubEvaluator(approveJSON)

	entry, err := h.orch.RunOneCycle(context.Background())

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, schemas.OutcomeVerificationFailed, entry.Outcome)
	assert.Contains(t, entry.VerificationSummary, "compiles")

	content, _ := h.store.Read(targetFile)
	assert.Equal(t, targetSource, string(content), "a rejected mutation must never reach disk")
}

func TestRunOneCycle_CommitFailureRestoresBackup(t *testing.T) {
	h := newHarness(t, defaultEvolutionConfig())
	h.stubProposer(goodCandidateJSON)
	h.stubEvaluator(approveJSON)
	h.store.FailWrite = errors.New("disk full")

	entry, err := h.orch.RunOneCycle(context.Background())

	require.NoError(t, err, "a restored commit failure is a rejection, not an error")
	require.NotNil(t, entry)
	assert.Equal(t, schemas.OutcomeCommitFailed, entry.Outcome)

	content, readErr := h.store.Read(targetFile)
	require.NoError(t, readErr)
	assert.Equal(t, targetSource, string(content), "the backup must be restored after a failed write")
	assert.Zero(t, h.archive.Len(), "a failed commit must not enter the archive")
}

func TestRunOneCycle_RestoreFailureEscalates(t *testing.T) {
	h := newHarness(t, defaultEvolutionConfig())
	h.stubProposer(goodCandidateJSON)
	h.stubEvaluator(approveJSON)
	h.store.FailWrite = errors.New("disk full")
	h.store.FailRestore = errors.New("backup unreadable")

	entry, err := h.orch.RunOneCycle(context.Background())

	require.Error(t, err, "failing to restore the backup is the one unrecoverable condition")
	assert.Contains(t, err.Error(), "restoration failed")
	require.NotNil(t, entry)
	assert.Equal(t, schemas.OutcomeCommitFailed, entry.Outcome)
}

func TestRunOneCycle_DryRunStopsBeforeCommit(t *testing.T) {
	cfg := defaultEvolutionConfig()
	cfg.DryRun = true
	h := newHarness(t, cfg)
	h.stubProposer(goodCandidateJSON)
	h.stubEvaluator(approveJSON)

	entry, err := h.orch.RunOneCycle(context.Background())

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, schemas.OutcomeDryRun, entry.Outcome)

	content, _ := h.store.Read(targetFile)
	assert.Equal(t, targetSource, string(content))
	assert.Zero(t, h.archive.Len())
}

func TestRunOneCycle_ReadFailureIsRecovered(t *testing.T) {
	cfg := defaultEvolutionConfig()
	cfg.TargetFiles = []string{"missing.go"}
	h := newHarness(t, cfg)

	entry, err := h.orch.RunOneCycle(context.Background())

	require.NoError(t, err, "an unreadable target must not end the loop")
	assert.Nil(t, entry)
	assert.Equal(t, 0, h.journal.Len())
	h.proposer.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunOneCycle_OracleFailure(t *testing.T) {
	h := newHarness(t, defaultEvolutionConfig())
	h.proposer.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(schemas.OracleResponse{}, errors.New("upstream 500"))

	entry, err := h.orch.RunOneCycle(context.Background())

	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, schemas.OutcomeOracleFailed, h.lastOutcome(t).Outcome)
}

func TestRunOneCycle_UnparsableCandidate(t *testing.T) {
	h := newHarness(t, defaultEvolutionConfig())
	h.stubProposer("I would suggest making the code better in general.")

	entry, err := h.orch.RunOneCycle(context.Background())

	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, schemas.OutcomeNoCandidate, h.lastOutcome(t).Outcome)
}

func TestRunOneCycle_CancellationAbandonsCommit(t *testing.T) {
	h := newHarness(t, defaultEvolutionConfig())
	h.stubProposer(goodCandidateJSON)
	h.stubEvaluator(approveJSON)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	entry, err := h.orch.RunOneCycle(ctx)

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, schemas.OutcomeCommitFailed, entry.Outcome)

	content, _ := h.store.Read(targetFile)
	assert.Equal(t, targetSource, string(content), "cancellation must leave the last committed state")
}

func TestRepairCycle_ConsumesQueuedWeakSpot(t *testing.T) {
	h := newHarness(t, defaultEvolutionConfig())
	h.proposer.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(schemas.OracleResponse{}, errors.New("unavailable"))

	h.orch.EnqueueRepair(targetFile)

	_, err := h.orch.RunRepairCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, h.journal.Len())
	assert.Equal(t, targetFile, h.lastOutcome(t).File)

	// The queue is drained; a second repair cycle is a no-op.
	_, err = h.orch.RunRepairCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.journal.Len())
}

func TestEnqueueRepair_IgnoresNonTargets(t *testing.T) {
	h := newHarness(t, defaultEvolutionConfig())

	h.orch.EnqueueRepair("unrelated.go")

	_, err := h.orch.RunRepairCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, h.journal.Len())
}
