// internal/review/review_test.go
package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/mocks"
)

var testCandidate = schemas.Candidate{
	ID:          "cand-1",
	Description: "tighten error handling in helper",
	Search:      "return err",
	Replace:     `return fmt.Errorf("helper: %w", err)`,
	Confidence:  0.9,
}

func okResponse(content string) schemas.OracleResponse {
	return schemas.OracleResponse{Success: true, Content: content, ProviderID: "mock"}
}

func newTestGate(t *testing.T, proposer, evaluator *mocks.MockOracle) *Gate {
	g, err := NewGate(zaptest.NewLogger(t), proposer, evaluator, Options{})
	require.NoError(t, err)
	return g
}

func TestNewGate_RejectsSameProvider(t *testing.T) {
	same := mocks.NewMockOracle("gemini-pro")

	_, err := NewGate(zaptest.NewLogger(t), same, same, Options{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "distinct providers")
}

func TestReview_ApprovesOnEvaluatorVerdict(t *testing.T) {
	defer goleak.VerifyNone(t)

	proposer := mocks.NewMockOracle("rater-a")
	evaluator := mocks.NewMockOracle("rater-b")
	proposer.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResponse("this change improves clarity"), nil)
	evaluator.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResponse(`{"approve": true, "score": 8.5, "risks": "minimal"}`), nil)

	verdict := newTestGate(t, proposer, evaluator).Review(context.Background(), testCandidate, "package x")

	assert.True(t, verdict.Approved)
	assert.Equal(t, 8.5, verdict.Score)
	assert.Equal(t, "rater-a", verdict.RaterA)
	assert.Equal(t, "rater-b", verdict.RaterB)
}

func TestReview_ScoreBelowFloorRejects(t *testing.T) {
	proposer := mocks.NewMockOracle("rater-a")
	evaluator := mocks.NewMockOracle("rater-b")
	proposer.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResponse("looks fine"), nil)
	// Approve=true but the score misses the floor; the conjunction governs.
	evaluator.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResponse(`{"approve": true, "score": 6.9, "risks": "borderline"}`), nil)

	verdict := newTestGate(t, proposer, evaluator).Review(context.Background(), testCandidate, "package x")

	assert.False(t, verdict.Approved)
	assert.Equal(t, 6.9, verdict.Score)
}

func TestReview_EvaluatorErrorFailsClosed(t *testing.T) {
	proposer := mocks.NewMockOracle("rater-a")
	evaluator := mocks.NewMockOracle("rater-b")
	proposer.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResponse("strong case for the change"), nil)
	evaluator.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(schemas.OracleResponse{}, errors.New("upstream timeout"))

	verdict := newTestGate(t, proposer, evaluator).Review(context.Background(), testCandidate, "package x")

	assert.False(t, verdict.Approved)
	assert.Zero(t, verdict.Score)
}

func TestReview_UnparsableEvaluatorFailsClosed(t *testing.T) {
	proposer := mocks.NewMockOracle("rater-a")
	evaluator := mocks.NewMockOracle("rater-b")
	proposer.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResponse("fine"), nil)
	evaluator.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResponse("Sure! The change looks great, 10/10."), nil)

	verdict := newTestGate(t, proposer, evaluator).Review(context.Background(), testCandidate, "package x")

	assert.False(t, verdict.Approved, "prose without the JSON verdict must never approve")
}

func TestReview_ProposerFailureDoesNotBlockVerdict(t *testing.T) {
	proposer := mocks.NewMockOracle("rater-a")
	evaluator := mocks.NewMockOracle("rater-b")
	proposer.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(schemas.OracleResponse{}, errors.New("proposer down"))
	evaluator.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResponse(`{"approve": true, "score": 9, "risks": "none noted"}`), nil)

	verdict := newTestGate(t, proposer, evaluator).Review(context.Background(), testCandidate, "package x")

	assert.True(t, verdict.Approved, "the evaluator alone is the gate; the proposer is informational")
}

func TestReview_EvaluatorDecidesNotProposer(t *testing.T) {
	proposer := mocks.NewMockOracle("rater-a")
	evaluator := mocks.NewMockOracle("rater-b")
	// The proposer enthusiastically endorses; the evaluator rejects.
	proposer.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResponse(`{"approve": true, "score": 10, "risks": "none"}`), nil)
	evaluator.On("Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResponse(`{"approve": false, "score": 3, "risks": "deletes validation"}`), nil)

	verdict := newTestGate(t, proposer, evaluator).Review(context.Background(), testCandidate, "package x")

	assert.False(t, verdict.Approved)
	assert.Equal(t, 3.0, verdict.Score)
	assert.Equal(t, "deletes validation", verdict.Risks)
}
