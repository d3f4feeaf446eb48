// File: cmd/evolve_test.go
package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
)

func TestOnceOutcomeErr(t *testing.T) {
	testCases := []struct {
		outcome schemas.CycleOutcome
		wantErr bool
	}{
		{schemas.OutcomeCommitted, false},
		{schemas.OutcomeDryRun, false},
		{schemas.OutcomeNoCandidate, true},
		{schemas.OutcomeNoMatch, true},
		{schemas.OutcomeLowConfidence, true},
		{schemas.OutcomeLowNovelty, true},
		{schemas.OutcomeReviewRejected, true},
		{schemas.OutcomeVerificationFailed, true},
		{schemas.OutcomeCommitFailed, true},
		{schemas.OutcomeOracleFailed, true},
	}

	for _, tc := range testCases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			err := onceOutcomeErr(tc.outcome)
			if tc.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), string(tc.outcome))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
