package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageError(t *testing.T) {
	cause := errors.New("connection refused")

	t.Run("before the dataset id is known", func(t *testing.T) {
		err := &StageError{Stage: StageDatasetID, Err: cause}
		assert.Equal(t, "stage dataset_id: connection refused", err.Error())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("with dataset id", func(t *testing.T) {
		err := &StageError{Stage: StageDealers, DatasetID: "abc123", Err: cause}
		assert.Equal(t, "stage dealers (dataset abc123): connection refused", err.Error())
	})
}

func TestStageOf(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", &StageError{Stage: StageSubmit, Err: errors.New("x")})

	stage, ok := StageOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, StageSubmit, stage)

	_, ok = StageOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestOutcome_Response(t *testing.T) {
	assert.Empty(t, Outcome{Status: StatusFailed}.Response())
	assert.Equal(t, "ok", Outcome{Status: StatusDone, Result: &RunResult{Response: "ok"}}.Response())
}
