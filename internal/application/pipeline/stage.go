package pipeline

import (
	"errors"
	"fmt"

	"github.com/example/dealerreport/internal/domain/dealer"
)

// Stage names a step of a run. Stages execute strictly in declaration order.
type Stage string

const (
	StageDatasetID  Stage = "dataset_id"
	StageVehicleIDs Stage = "vehicle_ids"
	StageVehicles   Stage = "vehicles"
	StageDealerIDs  Stage = "dealer_ids"
	StageDealers    Stage = "dealers"
	StageReport     Stage = "report"
	StageSubmit     Stage = "submit"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// StageError attributes a failure to the stage it happened in.
type StageError struct {
	Stage     Stage
	DatasetID dealer.DatasetID // empty when the failure precedes the dataset id
	Err       error
}

// Error implements the error interface
func (e *StageError) Error() string {
	if e.DatasetID.IsZero() {
		return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s (dataset %s): %v", e.Stage, e.DatasetID, e.Err)
}

// Unwrap returns the underlying error
func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage err is attributed to, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
