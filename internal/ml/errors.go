package ml

import (
	"errors"
	"fmt"
)

// ErrModelNotTrained is returned by Predict before the first successful
// training pass has installed a model snapshot.
var ErrModelNotTrained = errors.New("prediction model has not been trained")

// ErrNoMachineData is returned when the model is trained but holds no
// history for the requested machine. Callers degrade the same way they
// do for an untrained model.
var ErrNoMachineData = errors.New("no training data for requested machine")

// InvalidMachineError reports a machine ID outside the valid range.
type InvalidMachineError struct {
	MachineID int
}

func (e *InvalidMachineError) Error() string {
	return fmt.Sprintf("machine %d is outside the valid range %d-%d", e.MachineID, MinMachineID, MaxMachineID)
}

// UnknownWorkerError reports a stats lookup for a worker with no job history.
type UnknownWorkerError struct {
	Worker string
}

func (e *UnknownWorkerError) Error() string {
	return fmt.Sprintf("no job history for worker %q", e.Worker)
}
