package app

import (
	"encoding/json"
	"fmt"

	"filmgov/internal/model"
)

// Operation tracks a CLI command that may be recorded as a Run.
// Operations are created in memory with ID=0. Only batch commands persist
// them, which gives them an auto-increment ID from the database.
type Operation struct {
	ID         int64
	UUID       string
	Name       string
	Parameters string
	Status     string // model.RunSuccess or model.RunError
	Summary    string // JSON
}

// NewOperation creates a new in-memory operation.
func NewOperation(uuid, name, parameters string) *Operation {
	return &Operation{
		UUID:       uuid,
		Name:       name,
		Parameters: parameters,
		Status:     model.RunSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed. The summary keeps whatever was
// recorded before the failure and gains the error text.
func (op *Operation) Fail(err error) {
	op.Status = model.RunError
	summary := map[string]any{}
	if op.Summary != "" {
		_ = json.Unmarshal([]byte(op.Summary), &summary)
	}
	summary["error"] = err.Error()
	data, _ := json.Marshal(summary)
	op.Summary = string(data)
}

// Record stores v as the operation's JSON summary.
func (op *Operation) Record(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding run summary: %w", err)
	}
	op.Summary = string(data)
	return nil
}

// run returns the model row for a newly started operation.
func (op *Operation) run() *model.Run {
	return &model.Run{
		UUID:       op.UUID,
		Operation:  op.Name,
		Parameters: op.Parameters,
		Status:     model.RunRunning,
	}
}
