package app

import (
	"fmt"
	"time"
)

// Operation tracks one CLI invocation. Its ID tags every log line written
// while the command runs.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string // "success" or "error"
	Err       error
}

// NewOperation creates an operation that has not failed yet.
func NewOperation(name string, now time.Time) *Operation {
	now = now.UTC()
	return &Operation{
		ID:        fmt.Sprintf("%s-%s", now.Format("20060102T150405Z"), name),
		Name:      name,
		StartedAt: now,
		Status:    "success",
	}
}

// Fail records err as the outcome. Only the first failure is kept.
func (op *Operation) Fail(err error) {
	if err == nil || op.Err != nil {
		return
	}
	op.Status = "error"
	op.Err = err
}

// Failed returns true if the operation recorded an error.
func (op *Operation) Failed() bool {
	return op.Err != nil
}
