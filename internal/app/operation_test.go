package app

import (
	"errors"
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		now       time.Time
		wantID    string
	}{
		{
			name:      "utc start",
			operation: "AddRow",
			now:       time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			wantID:    "20240115T103000Z-AddRow",
		},
		{
			name:      "local start is normalized",
			operation: "CreateProject",
			now:       time.Date(2024, 1, 15, 12, 30, 0, 0, time.FixedZone("CEST", 2*60*60)),
			wantID:    "20240115T103000Z-CreateProject",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.operation, tt.now)

			if op.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", op.ID, tt.wantID)
			}
			if op.Name != tt.operation {
				t.Errorf("Name = %q, want %q", op.Name, tt.operation)
			}
			if op.Status != "success" {
				t.Errorf("Status = %q, want %q", op.Status, "success")
			}
			if op.Failed() {
				t.Error("Failed() = true for a new operation")
			}
		})
	}
}

func TestOperation_Fail(t *testing.T) {
	op := NewOperation("AddRow", time.Now())
	first := errors.New("first")

	op.Fail(nil)
	if op.Failed() {
		t.Fatal("Fail(nil) marked the operation failed")
	}

	op.Fail(first)
	op.Fail(errors.New("second"))

	if !op.Failed() || op.Status != "error" {
		t.Errorf("operation = %+v, want failed", op)
	}
	if op.Err != first {
		t.Errorf("Err = %v, want the first failure", op.Err)
	}
}
