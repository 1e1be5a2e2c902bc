package databox

import (
	"time"

	"github.com/google/uuid"
)

// The collaborators below are injected into NewWorkspace. internal/app wires
// the real ones; internal/testutil has deterministic stand-ins.

// Clock stamps createdAt/updatedAt fields. The workspace stores every stamp in UTC.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator allocates ids for projects, tables, columns, keys, policies
// and buckets. Ids already present in the tenant graph are drawn again.
type IDGenerator interface {
	New() string
}

// UUIDGenerator allocates random version 4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }

// Logger receives workspace events as a message plus slog style key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger drops every event.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}
