package ff

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies "now" to the trial countdown and the log timestamps. Only
// its local calendar date matters to the trial.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock in the local time zone.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator fills in ids for records added without one.
type IDGenerator interface {
	New() string
}

// UUIDGenerator issues random (v4) UUID strings.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
