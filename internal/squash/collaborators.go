package squash

import (
	"context"
	"time"
)

// Origin resolves references and reports history for the repository being migrated from.
type Origin interface {
	// Resolve resolves the requested reference, or the origin's default head when none is requested.
	Resolve(executionContext context.Context, reference OptionalReference) (Reference, error)
	// ChangesBetween lists the changes after from up to and including to, oldest first.
	ChangesBetween(executionContext context.Context, from Reference, to Reference) ([]Change, error)
	// LabelName is the key under which destinations record the last migrated reference.
	LabelName() string
}

// Destination persists migrated content.
type Destination interface {
	// Process writes the content of directory as a single change.
	Process(executionContext context.Context, directory string, reference Reference, timestamp int64, message string) error
	// PreviousReference returns the last reference recorded under label, if any.
	PreviousReference(executionContext context.Context, label string) (string, bool, error)
}

// Transformation mutates a working directory in place.
type Transformation interface {
	Name() string
	Apply(executionContext context.Context, directory string) error
}

// Reporter receives user-facing progress notifications.
type Reporter interface {
	Progress(message string)
	Warn(message string)
}

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

type noopReporter struct{}

func (noopReporter) Progress(string) {}

func (noopReporter) Warn(string) {}
