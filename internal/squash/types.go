package squash

import (
	"context"
	"strings"
)

const (
	defaultReferenceDescriptionConstant = "origin reference"
	firstLineSeparatorConstant          = "\n"
)

// WorkflowConfig captures the immutable settings of a squash workflow.
type WorkflowConfig struct {
	ConfigName           string
	WorkflowName         string
	LastRevision         string
	IncludeChangeHistory bool
}

// OptionalReference carries a caller-requested origin reference. When absent, the origin resolves its own default head.
type OptionalReference struct {
	name    string
	present bool
}

// DefaultReference requests the origin's default reference.
func DefaultReference() OptionalReference {
	return OptionalReference{}
}

// ExplicitReference requests a named origin reference. Blank names fall back to the default reference.
func ExplicitReference(name string) OptionalReference {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return DefaultReference()
	}
	return OptionalReference{name: trimmedName, present: true}
}

// Name reports the requested reference and whether one was provided.
func (reference OptionalReference) Name() (string, bool) {
	return reference.name, reference.present
}

// String describes the request for progress reporting.
func (reference OptionalReference) String() string {
	if !reference.present {
		return defaultReferenceDescriptionConstant
	}
	return reference.name
}

// Reference is a resolved, point-in-time state of an origin repository.
type Reference interface {
	// Checkout replaces the content of targetDirectory with the content of the reference.
	Checkout(executionContext context.Context, targetDirectory string) error
	// Timestamp reports the reference creation time in seconds since the epoch when known.
	Timestamp() (int64, bool)
	// LabelName is the key destinations use to record the reference.
	LabelName() string
	// String returns the reference identifier.
	String() string
}

// Change describes one historical origin change.
type Change struct {
	ReferenceIdentifier string
	Author              string
	Message             string
}

// FirstLineMessage returns the first line of the change message.
func (change Change) FirstLineMessage() string {
	trimmedMessage := strings.TrimSpace(change.Message)
	firstLine, _, _ := strings.Cut(trimmedMessage, firstLineSeparatorConstant)
	return strings.TrimSpace(firstLine)
}
