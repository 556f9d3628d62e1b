package folderdestination

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/reposquash/internal/fsutil"
	"github.com/temirov/reposquash/internal/squash"
)

const (
	replaceOperationConstant  = "replace folder content"
	pathMissingMessage        = "folder destination requires a path"
	logFieldPathConstant      = "path"
	logFieldReferenceConstant = "reference"
	logFieldTimestampConstant = "timestamp"
	writtenLogMessageConstant = "Wrote migrated folder"
)

// ErrPathMissing indicates the destination was configured without a path.
var ErrPathMissing = errors.New(pathMissingMessage)

// Configuration describes a folder destination.
type Configuration struct {
	Path string
}

// Destination implements squash.Destination over a local directory.
type Destination struct {
	logger *zap.Logger
	path   string
}

// NewDestination constructs a folder destination.
func NewDestination(logger *zap.Logger, configuration Configuration) (*Destination, error) {
	trimmedPath := strings.TrimSpace(configuration.Path)
	if len(trimmedPath) == 0 {
		return nil, ErrPathMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Destination{logger: logger, path: trimmedPath}, nil
}

// Process implements squash.Destination by replacing the folder content with directory.
// The message is not persisted.
func (destination *Destination) Process(_ context.Context, directory string, reference squash.Reference, timestamp int64, _ string) error {
	if clearError := fsutil.EnsureEmptyDirectory(destination.path); clearError != nil {
		return squash.DestinationError{Operation: replaceOperationConstant, Cause: clearError}
	}
	if copyError := fsutil.CopyTree(directory, destination.path); copyError != nil {
		return squash.DestinationError{Operation: replaceOperationConstant, Cause: copyError}
	}

	destination.logger.Info(
		writtenLogMessageConstant,
		zap.String(logFieldPathConstant, destination.path),
		zap.String(logFieldReferenceConstant, reference.String()),
		zap.Int64(logFieldTimestampConstant, timestamp),
	)
	return nil
}

// PreviousReference implements squash.Destination. Folders never record previous references.
func (destination *Destination) PreviousReference(context.Context, string) (string, bool, error) {
	return "", false, nil
}
