package folderorigin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/reposquash/internal/fsutil"
	"github.com/temirov/reposquash/internal/squash"
)

const (
	// LabelNameConstant is the label destinations use to record migrated folder paths.
	LabelNameConstant = "FolderOrigin-Path"

	gitDirectoryNameConstant          = ".git"
	resolveOperationConstant          = "resolve"
	changesOperationConstant          = "list changes"
	copyOperationConstant             = "copy folder"
	clearOperationConstant            = "clear working directory"
	folderPathMissingMessageConstant  = "folder origin requires a path"
	historyUnsupportedMessageConstant = "folder origins do not track history"
	notDirectoryTemplateConstant      = "%s is not a directory"
	logFieldPathConstant              = "path"
	resolvedLogMessageConstant        = "Resolved folder origin"
)

var (
	// ErrFolderPathMissing indicates the origin was configured without a path.
	ErrFolderPathMissing = errors.New(folderPathMissingMessageConstant)
	// ErrHistoryUnsupported is returned by ChangesBetween; folders carry no change history.
	ErrHistoryUnsupported = errors.New(historyUnsupportedMessageConstant)
)

// Configuration describes a folder origin.
type Configuration struct {
	Path string
}

// Origin implements squash.Origin over a local directory.
type Origin struct {
	logger *zap.Logger
	path   string
}

// NewOrigin constructs a folder origin.
func NewOrigin(logger *zap.Logger, configuration Configuration) (*Origin, error) {
	trimmedPath := strings.TrimSpace(configuration.Path)
	if len(trimmedPath) == 0 {
		return nil, ErrFolderPathMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Origin{logger: logger, path: trimmedPath}, nil
}

// LabelName implements squash.Origin.
func (origin *Origin) LabelName() string {
	return LabelNameConstant
}

// Resolve implements squash.Origin. An explicit reference names another folder to read instead of the configured one.
func (origin *Origin) Resolve(_ context.Context, requested squash.OptionalReference) (squash.Reference, error) {
	folderPath := origin.path
	if requestedPath, present := requested.Name(); present {
		folderPath = requestedPath
	}

	absolutePath, absoluteError := filepath.Abs(folderPath)
	if absoluteError != nil {
		return nil, squash.OriginError{Operation: resolveOperationConstant, Cause: absoluteError}
	}

	folderInfo, statError := os.Stat(absolutePath)
	if statError != nil {
		return nil, squash.OriginError{Operation: resolveOperationConstant, Cause: statError}
	}
	if !folderInfo.IsDir() {
		return nil, squash.OriginError{Operation: resolveOperationConstant, Cause: fmt.Errorf(notDirectoryTemplateConstant, absolutePath)}
	}

	origin.logger.Debug(resolvedLogMessageConstant, zap.String(logFieldPathConstant, absolutePath))
	return Reference{path: absolutePath}, nil
}

// ChangesBetween implements squash.Origin and always fails with ErrHistoryUnsupported.
func (origin *Origin) ChangesBetween(context.Context, squash.Reference, squash.Reference) ([]squash.Change, error) {
	return nil, squash.OriginError{Operation: changesOperationConstant, Cause: ErrHistoryUnsupported}
}

// Reference is a resolved folder.
type Reference struct {
	path string
}

// Checkout implements squash.Reference by copying the folder, without any .git directory, into targetDirectory.
func (reference Reference) Checkout(_ context.Context, targetDirectory string) error {
	if clearError := fsutil.EnsureEmptyDirectory(targetDirectory); clearError != nil {
		return squash.FilesystemError{Operation: clearOperationConstant, Path: targetDirectory, Cause: clearError}
	}
	if copyError := fsutil.CopyTree(reference.path, targetDirectory, gitDirectoryNameConstant); copyError != nil {
		return squash.FilesystemError{Operation: copyOperationConstant, Path: reference.path, Cause: copyError}
	}
	return nil
}

// Timestamp implements squash.Reference. Folders have no intrinsic timestamp.
func (Reference) Timestamp() (int64, bool) {
	return 0, false
}

// LabelName implements squash.Reference.
func (Reference) LabelName() string {
	return LabelNameConstant
}

// String returns the absolute folder path.
func (reference Reference) String() string {
	return reference.path
}
