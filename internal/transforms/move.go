package transforms

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	// MoveTypeConstant names the move transformation in migration files.
	MoveTypeConstant = "move"

	moveNameTemplateConstant         = "move %s to %s"
	moveSourceMissingMessage         = "move source does not exist"
	moveTargetExistsMessage          = "move target already exists"
	moveEndpointsMissingMessage      = "move transformation requires before and after paths"
	moveSourceErrorTemplateConstant  = "%w: %s"
	moveStatErrorTemplateConstant    = "unable to inspect %s: %w"
	moveParentErrorTemplateConstant  = "unable to create directory %s: %w"
	moveRenameErrorTemplateConstant  = "unable to move %s to %s: %w"
	moveDirectoryPermissionsConstant = fs.FileMode(0o755)
	logFieldSourceConstant           = "source"
	logFieldTargetConstant           = "target"
	moveCompletedLogMessage          = "Moved path"
)

var (
	// ErrMoveEndpointsMissing indicates a move transformation without both paths.
	ErrMoveEndpointsMissing = errors.New(moveEndpointsMissingMessage)
	// ErrMoveSourceMissing indicates the path to move does not exist in the working directory.
	ErrMoveSourceMissing = errors.New(moveSourceMissingMessage)
	// ErrMoveTargetExists indicates the move would overwrite an existing path.
	ErrMoveTargetExists = errors.New(moveTargetExistsMessage)
)

// MoveOptions configures a Move transformation.
type MoveOptions struct {
	Before string `mapstructure:"before"`
	After  string `mapstructure:"after"`
}

// Move relocates a file or directory inside the working directory.
type Move struct {
	logger  *zap.Logger
	options MoveOptions
}

// NewMove validates options and constructs a Move transformation.
func NewMove(logger *zap.Logger, options MoveOptions) (*Move, error) {
	options.Before = strings.TrimSpace(options.Before)
	options.After = strings.TrimSpace(options.After)
	if len(options.Before) == 0 || len(options.After) == 0 {
		return nil, ErrMoveEndpointsMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Move{logger: logger, options: options}, nil
}

// Name implements squash.Transformation.
func (move *Move) Name() string {
	return fmt.Sprintf(moveNameTemplateConstant, move.options.Before, move.options.After)
}

// Apply implements squash.Transformation.
func (move *Move) Apply(_ context.Context, directory string) error {
	sourcePath, sourceError := resolveConfined(directory, move.options.Before)
	if sourceError != nil {
		return sourceError
	}
	targetPath, targetError := resolveConfined(directory, move.options.After)
	if targetError != nil {
		return targetError
	}

	if _, statError := os.Lstat(sourcePath); statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return fmt.Errorf(moveSourceErrorTemplateConstant, ErrMoveSourceMissing, move.options.Before)
		}
		return fmt.Errorf(moveStatErrorTemplateConstant, sourcePath, statError)
	}

	if _, statError := os.Lstat(targetPath); statError == nil {
		return fmt.Errorf(moveSourceErrorTemplateConstant, ErrMoveTargetExists, move.options.After)
	} else if !errors.Is(statError, fs.ErrNotExist) {
		return fmt.Errorf(moveStatErrorTemplateConstant, targetPath, statError)
	}

	targetParent := filepath.Dir(targetPath)
	if mkdirError := os.MkdirAll(targetParent, moveDirectoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(moveParentErrorTemplateConstant, targetParent, mkdirError)
	}
	if renameError := os.Rename(sourcePath, targetPath); renameError != nil {
		return fmt.Errorf(moveRenameErrorTemplateConstant, sourcePath, targetPath, renameError)
	}

	move.logger.Debug(moveCompletedLogMessage, zap.String(logFieldSourceConstant, move.options.Before), zap.String(logFieldTargetConstant, move.options.After))
	return nil
}
