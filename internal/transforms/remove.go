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
	// RemoveTypeConstant names the remove transformation in migration files.
	RemoveTypeConstant = "remove"

	removeNameTemplateConstant     = "remove %s"
	removePathsMissingMessage      = "remove transformation requires at least one path pattern"
	removeErrorTemplateConstant    = "unable to remove %s: %w"
	removeWalkErrorTemplate        = "unable to walk %s: %w"
	removePatternSeparatorConstant = ", "
	logFieldRemovedPathsConstant   = "removed_paths"
	removeCompletedLogMessage      = "Remove transformation completed"
)

// ErrRemovePathsMissing indicates a remove transformation without patterns.
var ErrRemovePathsMissing = errors.New(removePathsMissingMessage)

// RemoveOptions configures a Remove transformation.
type RemoveOptions struct {
	Paths []string `mapstructure:"paths"`
}

// Remove deletes every file or directory matching its patterns.
type Remove struct {
	logger      *zap.Logger
	options     RemoveOptions
	pathMatcher pathMatcher
}

// NewRemove validates options and constructs a Remove transformation.
func NewRemove(logger *zap.Logger, options RemoveOptions) (*Remove, error) {
	matcher, matcherError := newPathMatcher(options.Paths)
	if matcherError != nil {
		return nil, matcherError
	}
	if matcher.empty() {
		return nil, ErrRemovePathsMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remove{logger: logger, options: options, pathMatcher: matcher}, nil
}

// Name implements squash.Transformation.
func (remove *Remove) Name() string {
	return fmt.Sprintf(removeNameTemplateConstant, strings.Join(remove.pathMatcher.patterns, removePatternSeparatorConstant))
}

// Apply implements squash.Transformation. Patterns matching nothing are not an error.
func (remove *Remove) Apply(executionContext context.Context, directory string) error {
	removedPaths := []string{}
	walkError := filepath.WalkDir(directory, func(path string, entry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		relativePath, relativeError := filepath.Rel(directory, path)
		if relativeError != nil {
			return relativeError
		}
		if relativePath == currentDirectoryConstant {
			return nil
		}

		slashPath := filepath.ToSlash(relativePath)
		if !remove.pathMatcher.matches(slashPath) {
			return nil
		}
		if removeError := os.RemoveAll(path); removeError != nil {
			return fmt.Errorf(removeErrorTemplateConstant, slashPath, removeError)
		}
		removedPaths = append(removedPaths, slashPath)
		if entry.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if walkError != nil {
		return fmt.Errorf(removeWalkErrorTemplate, directory, walkError)
	}

	remove.logger.Debug(removeCompletedLogMessage, zap.Strings(logFieldRemovedPathsConstant, removedPaths))
	return nil
}
