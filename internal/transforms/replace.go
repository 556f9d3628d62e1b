package transforms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"github.com/temirov/reposquash/internal/fsutil"
)

const (
	// ReplaceTypeConstant names the replace transformation in migration files.
	ReplaceTypeConstant = "replace"

	replaceBeforeMissingMessage    = "replace transformation requires before text"
	replaceNameTemplateConstant    = "replace %q"
	compilePatternErrorTemplate    = "unable to compile replace pattern %q: %w"
	listFilesErrorTemplateConstant = "unable to list files: %w"
	readFileErrorTemplateConstant  = "unable to read file %s: %w"
	statFileErrorTemplateConstant  = "unable to stat file %s: %w"
	writeFileErrorTemplateConstant = "unable to write file %s: %w"
	logFieldFileConstant           = "file"
	logFieldUpdatedCountConstant   = "updated_files"
	logFieldTransformationConstant = "transformation"
	rewriteLogMessageConstant      = "Rewrote file"
	replaceCompletedLogMessage     = "Replace transformation completed"
)

// ErrReplaceBeforeMissing indicates a replace transformation without text to search for.
var ErrReplaceBeforeMissing = errors.New(replaceBeforeMissingMessage)

// ReplaceOptions configures a Replace transformation.
type ReplaceOptions struct {
	Before string   `mapstructure:"before"`
	After  string   `mapstructure:"after"`
	Regex  bool     `mapstructure:"regex"`
	Paths  []string `mapstructure:"paths"`
}

// Replace rewrites matching text in every text file selected by its path patterns.
type Replace struct {
	logger      *zap.Logger
	options     ReplaceOptions
	pattern     *regexp.Regexp
	pathMatcher pathMatcher
}

// NewReplace validates options and constructs a Replace transformation.
// Literal replacements are used unless Regex is set, in which case After may reference capture groups.
func NewReplace(logger *zap.Logger, options ReplaceOptions) (*Replace, error) {
	if len(options.Before) == 0 {
		return nil, ErrReplaceBeforeMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	expression := regexp.QuoteMeta(options.Before)
	if options.Regex {
		expression = options.Before
	}
	pattern, compileError := regexp.Compile(expression)
	if compileError != nil {
		return nil, fmt.Errorf(compilePatternErrorTemplate, options.Before, compileError)
	}

	matcher, matcherError := newPathMatcher(options.Paths)
	if matcherError != nil {
		return nil, matcherError
	}

	return &Replace{logger: logger, options: options, pattern: pattern, pathMatcher: matcher}, nil
}

// Name implements squash.Transformation.
func (replace *Replace) Name() string {
	return fmt.Sprintf(replaceNameTemplateConstant, replace.options.Before)
}

// Apply implements squash.Transformation. Files containing NUL bytes are treated as binary and skipped.
func (replace *Replace) Apply(executionContext context.Context, directory string) error {
	files, listError := fsutil.ListFiles(directory)
	if listError != nil {
		return fmt.Errorf(listFilesErrorTemplateConstant, listError)
	}

	updatedCount := 0
	for _, relativePath := range files {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		if !replace.pathMatcher.empty() && !replace.pathMatcher.matches(relativePath) {
			continue
		}
		updated, rewriteError := replace.rewriteFile(filepath.Join(directory, filepath.FromSlash(relativePath)))
		if rewriteError != nil {
			return rewriteError
		}
		if updated {
			updatedCount++
		}
	}

	replace.logger.Debug(
		replaceCompletedLogMessage,
		zap.String(logFieldTransformationConstant, replace.Name()),
		zap.Int(logFieldUpdatedCountConstant, updatedCount),
	)
	return nil
}

func (replace *Replace) rewriteFile(filePath string) (bool, error) {
	fileInfo, statError := os.Lstat(filePath)
	if statError != nil {
		return false, fmt.Errorf(statFileErrorTemplateConstant, filePath, statError)
	}
	if !fileInfo.Mode().IsRegular() {
		return false, nil
	}

	fileContent, readError := os.ReadFile(filePath)
	if readError != nil {
		return false, fmt.Errorf(readFileErrorTemplateConstant, filePath, readError)
	}
	if bytes.IndexByte(fileContent, 0) >= 0 {
		return false, nil
	}

	var updatedContent []byte
	if replace.options.Regex {
		updatedContent = replace.pattern.ReplaceAll(fileContent, []byte(replace.options.After))
	} else {
		updatedContent = replace.pattern.ReplaceAllLiteral(fileContent, []byte(replace.options.After))
	}
	if bytes.Equal(updatedContent, fileContent) {
		return false, nil
	}

	if writeError := os.WriteFile(filePath, updatedContent, fileInfo.Mode().Perm()); writeError != nil {
		return false, fmt.Errorf(writeFileErrorTemplateConstant, filePath, writeError)
	}
	replace.logger.Debug(rewriteLogMessageConstant, zap.String(logFieldFileConstant, filePath))
	return true, nil
}
