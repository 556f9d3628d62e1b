package transforms

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	pathSeparatorConstant          = "/"
	currentDirectoryConstant       = "."
	parentDirectoryConstant        = ".."
	escapingPathTemplateConstant   = "%w: %q"
	pathEscapesMessageConstant     = "path escapes the working directory"
	pathRequiredMessageConstant    = "transformation path must be provided"
	invalidPatternTemplateConstant = "invalid path pattern %q: %w"
	resolveLinksErrorTemplate      = "unable to resolve links of %s: %w"
)

var (
	// ErrPathRequired indicates a transformation was configured without a path.
	ErrPathRequired = errors.New(pathRequiredMessageConstant)
	// ErrPathEscapes indicates a path resolving outside the working directory.
	ErrPathEscapes = errors.New(pathEscapesMessageConstant)
)

// resolveInside joins a slash-separated relative path onto root, rejecting paths that leave root.
func resolveInside(root string, relativePath string) (string, error) {
	trimmedPath := strings.TrimSpace(relativePath)
	if len(trimmedPath) == 0 {
		return "", ErrPathRequired
	}
	cleanedPath := path.Clean(filepath.ToSlash(trimmedPath))
	if cleanedPath == currentDirectoryConstant || cleanedPath == parentDirectoryConstant ||
		strings.HasPrefix(cleanedPath, parentDirectoryConstant+pathSeparatorConstant) || path.IsAbs(cleanedPath) {
		return "", fmt.Errorf(escapingPathTemplateConstant, ErrPathEscapes, relativePath)
	}
	return filepath.Join(root, filepath.FromSlash(cleanedPath)), nil
}

// resolveConfined behaves like resolveInside and additionally follows symbolic links in the parent
// directories of the result, rejecting paths whose real location lies outside root. The final path
// element is not followed, so a link itself can still be moved or removed.
func resolveConfined(root string, relativePath string) (string, error) {
	joinedPath, joinError := resolveInside(root, relativePath)
	if joinError != nil {
		return "", joinError
	}

	realRoot, rootError := filepath.EvalSymlinks(root)
	if rootError != nil {
		return "", fmt.Errorf(resolveLinksErrorTemplate, root, rootError)
	}

	existingParent, parentError := nearestExistingDirectory(filepath.Dir(joinedPath))
	if parentError != nil {
		return "", parentError
	}
	realParent, realParentError := filepath.EvalSymlinks(existingParent)
	if realParentError != nil {
		return "", fmt.Errorf(resolveLinksErrorTemplate, existingParent, realParentError)
	}

	relativeToRoot, relativeError := filepath.Rel(realRoot, realParent)
	if relativeError != nil || relativeToRoot == parentDirectoryConstant ||
		strings.HasPrefix(relativeToRoot, parentDirectoryConstant+string(filepath.Separator)) {
		return "", fmt.Errorf(escapingPathTemplateConstant, ErrPathEscapes, relativePath)
	}
	return joinedPath, nil
}

// nearestExistingDirectory walks up from candidate until it finds an entry that exists.
func nearestExistingDirectory(candidate string) (string, error) {
	for {
		_, statError := os.Lstat(candidate)
		if statError == nil {
			return candidate, nil
		}
		if !errors.Is(statError, fs.ErrNotExist) {
			return "", fmt.Errorf(resolveLinksErrorTemplate, candidate, statError)
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return candidate, nil
		}
		candidate = parent
	}
}

// pathMatcher matches slash-separated relative paths against glob patterns. Patterns without a separator
// match the base name at any depth, and a pattern also matches everything below a matching directory.
type pathMatcher struct {
	patterns []string
}

func newPathMatcher(patterns []string) (pathMatcher, error) {
	matcher := pathMatcher{}
	for _, pattern := range patterns {
		trimmedPattern := strings.Trim(strings.TrimSpace(filepath.ToSlash(pattern)), pathSeparatorConstant)
		if len(trimmedPattern) == 0 {
			continue
		}
		if _, matchError := path.Match(trimmedPattern, ""); matchError != nil {
			return pathMatcher{}, fmt.Errorf(invalidPatternTemplateConstant, pattern, matchError)
		}
		matcher.patterns = append(matcher.patterns, trimmedPattern)
	}
	return matcher, nil
}

func (matcher pathMatcher) empty() bool {
	return len(matcher.patterns) == 0
}

func (matcher pathMatcher) matches(relativePath string) bool {
	for candidate := relativePath; candidate != currentDirectoryConstant && candidate != pathSeparatorConstant; candidate = path.Dir(candidate) {
		for _, pattern := range matcher.patterns {
			subject := candidate
			if !strings.Contains(pattern, pathSeparatorConstant) {
				subject = path.Base(candidate)
			}
			if matched, _ := path.Match(pattern, subject); matched {
				return true
			}
		}
	}
	return false
}
