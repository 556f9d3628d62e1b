package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	directoryPermissionsConstant       = fs.FileMode(0o755)
	readDirectoryErrorTemplateConstant = "unable to read directory %s: %w"
	removeEntryErrorTemplateConstant   = "unable to remove %s: %w"
	createDirectoryErrorTemplate       = "unable to create directory %s: %w"
	copyFileErrorTemplateConstant      = "unable to copy %s to %s: %w"
	readLinkErrorTemplateConstant      = "unable to read symlink %s: %w"
	createLinkErrorTemplateConstant    = "unable to create symlink %s: %w"
	walkErrorTemplateConstant          = "unable to walk %s: %w"
	unsupportedFileTypeTemplate        = "unsupported file type at %s"
)

// EnsureEmptyDirectory creates directory when missing and removes its entries except the preserved names.
func EnsureEmptyDirectory(directory string, preservedNames ...string) error {
	if mkdirError := os.MkdirAll(directory, directoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(createDirectoryErrorTemplate, directory, mkdirError)
	}

	preserved := make(map[string]struct{}, len(preservedNames))
	for _, preservedName := range preservedNames {
		preserved[preservedName] = struct{}{}
	}

	entries, readError := os.ReadDir(directory)
	if readError != nil {
		return fmt.Errorf(readDirectoryErrorTemplateConstant, directory, readError)
	}

	for _, entry := range entries {
		if _, keep := preserved[entry.Name()]; keep {
			continue
		}
		entryPath := filepath.Join(directory, entry.Name())
		if removeError := os.RemoveAll(entryPath); removeError != nil {
			return fmt.Errorf(removeEntryErrorTemplateConstant, entryPath, removeError)
		}
	}

	return nil
}

// CopyTree copies the content of source into destination, skipping top-level entries named in excludedNames.
// Regular files keep their permission bits and symlinks are recreated verbatim.
func CopyTree(source string, destination string, excludedNames ...string) error {
	excluded := make(map[string]struct{}, len(excludedNames))
	for _, excludedName := range excludedNames {
		excluded[excludedName] = struct{}{}
	}

	if mkdirError := os.MkdirAll(destination, directoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(createDirectoryErrorTemplate, destination, mkdirError)
	}

	walkError := filepath.WalkDir(source, func(path string, entry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}

		relativePath, relativeError := filepath.Rel(source, path)
		if relativeError != nil {
			return relativeError
		}
		if relativePath == "." {
			return nil
		}
		if _, skip := excluded[relativePath]; skip {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		targetPath := filepath.Join(destination, relativePath)
		switch {
		case entry.IsDir():
			if mkdirError := os.MkdirAll(targetPath, directoryPermissionsConstant); mkdirError != nil {
				return fmt.Errorf(createDirectoryErrorTemplate, targetPath, mkdirError)
			}
			return nil
		case entry.Type()&fs.ModeSymlink != 0:
			return copySymlink(path, targetPath)
		case entry.Type().IsRegular():
			return copyFile(path, targetPath)
		default:
			return fmt.Errorf(unsupportedFileTypeTemplate, path)
		}
	})
	if walkError != nil {
		return fmt.Errorf(walkErrorTemplateConstant, source, walkError)
	}
	return nil
}

// ListFiles returns the slash-separated relative paths of every regular file and symlink under root, in lexical order.
func ListFiles(root string, excludedNames ...string) ([]string, error) {
	excluded := make(map[string]struct{}, len(excludedNames))
	for _, excludedName := range excludedNames {
		excluded[excludedName] = struct{}{}
	}

	files := []string{}
	walkError := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}
		relativePath, relativeError := filepath.Rel(root, path)
		if relativeError != nil {
			return relativeError
		}
		if relativePath == "." {
			return nil
		}
		if _, skip := excluded[relativePath]; skip {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		files = append(files, filepath.ToSlash(relativePath))
		return nil
	})
	if walkError != nil {
		return nil, fmt.Errorf(walkErrorTemplateConstant, root, walkError)
	}
	return files, nil
}

func copyFile(sourcePath string, targetPath string) (copyError error) {
	sourceInfo, statError := os.Stat(sourcePath)
	if statError != nil {
		return fmt.Errorf(copyFileErrorTemplateConstant, sourcePath, targetPath, statError)
	}

	sourceFile, openError := os.Open(sourcePath)
	if openError != nil {
		return fmt.Errorf(copyFileErrorTemplateConstant, sourcePath, targetPath, openError)
	}
	defer sourceFile.Close()

	if mkdirError := os.MkdirAll(filepath.Dir(targetPath), directoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(createDirectoryErrorTemplate, filepath.Dir(targetPath), mkdirError)
	}

	targetFile, createError := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, sourceInfo.Mode().Perm())
	if createError != nil {
		return fmt.Errorf(copyFileErrorTemplateConstant, sourcePath, targetPath, createError)
	}
	defer func() {
		if closeError := targetFile.Close(); closeError != nil && copyError == nil {
			copyError = fmt.Errorf(copyFileErrorTemplateConstant, sourcePath, targetPath, closeError)
		}
	}()

	if _, writeError := io.Copy(targetFile, sourceFile); writeError != nil {
		return fmt.Errorf(copyFileErrorTemplateConstant, sourcePath, targetPath, writeError)
	}
	return nil
}

func copySymlink(sourcePath string, targetPath string) error {
	linkTarget, readError := os.Readlink(sourcePath)
	if readError != nil {
		return fmt.Errorf(readLinkErrorTemplateConstant, sourcePath, readError)
	}
	if removeError := os.Remove(targetPath); removeError != nil && !errors.Is(removeError, fs.ErrNotExist) {
		return fmt.Errorf(removeEntryErrorTemplateConstant, targetPath, removeError)
	}
	if linkError := os.Symlink(linkTarget, targetPath); linkError != nil {
		return fmt.Errorf(createLinkErrorTemplateConstant, targetPath, linkError)
	}
	return nil
}
