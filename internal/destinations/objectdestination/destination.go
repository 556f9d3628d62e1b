package objectdestination

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/temirov/reposquash/internal/fsutil"
	"github.com/temirov/reposquash/internal/squash"
)

const (
	// StateObjectNameConstant is the manifest key, relative to the prefix, that records the last migration.
	StateObjectNameConstant = ".reposquash/state.yaml"

	stateDirectoryNameConstant    = ".reposquash"
	defaultContentTypeConstant    = "application/octet-stream"
	manifestContentTypeConstant   = "application/yaml"
	keySeparatorConstant          = "/"
	listContentOperationConstant  = "list content"
	uploadOperationConstant       = "upload object"
	pruneOperationConstant        = "prune stale objects"
	writeStateOperationConstant   = "write state"
	readStateOperationConstant    = "read state"
	storeMissingMessageConstant   = "object destination requires an object store"
	logFieldPrefixConstant        = "prefix"
	logFieldReferenceConstant     = "reference"
	logFieldUploadedCountConstant = "uploaded_count"
	logFieldRemovedCountConstant  = "removed_count"
	logFieldLabelConstant         = "label"
	publishedLogMessageConstant   = "Published migrated tree"
	labelMismatchLogMessage       = "State manifest records a different label"
)

// ErrStoreMissing indicates the destination was constructed without an object store.
var ErrStoreMissing = errors.New(storeMissingMessageConstant)

// Configuration describes where the migrated tree is published inside the bucket.
type Configuration struct {
	Prefix string
}

// StateManifest is persisted after every successful publication.
type StateManifest struct {
	Label     string `yaml:"label"`
	Reference string `yaml:"reference"`
	Timestamp int64  `yaml:"timestamp"`
	Message   string `yaml:"message"`
}

// Destination implements squash.Destination over an ObjectStore.
type Destination struct {
	logger *zap.Logger
	store  ObjectStore
	prefix string
}

// NewDestination constructs an object destination.
func NewDestination(logger *zap.Logger, store ObjectStore, configuration Configuration) (*Destination, error) {
	if store == nil {
		return nil, ErrStoreMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Destination{
		logger: logger,
		store:  store,
		prefix: strings.Trim(strings.TrimSpace(configuration.Prefix), keySeparatorConstant),
	}, nil
}

// Process implements squash.Destination. Every file under directory is uploaded, objects under the prefix
// that no longer exist are removed, and the state manifest is rewritten last.
func (destination *Destination) Process(executionContext context.Context, directory string, reference squash.Reference, timestamp int64, message string) error {
	files, listError := fsutil.ListFiles(directory, stateDirectoryNameConstant)
	if listError != nil {
		return squash.DestinationError{Operation: listContentOperationConstant, Cause: listError}
	}

	publishedKeys := make(map[string]struct{}, len(files)+1)
	for _, relativePath := range files {
		objectKey := destination.objectKey(relativePath)
		if uploadError := destination.uploadFile(executionContext, filepath.Join(directory, filepath.FromSlash(relativePath)), objectKey); uploadError != nil {
			return squash.DestinationError{Operation: uploadOperationConstant, Cause: uploadError}
		}
		publishedKeys[objectKey] = struct{}{}
	}

	stateKey := destination.objectKey(StateObjectNameConstant)
	publishedKeys[stateKey] = struct{}{}

	removedCount, pruneError := destination.pruneStaleObjects(executionContext, publishedKeys)
	if pruneError != nil {
		return squash.DestinationError{Operation: pruneOperationConstant, Cause: pruneError}
	}

	manifestContent, marshalError := yaml.Marshal(StateManifest{
		Label:     reference.LabelName(),
		Reference: reference.String(),
		Timestamp: timestamp,
		Message:   message,
	})
	if marshalError != nil {
		return squash.DestinationError{Operation: writeStateOperationConstant, Cause: marshalError}
	}
	if putError := destination.store.Put(executionContext, stateKey, bytes.NewReader(manifestContent), int64(len(manifestContent)), manifestContentTypeConstant); putError != nil {
		return squash.DestinationError{Operation: writeStateOperationConstant, Cause: putError}
	}

	destination.logger.Info(
		publishedLogMessageConstant,
		zap.String(logFieldPrefixConstant, destination.prefix),
		zap.String(logFieldReferenceConstant, reference.String()),
		zap.Int(logFieldUploadedCountConstant, len(files)),
		zap.Int(logFieldRemovedCountConstant, removedCount),
	)
	return nil
}

// PreviousReference implements squash.Destination by reading the state manifest.
func (destination *Destination) PreviousReference(executionContext context.Context, label string) (string, bool, error) {
	manifest, found, readError := destination.ReadState(executionContext)
	if readError != nil {
		return "", false, readError
	}
	if !found {
		return "", false, nil
	}
	if manifest.Label != label {
		destination.logger.Debug(labelMismatchLogMessage, zap.String(logFieldLabelConstant, manifest.Label))
		return "", false, nil
	}
	return manifest.Reference, len(strings.TrimSpace(manifest.Reference)) > 0, nil
}

// ReadState returns the stored manifest, reporting false when none has been written yet.
func (destination *Destination) ReadState(executionContext context.Context) (StateManifest, bool, error) {
	content, getError := destination.store.Get(executionContext, destination.objectKey(StateObjectNameConstant))
	if getError != nil {
		if errors.Is(getError, ErrObjectNotFound) {
			return StateManifest{}, false, nil
		}
		return StateManifest{}, false, squash.DestinationError{Operation: readStateOperationConstant, Cause: getError}
	}

	var manifest StateManifest
	if unmarshalError := yaml.Unmarshal(content, &manifest); unmarshalError != nil {
		return StateManifest{}, false, squash.DestinationError{Operation: readStateOperationConstant, Cause: unmarshalError}
	}
	return manifest, true, nil
}

func (destination *Destination) uploadFile(executionContext context.Context, filePath string, objectKey string) error {
	file, openError := os.Open(filePath)
	if openError != nil {
		return openError
	}
	defer file.Close()

	fileInfo, statError := file.Stat()
	if statError != nil {
		return statError
	}

	return destination.store.Put(executionContext, objectKey, file, fileInfo.Size(), contentTypeFor(filePath))
}

func (destination *Destination) pruneStaleObjects(executionContext context.Context, publishedKeys map[string]struct{}) (int, error) {
	existingKeys, listError := destination.store.List(executionContext, destination.listPrefix())
	if listError != nil {
		return 0, listError
	}

	removedCount := 0
	for _, existingKey := range existingKeys {
		if _, published := publishedKeys[existingKey]; published {
			continue
		}
		if deleteError := destination.store.Delete(executionContext, existingKey); deleteError != nil {
			return removedCount, deleteError
		}
		removedCount++
	}
	return removedCount, nil
}

func (destination *Destination) objectKey(relativePath string) string {
	if len(destination.prefix) == 0 {
		return relativePath
	}
	return path.Join(destination.prefix, relativePath)
}

func (destination *Destination) listPrefix() string {
	if len(destination.prefix) == 0 {
		return ""
	}
	return destination.prefix + keySeparatorConstant
}

func contentTypeFor(filePath string) string {
	if contentType := mime.TypeByExtension(filepath.Ext(filePath)); len(contentType) > 0 {
		return contentType
	}
	return defaultContentTypeConstant
}
