package migration

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/temirov/reposquash/internal/transforms"
)

const (
	// DefaultWorkflowNameConstant is selected when no workflow is requested and the file declares several.
	DefaultWorkflowNameConstant = "default"

	// Origin types.
	OriginTypeGit    = "git"
	OriginTypeFolder = "folder"

	// Destination types.
	DestinationTypeGit    = "git"
	DestinationTypeFolder = "folder"
	DestinationTypeObject = "object"

	readFileErrorTemplateConstant     = "unable to read migration file %s: %w"
	parseFileErrorTemplateConstant    = "unable to parse migration file %s: %w"
	resolvePathErrorTemplateConstant  = "unable to resolve migration file path %s: %w"
	workflowErrorTemplateConstant     = "workflow %q: %w"
	typeErrorTemplateConstant         = "%w: %q"
	duplicateWorkflowTemplateConstant = "%w: %q"
	unknownWorkflowTemplateConstant   = "%w: %q"
	nameMissingMessageConstant        = "migration name must be provided"
	noWorkflowsMessageConstant        = "migration file declares no workflows"
	workflowNameMissingMessage        = "workflow name must be provided"
	duplicateWorkflowMessageConstant  = "duplicate workflow name"
	unknownWorkflowMessageConstant    = "unknown workflow"
	workflowRequiredMessageConstant   = "workflow name required when several workflows are declared"
	unknownOriginTypeMessageConstant  = "unknown origin type"
	unknownDestinationTypeMessage     = "unknown destination type"
	originURLMissingMessageConstant   = "origin url must be provided"
	destinationURLMissingMessage      = "git destination url must be provided"
	destinationPathMissingMessage     = "folder destination path must be provided"
	destinationBucketMissingMessage   = "object destination endpoint and bucket must be provided"
	transformationTypeMissingMessage  = "transformation type must be provided"
	ledgerURLMissingMessageConstant   = "ledger url must be provided"
)

var (
	// ErrMigrationNameMissing indicates a file without a name.
	ErrMigrationNameMissing = errors.New(nameMissingMessageConstant)
	// ErrNoWorkflows indicates a file without workflows.
	ErrNoWorkflows = errors.New(noWorkflowsMessageConstant)
	// ErrWorkflowNameMissing indicates a workflow without a name.
	ErrWorkflowNameMissing = errors.New(workflowNameMissingMessage)
	// ErrDuplicateWorkflow indicates two workflows sharing a name.
	ErrDuplicateWorkflow = errors.New(duplicateWorkflowMessageConstant)
	// ErrUnknownWorkflow indicates a requested workflow the file does not declare.
	ErrUnknownWorkflow = errors.New(unknownWorkflowMessageConstant)
	// ErrWorkflowRequired indicates an ambiguous workflow selection.
	ErrWorkflowRequired = errors.New(workflowRequiredMessageConstant)
	// ErrUnknownOriginType indicates an unsupported origin type.
	ErrUnknownOriginType = errors.New(unknownOriginTypeMessageConstant)
	// ErrUnknownDestinationType indicates an unsupported destination type.
	ErrUnknownDestinationType = errors.New(unknownDestinationTypeMessage)
	// ErrOriginURLMissing indicates an origin without a location.
	ErrOriginURLMissing = errors.New(originURLMissingMessageConstant)
	// ErrDestinationURLMissing indicates a git destination without a repository.
	ErrDestinationURLMissing = errors.New(destinationURLMissingMessage)
	// ErrDestinationPathMissing indicates a folder destination without a path.
	ErrDestinationPathMissing = errors.New(destinationPathMissingMessage)
	// ErrDestinationBucketMissing indicates an object destination without endpoint or bucket.
	ErrDestinationBucketMissing = errors.New(destinationBucketMissingMessage)
	// ErrTransformationTypeMissing indicates a transformation without a type.
	ErrTransformationTypeMissing = errors.New(transformationTypeMissingMessage)
	// ErrLedgerURLMissing indicates a ledger section without a database URL.
	ErrLedgerURLMissing = errors.New(ledgerURLMissingMessageConstant)
)

// File is a parsed migration file.
type File struct {
	Name      string               `yaml:"name"`
	Ledger    *LedgerDefinition    `yaml:"ledger"`
	Workflows []WorkflowDefinition `yaml:"workflows"`

	baseDirectory string
}

// WorkflowDefinition declares one squash workflow.
type WorkflowDefinition struct {
	Name            string                  `yaml:"name"`
	Origin          OriginDefinition        `yaml:"origin"`
	Destination     DestinationDefinition   `yaml:"destination"`
	LastRevision    string                  `yaml:"last_revision"`
	IncludeChanges  bool                    `yaml:"include_changes"`
	Transformations []transforms.Definition `yaml:"transformations"`
}

// OriginDefinition declares where content is read from.
type OriginDefinition struct {
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
	Ref  string `yaml:"ref"`
}

// DestinationDefinition declares where content is written to. Fields apply per destination type.
type DestinationDefinition struct {
	Type         string `yaml:"type"`
	URL          string `yaml:"url"`
	Branch       string `yaml:"branch"`
	Remote       string `yaml:"remote"`
	Push         bool   `yaml:"push"`
	AuthorName   string `yaml:"author_name"`
	AuthorEmail  string `yaml:"author_email"`
	Path         string `yaml:"path"`
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UseSSL       bool   `yaml:"use_ssl"`
	CreateBucket bool   `yaml:"create_bucket"`
}

// LedgerDefinition enables the migration ledger for every workflow in the file.
type LedgerDefinition struct {
	URL         string        `yaml:"url"`
	PingTimeout time.Duration `yaml:"ping_timeout"`
}

// LoadFile reads, expands, and validates the migration file at filePath.
// Relative origin and destination paths are resolved against the file's directory, and
// credential fields may reference environment variables.
func LoadFile(filePath string) (File, error) {
	absolutePath, absoluteError := filepath.Abs(filePath)
	if absoluteError != nil {
		return File{}, fmt.Errorf(resolvePathErrorTemplateConstant, filePath, absoluteError)
	}

	content, readError := os.ReadFile(absolutePath)
	if readError != nil {
		return File{}, fmt.Errorf(readFileErrorTemplateConstant, absolutePath, readError)
	}

	file, parseError := Parse(content, filepath.Dir(absolutePath))
	if parseError != nil {
		return File{}, fmt.Errorf(parseFileErrorTemplateConstant, absolutePath, parseError)
	}
	return file, nil
}

// Parse decodes and validates migration file content. Unknown keys are rejected.
func Parse(content []byte, baseDirectory string) (File, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)

	var file File
	if decodeError := decoder.Decode(&file); decodeError != nil {
		return File{}, decodeError
	}
	file.baseDirectory = baseDirectory
	file.expandEnvironment()

	if validationError := file.Validate(); validationError != nil {
		return File{}, validationError
	}
	return file, nil
}

// Validate reports structural problems.
func (file File) Validate() error {
	if len(strings.TrimSpace(file.Name)) == 0 {
		return ErrMigrationNameMissing
	}
	if len(file.Workflows) == 0 {
		return ErrNoWorkflows
	}
	if file.Ledger != nil && len(strings.TrimSpace(file.Ledger.URL)) == 0 {
		return ErrLedgerURLMissing
	}

	seenNames := make(map[string]struct{}, len(file.Workflows))
	for _, workflow := range file.Workflows {
		workflowName := strings.TrimSpace(workflow.Name)
		if len(workflowName) == 0 {
			return ErrWorkflowNameMissing
		}
		if _, duplicate := seenNames[workflowName]; duplicate {
			return fmt.Errorf(duplicateWorkflowTemplateConstant, ErrDuplicateWorkflow, workflowName)
		}
		seenNames[workflowName] = struct{}{}

		if workflowError := workflow.validate(); workflowError != nil {
			return fmt.Errorf(workflowErrorTemplateConstant, workflowName, workflowError)
		}
	}
	return nil
}

// WorkflowNames lists the declared workflows in file order.
func (file File) WorkflowNames() []string {
	names := make([]string, 0, len(file.Workflows))
	for _, workflow := range file.Workflows {
		names = append(names, strings.TrimSpace(workflow.Name))
	}
	return names
}

// Workflow selects a workflow by name. A blank name selects the only workflow, or the one named "default".
func (file File) Workflow(name string) (WorkflowDefinition, error) {
	requestedName := strings.TrimSpace(name)
	if len(requestedName) == 0 {
		if len(file.Workflows) == 1 {
			return file.Workflows[0], nil
		}
		requestedName = DefaultWorkflowNameConstant
		if _, lookupError := file.lookupWorkflow(requestedName); lookupError != nil {
			return WorkflowDefinition{}, ErrWorkflowRequired
		}
	}
	return file.lookupWorkflow(requestedName)
}

// BaseDirectory is the directory relative paths are resolved against.
func (file File) BaseDirectory() string {
	return file.baseDirectory
}

func (file File) lookupWorkflow(name string) (WorkflowDefinition, error) {
	for _, workflow := range file.Workflows {
		if strings.TrimSpace(workflow.Name) == name {
			return workflow, nil
		}
	}
	return WorkflowDefinition{}, fmt.Errorf(unknownWorkflowTemplateConstant, ErrUnknownWorkflow, name)
}

func (file File) resolvePath(location string) string {
	trimmedLocation := strings.TrimSpace(location)
	if len(trimmedLocation) == 0 || filepath.IsAbs(trimmedLocation) || len(file.baseDirectory) == 0 {
		return trimmedLocation
	}
	return filepath.Join(file.baseDirectory, trimmedLocation)
}

func (file *File) expandEnvironment() {
	if file.Ledger != nil {
		file.Ledger.URL = os.ExpandEnv(file.Ledger.URL)
	}
	for workflowIndex := range file.Workflows {
		destination := &file.Workflows[workflowIndex].Destination
		destination.AccessKey = os.ExpandEnv(destination.AccessKey)
		destination.SecretKey = os.ExpandEnv(destination.SecretKey)
		destination.Endpoint = os.ExpandEnv(destination.Endpoint)
	}
}

func (workflow WorkflowDefinition) validate() error {
	switch strings.ToLower(strings.TrimSpace(workflow.Origin.Type)) {
	case OriginTypeGit, OriginTypeFolder:
		if len(strings.TrimSpace(workflow.Origin.URL)) == 0 {
			return ErrOriginURLMissing
		}
	default:
		return fmt.Errorf(typeErrorTemplateConstant, ErrUnknownOriginType, workflow.Origin.Type)
	}

	destination := workflow.Destination
	switch strings.ToLower(strings.TrimSpace(destination.Type)) {
	case DestinationTypeGit:
		if len(strings.TrimSpace(destination.URL)) == 0 {
			return ErrDestinationURLMissing
		}
	case DestinationTypeFolder:
		if len(strings.TrimSpace(destination.Path)) == 0 {
			return ErrDestinationPathMissing
		}
	case DestinationTypeObject:
		if len(strings.TrimSpace(destination.Endpoint)) == 0 || len(strings.TrimSpace(destination.Bucket)) == 0 {
			return ErrDestinationBucketMissing
		}
	default:
		return fmt.Errorf(typeErrorTemplateConstant, ErrUnknownDestinationType, destination.Type)
	}

	for _, transformation := range workflow.Transformations {
		if len(strings.TrimSpace(transformation.Type)) == 0 {
			return ErrTransformationTypeMissing
		}
	}
	return nil
}
