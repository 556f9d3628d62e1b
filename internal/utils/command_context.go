package utils

import "context"

const (
	configurationFilePathContextKeyConstant = commandContextKey("configurationFilePath")
	migrationFilePathContextKeyConstant     = commandContextKey("migrationFilePath")
)

type commandContextKey string

// CommandContextAccessor stores and retrieves CLI values carried through command contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath attaches the CLI configuration file path.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	return withStringValue(parentContext, configurationFilePathContextKeyConstant, configurationFilePath)
}

// ConfigurationFilePath returns the CLI configuration file path.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	return stringValue(executionContext, configurationFilePathContextKeyConstant)
}

// WithMigrationFilePath attaches the resolved migration file path.
func (accessor CommandContextAccessor) WithMigrationFilePath(parentContext context.Context, migrationFilePath string) context.Context {
	return withStringValue(parentContext, migrationFilePathContextKeyConstant, migrationFilePath)
}

// MigrationFilePath returns the resolved migration file path.
func (accessor CommandContextAccessor) MigrationFilePath(executionContext context.Context) (string, bool) {
	return stringValue(executionContext, migrationFilePathContextKeyConstant)
}

func withStringValue(parentContext context.Context, key commandContextKey, value string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, key, value)
}

func stringValue(executionContext context.Context, key commandContextKey) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	value, available := executionContext.Value(key).(string)
	return value, available
}
