package migrate

import "strings"

const (
	workDirectoryKeySuffixConstant     = ".work_directory"
	migrationFileKeySuffixConstant     = ".migration_file"
	keepWorkDirectoryKeySuffixConstant = ".keep_work_directory"
)

// DefaultMigrationFileConstant is used when neither flags nor configuration name a migration file.
const DefaultMigrationFileConstant = "migration.yaml"

// CommandConfiguration captures persisted settings shared by the migrate and changes commands.
type CommandConfiguration struct {
	WorkDirectory     string `mapstructure:"work_directory"`
	MigrationFile     string `mapstructure:"migration_file"`
	KeepWorkDirectory bool   `mapstructure:"keep_work_directory"`
}

// DefaultCommandConfiguration returns baseline settings.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{MigrationFile: DefaultMigrationFileConstant}
}

// DefaultConfigurationValues exposes the defaults under configurationPrefix for the configuration loader.
func DefaultConfigurationValues(configurationPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationPrefix + workDirectoryKeySuffixConstant:     defaults.WorkDirectory,
		configurationPrefix + migrationFileKeySuffixConstant:     defaults.MigrationFile,
		configurationPrefix + keepWorkDirectoryKeySuffixConstant: defaults.KeepWorkDirectory,
	}
}

// Sanitize trims whitespace and restores the default migration file when blank.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.WorkDirectory = strings.TrimSpace(configuration.WorkDirectory)
	sanitized.MigrationFile = strings.TrimSpace(configuration.MigrationFile)
	if len(sanitized.MigrationFile) == 0 {
		sanitized.MigrationFile = DefaultMigrationFileConstant
	}
	return sanitized
}
