// Package utils holds the CLI plumbing shared by reposquash commands: zap logger construction,
// Viper-backed configuration loading, command context values, and home directory expansion.
package utils
