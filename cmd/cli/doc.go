// Package cli constructs the reposquash command-line interface, wiring the
// Cobra command hierarchy, the Viper configuration loader, and structured
// logging. It exposes helpers to build application instances and to execute
// the default command set.
package cli
