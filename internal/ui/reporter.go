package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

const (
	progressPrefixConstant       = "==>"
	warningPrefixConstant        = "WARN"
	reporterLineTemplateConstant = "%s %s\n"
	progressColorConstant        = "#00D7FF"
	warningColorConstant         = "#FFD700"
	logFieldReporterConstant     = "reporter"
	reporterNameConstant         = "console"
)

// ConsoleReporter writes squash workflow progress to an output stream and mirrors it to a logger.
type ConsoleReporter struct {
	output        io.Writer
	logger        *zap.Logger
	progressStyle lipgloss.Style
	warningStyle  lipgloss.Style
}

// NewConsoleReporter constructs a reporter writing to output. A nil output discards console lines.
func NewConsoleReporter(output io.Writer, logger *zap.Logger) *ConsoleReporter {
	if output == nil {
		output = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleReporter{
		output:        output,
		logger:        logger.With(zap.String(logFieldReporterConstant, reporterNameConstant)),
		progressStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(progressColorConstant)),
		warningStyle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(warningColorConstant)),
	}
}

// Progress implements squash.Reporter.
func (reporter *ConsoleReporter) Progress(message string) {
	if reporter == nil {
		return
	}
	reporter.logger.Debug(message)
	fmt.Fprintf(reporter.output, reporterLineTemplateConstant, reporter.progressStyle.Render(progressPrefixConstant), message)
}

// Warn implements squash.Reporter.
func (reporter *ConsoleReporter) Warn(message string) {
	if reporter == nil {
		return
	}
	reporter.logger.Debug(message)
	fmt.Fprintf(reporter.output, reporterLineTemplateConstant, reporter.warningStyle.Render(warningPrefixConstant), message)
}
