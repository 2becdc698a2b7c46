// Package logging configures the structured logger shared across cmd/schedcore,
// the runqueue job handlers, and the operational monitor.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logrus logger configured for JSON output, suitable for both
// the CLI and background job handlers.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	return log
}

// WithRun returns a logger entry scoped to a solver run, carrying its
// run_id field.
func WithRun(log *logrus.Logger, runID string) *logrus.Entry {
	return log.WithField("run_id", runID)
}
