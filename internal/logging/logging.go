// Package logging provides the structured logger injected into every
// ReleaseKit component. It generalizes the teacher's ad-hoc
// logrus.New() + SetLevel(WarnLevel) construction (pkg/depsgraph/builder.go)
// into a single constructor, plus ForRun and ForPackage helpers that
// attach run_id and package fields. There is no helper for a state field.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the base logger. Verbosity is controlled by the CLI's
// --verbose/--quiet flags (an external collaborator); the core only
// consumes the *logrus.Logger it is handed.
func New(verbose, quiet bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	switch {
	case quiet:
		logger.SetLevel(logrus.ErrorLevel)
	case verbose:
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

// ForRun returns an entry pre-populated with the run identifier, the way a
// publisher attaches run_id to every subsequent log line for a release run.
func ForRun(logger *logrus.Logger, runID string) *logrus.Entry {
	return logger.WithField("run_id", runID)
}

// ForPackage attaches the package name to a run-scoped entry.
func ForPackage(entry *logrus.Entry, pkgName string) *logrus.Entry {
	return entry.WithField("package", pkgName)
}
