// Package logging configures the shared logrus logger, emitting structured
// JSON so log level and job/worker identifiers are queryable instead of
// embedded in free text.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger writing JSON to stdout at the given level
// ("debug", "info", "warn", "error"). An unrecognized level falls back to
// info rather than failing startup.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// WorkerFields is a shorthand for the worker-id/job-id/email fields nearly
// every worker log line carries.
func WorkerFields(workerID int, jobID, email string) logrus.Fields {
	return logrus.Fields{
		"worker": workerID,
		"job":    jobID,
		"email":  email,
	}
}
