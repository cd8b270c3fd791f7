// Package logging builds the logrus loggers shared by the engine and the CLI.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New creates a logger writing to out at the named level. Unknown levels
// fall back to info. When jsonFormat is set, entries are JSON documents.
func New(level string, out io.Writer, jsonFormat bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if jsonFormat {
		log.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: false,
			FullTimestamp:    true,
			TimestampFormat:  "15:04:05",
		})
	}

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// Discard returns a logger that drops everything. Components use it when
// the caller did not supply one.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}
