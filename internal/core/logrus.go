package core

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// logrusLogger adapts a logrus logger to Logger. Key/value args become fields.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps logger; nil uses the logrus standard logger.
func NewLogrusLogger(logger *logrus.Logger) Logger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logrusLogger{entry: logrus.NewEntry(logger)}
}

func (l logrusLogger) Debug(msg string, args ...any) { l.with(args).Debug(msg) }
func (l logrusLogger) Info(msg string, args ...any)  { l.with(args).Info(msg) }
func (l logrusLogger) Warn(msg string, args ...any)  { l.with(args).Warn(msg) }
func (l logrusLogger) Error(msg string, args ...any) { l.with(args).Error(msg) }

func (l logrusLogger) with(args []any) *logrus.Entry {
	if len(args) == 0 {
		return l.entry
	}
	fields := make(logrus.Fields, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("arg%d", i)
		}
		if i+1 < len(args) {
			fields[key] = args[i+1]
		} else {
			fields[key] = "(missing)"
		}
	}
	return l.entry.WithFields(fields)
}
