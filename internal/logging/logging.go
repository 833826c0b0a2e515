package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// SetupLogging returns the service logger: JSON lines on stdout with the level
// under "loglevel". An unknown level name falls back to info.
func SetupLogging(level string) *logrus.Logger {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}

	logger := logrus.Logger{
		Formatter: &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyLevel: "loglevel",
			},
		},
		Out:   os.Stdout,
		Hooks: make(logrus.LevelHooks),
		Level: parsed,
	}

	return &logger
}
