package logger

import (
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	projectLogger *logrus.Logger
	projectEntry  *logrus.Entry
	once          sync.Once
)

func initProjectLogger() {
	projectLogger = logrus.New()
	projectLogger.Out = os.Stderr
	projectLogger.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	}
	projectEntry = projectLogger.WithFields(logrus.Fields{
		"app":    "metronome",
		"run_id": uuid.NewString(),
	})
}

// GetProjectLogger returns the logger shared by every package of the project.
func GetProjectLogger() *logrus.Entry {
	once.Do(initProjectLogger)
	return projectEntry
}

// SetOutput redirects the project logger, usually to an AsyncWriter.
func SetOutput(w io.Writer) {
	once.Do(initProjectLogger)
	projectLogger.SetOutput(w)
}

// SetLevel parses and applies a level name such as "debug" or "warn".
func SetLevel(level string) error {
	once.Do(initProjectLogger)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	projectLogger.SetLevel(lvl)
	return nil
}
