package eventquiz

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the package logger. Binaries may swap the formatter
// (the server uses JSON, the CLI keeps text).
var Log = newLogger()

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// SetVerbose enables debug-level logging
func SetVerbose(verbose bool) {
	if verbose {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}
