package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logg *logrus.Logger

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)
}

func Get() *logrus.Logger {
	return logg
}

// SetLevel parses lvl (e.g. "debug", "warn") and falls back to info
func SetLevel(lvl string) {
	parsed, err := logrus.ParseLevel(lvl)
	if err != nil {
		logg.WithField("level", lvl).Warn("unknown log level, using info")
		parsed = logrus.InfoLevel
	}
	logg.SetLevel(parsed)
}

func LogError(moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logg.WithFields(fields).Error(err.Error())
}
