package util

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a text logger at the given level ("debug", "info", ...).
func NewLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, WrapErr("parse log level", err)
	}
	logger := logrus.New()
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger, nil
}

// NopLogger discards everything. Used when no logger is supplied.
func NopLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
