package main

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/neuronlabs/uni-logger"
	"github.com/pkg/errors"
)

var logger unilogger.LeveledLogger

func init() {
	defaultLogger(os.Stderr)
}

// defaultLogger installs a unilogger.BasicLogger writing to out at INFO.
func defaultLogger(out io.Writer) {
	basic := unilogger.NewBasicLogger(out, "", log.Ldate|log.Ltime|log.Lshortfile)
	basic.SetOutputDepth(4)
	basic.SetLevel(unilogger.INFO)
	SetLogger(basic)
}

// SetLogger replaces the package logger. A nil logger silences logging.
func SetLogger(l unilogger.LeveledLogger) {
	logger = l
}

// SetLogLevel sets the level of the current logger by name: debug, info,
// warning or error.
func SetLogLevel(level string) error {
	var lvl unilogger.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = unilogger.DEBUG
	case "info":
		lvl = unilogger.INFO
	case "warning", "warn":
		lvl = unilogger.WARNING
	case "error":
		lvl = unilogger.ERROR
	default:
		return errors.Errorf("log: unknown level %q", level)
	}

	setter, ok := logger.(unilogger.LevelSetter)
	if !ok {
		return errors.New("log: current logger does not support levels")
	}
	setter.SetLevel(lvl)
	return nil
}

func logDebugf(format string, args ...interface{}) {
	if logger != nil {
		logger.Debugf(format, args...)
	}
}

func logInfof(format string, args ...interface{}) {
	if logger != nil {
		logger.Infof(format, args...)
	}
}

func logWarningf(format string, args ...interface{}) {
	if logger != nil {
		logger.Warningf(format, args...)
	}
}

func logErrorf(format string, args ...interface{}) {
	if logger != nil {
		logger.Errorf(format, args...)
	}
}
