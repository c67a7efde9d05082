package logger

import (
	"io"
	"os"

	"github.com/labstack/gommon/log"
)

const header = "${time_rfc3339} ${level} [${prefix}]"

var std = newLogger(os.Getenv("ENVIRONMENT"))

func newLogger(environment string) *log.Logger {
	l := log.New("jobmarket")
	l.SetHeader(header)
	l.SetOutput(os.Stdout)
	if environment == "development" {
		l.SetLevel(log.DEBUG)
	} else {
		l.SetLevel(log.INFO)
	}
	return l
}

// Init reconfigures the shared logger once the environment is known.
func Init(environment string) {
	std = newLogger(environment)
}

// Default returns the shared logger. It satisfies echo.Logger.
func Default() *log.Logger {
	return std
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

func Info(format string, v ...interface{}) {
	std.Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	std.Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	std.Debugf(format, v...)
}

func Warn(format string, v ...interface{}) {
	std.Warnf(format, v...)
}
