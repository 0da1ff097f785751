package log

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var debug bool

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv("HASHLINE_DEBUG"))
	if err != nil {
		debug = false
	}
}

// GetLogger returns a new logger instance. Diagnostics go to stderr; debug
// level is enabled by the HASHLINE_DEBUG environment variable.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}
