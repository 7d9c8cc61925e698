// Package logging builds the process logger.
package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// New returns a text logger writing to stderr at the given level.
func New(level string) (*log.Logger, error) {
	return NewWithOutput(level, os.Stderr)
}

// NewWithOutput is New with a custom destination.
func NewWithOutput(level string, out io.Writer) (*log.Logger, error) {
	logger := log.New()
	logger.SetOutput(out)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level '%s'", level)
	}
	logger.SetLevel(lvl)
	return logger, nil
}
