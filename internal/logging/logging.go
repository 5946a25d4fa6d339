// Package logging builds the process logger.
package logging

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stderr at level in the given format,
// "text" or "json".
func New(level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		return nil, fmt.Errorf("log format %q is not one of text, json", format)
	}
	return log, nil
}
