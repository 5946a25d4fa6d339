package testutil

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type testWriter struct{ t testing.TB }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Logger returns a debug-level logger that writes through t.Log.
func Logger(t testing.TB) *logrus.Logger {
	t.Helper()
	l := logrus.New()
	l.SetOutput(testWriter{t})
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l
}
