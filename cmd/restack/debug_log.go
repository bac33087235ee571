package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

func debugLogPath() string {
	if path := strings.TrimSpace(os.Getenv("RESTACK_DEBUG_LOG")); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), "restack-debug.log")
}

// newDebugLogger returns a logger appending to the debug log file, or one
// that discards everything when debugging is off. The returned func closes
// the file.
func newDebugLogger(enabled bool) (*log.Logger, func()) {
	if !enabled {
		return log.New(io.Discard), func() {}
	}
	var w io.Writer = os.Stderr
	closeFn := func() {}
	file, err := os.OpenFile(debugLogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err == nil {
		w = file
		closeFn = func() { _ = file.Close() }
	}
	logger := log.NewWithOptions(w, log.Options{
		Level:           log.DebugLevel,
		ReportTimestamp: true,
		Prefix:          "restack",
	})
	return logger, closeFn
}
