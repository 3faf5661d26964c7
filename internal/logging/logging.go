// Package logging installs the process-wide slog handler.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	stateDirName = "lyrisync"
	logFileName  = "lyrisync.log"
)

// LogPath is $XDG_STATE_HOME/lyrisync/lyrisync.log.
func LogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, stateDirName, logFileName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", stateDirName, logFileName)
}

func level(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// New builds a text handler writing to w.
func New(w io.Writer, debug bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level(debug),
	}))
}

// Setup installs the default logger. the terminal UI owns the screen, so
// unless toStderr is set logs go to LogPath. the returned func closes the
// log file.
func Setup(debug bool, toStderr bool) (func(), error) {
	if toStderr {
		slog.SetDefault(New(os.Stderr, debug))
		return func() {}, nil
	}

	logPath := LogPath()
	if logPath == "" {
		slog.SetDefault(New(io.Discard, debug))
		return func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(New(logFile, debug))
	return func() { _ = logFile.Close() }, nil
}
