package log

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	writers []*bufio.Writer
	files   []*os.File
)

// NewLogger returns a slog logger writing to stdout and to a timestamped file
// under dir. name distinguishes per-profile log files from the main one.
// Debug level logging is enabled when debug is true.
func NewLogger(debug bool, dir, name string) (*slog.Logger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating log directory %s: %w", dir, err)
	}

	fileName := fmt.Sprintf("minelurk-%s.log", time.Now().Format("2006-01-02-15_04_05"))
	if name != "" {
		fileName = fmt.Sprintf("minelurk-%s-%s.log", name, time.Now().Format("2006-01-02-15_04_05"))
	}

	f, err := os.Create(filepath.Join(dir, fileName))
	if err != nil {
		return nil, fmt.Errorf("error creating log file: %w", err)
	}

	w := bufio.NewWriter(f)
	mu.Lock()
	writers = append(writers, w)
	files = append(files, f)
	mu.Unlock()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, w), &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler), nil
}

// FlushLog flushes all buffered log writers to disk.
func FlushLog() {
	mu.Lock()
	defer mu.Unlock()
	for _, w := range writers {
		_ = w.Flush()
	}
}

// FlushAndClose flushes and closes every open log file. Call on shutdown.
func FlushAndClose() {
	mu.Lock()
	defer mu.Unlock()
	for _, w := range writers {
		_ = w.Flush()
	}
	for _, f := range files {
		_ = f.Close()
	}
	writers = nil
	files = nil
}
