package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log-sentinel/internal/metrics"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultRetryDelay   = 5 * time.Second
)

var (
	errRotated    = errors.New("log source rotated")
	errSourceGone = errors.New("log source removed")
)

// LineHandler consumes one complete line. The tailer does not read the next
// line until it returns.
type LineHandler func(ctx context.Context, line string)

// TailerConfig configures a Tailer.
type TailerConfig struct {
	Path         string
	PollInterval time.Duration
	RetryDelay   time.Duration
	// StartAtEnd skips the content present when the file is first opened.
	StartAtEnd bool
}

// Tailer follows an append-only text file, surviving its absence,
// truncation and replacement.
type Tailer struct {
	cfg     TailerConfig
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

func NewTailer(cfg TailerConfig, m *metrics.Metrics, logger *logrus.Logger) *Tailer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Tailer{cfg: cfg, metrics: m, logger: logger}
}

// Run tails the file until ctx is cancelled. A missing or unreadable file is
// retried forever.
func (t *Tailer) Run(ctx context.Context, handle LineHandler) error {
	skipExisting := t.cfg.StartAtEnd

	for {
		f, err := os.Open(t.cfg.Path)
		if err != nil {
			// whatever the file holds once it appears was written after start
			skipExisting = false
			t.metrics.SourceAvailable.Set(0)
			t.logger.Warnf("Log source %s unavailable, retrying in %s: %v", t.cfg.Path, t.cfg.RetryDelay, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(t.cfg.RetryDelay):
			}
			continue
		}

		err = t.follow(ctx, f, skipExisting, handle)
		_ = f.Close()
		skipExisting = false

		if ctx.Err() != nil {
			t.metrics.SourceAvailable.Set(0)
			return nil
		}
		switch {
		case errors.Is(err, errRotated):
			t.logger.Infof("Log source %s was rotated or truncated, reopening", t.cfg.Path)
		case errors.Is(err, errSourceGone):
			t.metrics.SourceAvailable.Set(0)
			t.logger.Warnf("Log source %s was removed", t.cfg.Path)
		case err != nil:
			t.metrics.SourceAvailable.Set(0)
			t.logger.Warnf("Reading log source %s failed, retrying in %s: %v", t.cfg.Path, t.cfg.RetryDelay, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(t.cfg.RetryDelay):
			}
		}
	}
}

func (t *Tailer) follow(ctx context.Context, f *os.File, seekEnd bool, handle LineHandler) error {
	var offset int64
	if seekEnd {
		pos, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			return fmt.Errorf("failed to seek to end: %w", err)
		}
		offset = pos
	}
	t.metrics.SourceAvailable.Set(1)
	t.logger.Infof("Tailing log source %s from offset %d", t.cfg.Path, offset)

	var events <-chan fsnotify.Event
	var watchErrors <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.logger.Warnf("File notifications unavailable, polling every %s: %v", t.cfg.PollInterval, err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(t.cfg.Path)); err != nil {
			t.logger.Warnf("Failed to watch %s, polling every %s: %v", filepath.Dir(t.cfg.Path), t.cfg.PollInterval, err)
		} else {
			events = watcher.Events
			watchErrors = watcher.Errors
		}
	}

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	reader := bufio.NewReader(f)
	var partial strings.Builder

	for {
		n, err := t.drain(ctx, reader, &partial, handle)
		offset += n
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		if err := t.checkRotation(f, offset); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			t.logger.Debugf("File event: %s", ev)
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			t.logger.Warnf("File watcher error: %v", err)
		case <-ticker.C:
		}
	}
}

// drain hands every complete line available to handle and keeps a trailing
// partial line in partial. It returns the number of bytes consumed.
func (t *Tailer) drain(ctx context.Context, reader *bufio.Reader, partial *strings.Builder, handle LineHandler) (int64, error) {
	var consumed int64
	for {
		chunk, err := reader.ReadString('\n')
		consumed += int64(len(chunk))
		if errors.Is(err, io.EOF) {
			partial.WriteString(chunk)
			return consumed, nil
		}
		if err != nil {
			return consumed, err
		}

		line := partial.String() + chunk
		partial.Reset()

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		handle(ctx, line)
		if ctx.Err() != nil {
			return consumed, nil
		}
	}
}

// checkRotation reports whether the path now names a different or shorter
// file than the one being read.
func (t *Tailer) checkRotation(f *os.File, offset int64) error {
	current, err := os.Stat(t.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return errSourceGone
		}
		return err
	}
	opened, err := f.Stat()
	if err != nil {
		return err
	}
	if !os.SameFile(opened, current) || current.Size() < offset {
		return errRotated
	}
	return nil
}
