// Package activity keeps the trail of completed lookups: the activity log
// file, its daily rotation, persisted lookups and outcome counters.
package activity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const (
	// FileName is the active activity log inside the activity directory.
	FileName = "loan_activity.log"

	timeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"
)

// FileLog writes one line per checked loan status to <dir>/loan_activity.log.
type FileLog struct {
	mu     sync.Mutex
	dir    string
	file   *os.File
	logger *slog.Logger
	now    func() time.Time
}

// OpenFileLog creates dir if needed and opens the activity log for append.
func OpenFileLog(dir string) (*FileLog, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create activity directory: %w", err)
	}

	l := &FileLog{dir: dir, now: time.Now}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the active log file path.
func (l *FileLog) Path() string {
	return filepath.Join(l.dir, FileName)
}

func (l *FileLog) open() error {
	f, err := os.OpenFile(l.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}
	l.file = f
	l.logger = slog.New(newLineHandler(f, func() time.Time { return l.now() }))
	return nil
}

// lineHandler writes records as "<time> - <message>". Attributes and the
// level are not part of the activity log format and are dropped.
type lineHandler struct {
	w   io.Writer
	now func() time.Time
}

func newLineHandler(w io.Writer, now func() time.Time) slog.Handler {
	return &lineHandler{w: w, now: now}
}

func (h *lineHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	_, err := fmt.Fprintf(h.w, "%s - %s\n", h.now().Format(timeLayout), r.Message)
	return err
}

func (h *lineHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *lineHandler) WithGroup(string) slog.Handler      { return h }

// Checked records one completed lookup.
func (l *FileLog) Checked(ctx context.Context, name string, outcome domain.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.InfoContext(ctx, fmt.Sprintf("Checked loan status for %s - Result: %s", name, outcome))
}

// Rotate renames the active log to loan_activity_YYYY-MM-DD.log and starts
// a fresh one. It returns the rotated path, or "" if there was nothing to rotate.
func (l *FileLog) Rotate() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		slog.Warn("failed to close activity log before rotation", "error", err)
	}

	info, err := os.Stat(l.Path())
	if err != nil || info.Size() == 0 {
		return "", l.open()
	}

	target := l.rotatedPath()
	if err := os.Rename(l.Path(), target); err != nil {
		if openErr := l.open(); openErr != nil {
			return "", openErr
		}
		return "", fmt.Errorf("failed to rotate activity log: %w", err)
	}

	if err := l.open(); err != nil {
		return target, err
	}
	l.logger.Info("Log file saved successfully.")
	return target, nil
}

// rotatedPath picks loan_activity_YYYY-MM-DD.log, adding a counter when a
// rotation already happened that day.
func (l *FileLog) rotatedPath() string {
	date := l.now().Format(dateLayout)
	target := filepath.Join(l.dir, fmt.Sprintf("loan_activity_%s.log", date))
	for i := 1; ; i++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			return target
		}
		target = filepath.Join(l.dir, fmt.Sprintf("loan_activity_%s.%d.log", date, i))
	}
}

// Close closes the active log file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
