package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sweeney/pump-monitor/internal/flow"
)

// CSVStore appends records to one CSV file per calendar day,
// <dir>/YYYY-MM-DD.csv. The header is written once, when the day's file is
// created or found empty.
type CSVStore struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// NewCSVStore creates a store rooted at dir. now selects the day a record is
// filed under; nil means time.Now.
func NewCSVStore(dir string, now func() time.Time) *CSVStore {
	if now == nil {
		now = time.Now
	}
	return &CSVStore{dir: dir, now: now}
}

// Name returns "csv".
func (s *CSVStore) Name() string { return "csv" }

// Path returns the file for the day containing t.
func (s *CSVStore) Path(t time.Time) string {
	return filepath.Join(s.dir, dayKey(t)+".csv")
}

// EnsureDay verifies the file for t's day exists with a header, creating it
// if necessary.
func (s *CSVStore) EnsureDay(t time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure(s.Path(t))
}

func (s *CSVStore) ensure(path string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > 0 {
		return path, nil
	}

	log.Printf("sink: creating %s", path)
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	return path, nil
}

// Append writes r to today's file, creating it first if needed. Local writes
// do not block, so ctx is not consulted.
func (s *CSVStore) Append(_ context.Context, r flow.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.ensure(s.Path(s.now()))
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(FormatRecord(r)); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	return f.Close()
}
