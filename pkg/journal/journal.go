package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunRecord captures one pipeline run for audit and analysis.
type RunRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"run_id"`
	Source     string    `json:"source,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Attempts   int       `json:"attempts"`
	Extracted  int       `json:"extracted"`
	Dropped    int       `json:"dropped"`
	Loaded     int64     `json:"loaded"`
	Outcome    string    `json:"outcome"`
	ErrorClass string    `json:"error_class,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Writer appends run records to daily JSON-lines files.
type Writer struct {
	dir   string
	mu    sync.Mutex
	nowFn func() time.Time
}

// NewWriter constructs a journal writer rooted at dir.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "journal"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	return &Writer{dir: dir, nowFn: time.Now}, nil
}

// Dir returns the directory records are written to.
func (w *Writer) Dir() string { return w.dir }

// Append writes rec as one line to runs_YYYYMMDD.jsonl and returns the file path.
func (w *Writer) Append(rec *RunRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	data = append(data, '\n')

	name := fmt.Sprintf("runs_%s.jsonl", rec.Timestamp.UTC().Format("20060102"))
	path := filepath.Join(w.dir, name)

	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
