package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"cryptoetl/pkg/market"
)

const defaultQueueSize = 16

// Config controls where and how artifacts are written.
type Config struct {
	Dir         string
	RawFormat   string // json | msgpack
	BatchFormat string // csv | json | parquet, empty disables batch artifacts
	QueueSize   int
}

// Writer persists artifacts on a background goroutine. Enqueueing never
// blocks: when the queue is full the artifact is dropped and counted.
type Writer struct {
	rawDir   string
	batchDir string
	raw      RawCodec
	batch    BatchSaver

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}

	dropped atomic.Int64
	written atomic.Int64
}

type job struct {
	source string
	at     time.Time
	raw    []byte
	rows   []Row
}

// NewWriter validates cfg, creates the target directories and starts the worker.
func NewWriter(cfg Config) (*Writer, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("archive: dir is required")
	}
	rawFormat := cfg.RawFormat
	if rawFormat == "" {
		rawFormat = "json"
	}
	codec := NewRawCodec(rawFormat)
	if codec == nil {
		return nil, fmt.Errorf("archive: unsupported raw format %q", cfg.RawFormat)
	}
	var saver BatchSaver
	if cfg.BatchFormat != "" {
		if saver = NewBatchSaver(cfg.BatchFormat); saver == nil {
			return nil, fmt.Errorf("archive: unsupported batch format %q", cfg.BatchFormat)
		}
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	w := &Writer{
		rawDir:   filepath.Join(cfg.Dir, "raw"),
		batchDir: filepath.Join(cfg.Dir, "batches"),
		raw:      codec,
		batch:    saver,
		queue:    make(chan job, size),
		done:     make(chan struct{}),
	}
	if err := os.MkdirAll(w.rawDir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: create %s: %w", w.rawDir, err)
	}
	if saver != nil {
		if err := os.MkdirAll(w.batchDir, 0o755); err != nil {
			return nil, fmt.Errorf("archive: create %s: %w", w.batchDir, err)
		}
	}
	threading.GoSafe(w.loop)
	return w, nil
}

// SaveRaw implements market.ArtifactSink.
func (w *Writer) SaveRaw(source string, fetchedAt time.Time, payload []byte) {
	w.enqueue(job{source: source, at: fetchedAt, raw: append([]byte(nil), payload...)})
}

// ArchiveBatch queues a transformed batch when a batch format is configured.
func (w *Writer) ArchiveBatch(b *market.Batch) {
	if w.batch == nil || b.Len() == 0 {
		return
	}
	w.enqueue(job{at: b.ExtractedAt, rows: RowsFromBatch(b)})
}

func (w *Writer) enqueue(j job) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}
	select {
	case w.queue <- j:
	default:
		w.dropped.Add(1)
		logx.Errorf("archive: queue full, dropping artifact from %s at %s", j.source, j.at.Format(time.RFC3339))
	}
}

// Dropped returns how many artifacts were discarded.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Written returns how many artifacts reached disk.
func (w *Writer) Written() int64 { return w.written.Load() }

// Close stops accepting artifacts and waits for queued ones to be written.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	<-w.done
	return nil
}

func (w *Writer) loop() {
	defer close(w.done)
	for j := range w.queue {
		var (
			path string
			err  error
		)
		if j.rows != nil {
			path, err = w.writeBatch(j)
		} else {
			path, err = w.writeRaw(j)
		}
		if err != nil {
			logx.Errorf("archive: write artifact: %v", err)
			continue
		}
		w.written.Add(1)
		logx.Debugf("archive: wrote %s", path)
	}
}

func (w *Writer) writeRaw(j job) (string, error) {
	data, err := w.raw.Encode(j.raw)
	if err != nil {
		return "", err
	}
	base := fmt.Sprintf("crypto_data_%s", j.at.UTC().Format("20060102_150405"))
	return writeExclusive(w.rawDir, base, w.raw.Extension(), data)
}

func (w *Writer) writeBatch(j job) (string, error) {
	base := fmt.Sprintf("batch_%s", j.at.UTC().Format("20060102_150405"))
	f, err := createExclusive(w.batchDir, base, w.batch.Extension())
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := w.batch.Save(j.rows, path); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

func writeExclusive(dir, base, ext string, data []byte) (string, error) {
	f, err := createExclusive(dir, base, ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	return f.Name(), f.Close()
}

// createExclusive never reuses an earlier artifact name; same-second names
// get a numeric suffix.
func createExclusive(dir, base, ext string) (*os.File, error) {
	for i := 0; i < 1000; i++ {
		name := base + "." + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d.%s", base, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("archive: too many artifacts named %s", base)
}
