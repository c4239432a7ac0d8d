// Package pipeline sequences extract, transform and load into runs, and
// schedules those runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	marketpersist "cryptoetl/internal/persistence/market"
	"cryptoetl/pkg/journal"
	"cryptoetl/pkg/market"
)

const (
	DefaultLimit     = 20
	DefaultBatchSize = 100
)

// State is the step an orchestrator is currently executing.
type State int32

const (
	Idle State = iota
	Extracting
	Transforming
	Loading
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Extracting:
		return "extracting"
	case Transforming:
		return "transforming"
	case Loading:
		return "loading"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Outcome is the terminal result of a run.
type Outcome string

const (
	Success Outcome = "success"
	Failed  Outcome = "failed"
)

// Loader persists a transformed batch. *marketpersist.Store satisfies it.
type Loader interface {
	UpsertBatch(ctx context.Context, batch *market.Batch, batchSize int) (int64, error)
}

// RunRecorder receives one record per finished run. *journal.Writer satisfies it.
type RunRecorder interface {
	Append(rec *journal.RunRecord) (string, error)
}

// BatchArchiver receives each transformed batch. It must not block.
type BatchArchiver interface {
	ArchiveBatch(batch *market.Batch)
}

// RunReport summarises one run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	Attempts   int
	Extracted  int
	Dropped    int
	Loaded     int64
	Outcome    Outcome
	ErrorClass string
	Err        error
}

// Orchestrator runs extract, transform and load strictly in that order.
type Orchestrator struct {
	source     market.Source
	sourceName string
	loader     Loader
	limit      int
	batchSize  int
	retry      *RetryHandler
	now        func() time.Time
	journal    RunRecorder
	archiver   BatchArchiver

	state atomic.Int32
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.limit = n
		}
	}
}

func WithBatchSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

func WithRetry(cfg RetryConfig) Option {
	return func(o *Orchestrator) {
		o.retry = NewRetryHandler(cfg)
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithJournal(r RunRecorder) Option {
	return func(o *Orchestrator) {
		o.journal = r
	}
}

func WithBatchArchive(a BatchArchiver) Option {
	return func(o *Orchestrator) {
		o.archiver = a
	}
}

// WithSourceName labels runs in logs and the journal before a batch arrives.
func WithSourceName(name string) Option {
	return func(o *Orchestrator) {
		o.sourceName = name
	}
}

// NewOrchestrator wires a source to a loader.
func NewOrchestrator(source market.Source, loader Loader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:    source,
		loader:    loader,
		limit:     DefaultLimit,
		batchSize: DefaultBatchSize,
		retry:     NewRetryHandler(RetryConfig{}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State reports the step currently executing.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// RunOnce performs a single extract-transform-load pass. Failures are
// reported, never raised.
func (o *Orchestrator) RunOnce(ctx context.Context) RunReport {
	report := RunReport{
		RunID:     uuid.NewString(),
		StartedAt: o.now().UTC(),
	}
	defer o.setState(Idle)

	o.run(ctx, &report)

	report.Duration = o.now().Sub(report.StartedAt)
	if report.Err == nil {
		report.Outcome = Success
	} else {
		report.Outcome = Failed
		report.ErrorClass = errorClass(report.Err)
	}
	o.logReport(ctx, report)
	o.record(ctx, report)
	return report
}

func (o *Orchestrator) run(ctx context.Context, report *RunReport) {
	o.setState(Extracting)
	var raw *market.RawBatch
	attempts, err := o.retry.Do(ctx, func(attempt int) error {
		batch, err := o.source.Fetch(ctx, o.limit)
		if err != nil {
			logx.WithContext(ctx).Infow("pipeline: extract attempt failed",
				logx.Field("run_id", report.RunID),
				logx.Field("attempt", attempt),
				logx.Field("retryable", market.IsRetryable(err)),
				logx.Field("error", err.Error()))
			return err
		}
		raw = batch
		return nil
	})
	report.Attempts = attempts
	if err != nil {
		report.Err = fmt.Errorf("extract: %w", err)
		return
	}
	report.Extracted = len(raw.Records)
	report.Dropped = raw.Dropped

	o.setState(Transforming)
	batch, err := market.Transform(raw, o.now())
	if err != nil {
		report.Err = fmt.Errorf("transform: %w", err)
		return
	}
	if o.archiver != nil {
		o.archiver.ArchiveBatch(batch)
	}

	o.setState(Loading)
	loaded, err := o.loader.UpsertBatch(ctx, batch, o.batchSize)
	report.Loaded = loaded
	if err != nil {
		report.Err = fmt.Errorf("load: %w", err)
	}
}

func (o *Orchestrator) logReport(ctx context.Context, r RunReport) {
	fields := []logx.LogField{
		logx.Field("run_id", r.RunID),
		logx.Field("source", o.sourceName),
		logx.Field("outcome", string(r.Outcome)),
		logx.Field("attempts", r.Attempts),
		logx.Field("extracted", r.Extracted),
		logx.Field("dropped", r.Dropped),
		logx.Field("loaded", r.Loaded),
		logx.Field("duration", r.Duration.String()),
	}
	if r.Err == nil {
		logx.WithContext(ctx).Infow("pipeline run finished", fields...)
		return
	}
	fields = append(fields,
		logx.Field("error_class", r.ErrorClass),
		logx.Field("error", r.Err.Error()))
	logx.WithContext(ctx).Errorw("pipeline run failed", fields...)
}

func (o *Orchestrator) record(ctx context.Context, r RunReport) {
	if o.journal == nil {
		return
	}
	rec := &journal.RunRecord{
		Timestamp:  r.StartedAt,
		RunID:      r.RunID,
		Source:     o.sourceName,
		DurationMs: r.Duration.Milliseconds(),
		Attempts:   r.Attempts,
		Extracted:  r.Extracted,
		Dropped:    r.Dropped,
		Loaded:     r.Loaded,
		Outcome:    string(r.Outcome),
		ErrorClass: r.ErrorClass,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	if _, err := o.journal.Append(rec); err != nil {
		logx.WithContext(ctx).Errorf("pipeline: journal append run_id=%s err=%v", r.RunID, err)
	}
}

// errorClass names the failing step and error kind, e.g. "extract.rate_limit".
func errorClass(err error) string {
	var (
		extractErr *market.ExtractError
		emptyErr   *market.EmptyBatchError
		storeErr   *marketpersist.StoreError
	)
	switch {
	case errors.As(err, &storeErr):
		return "store." + string(storeErr.Kind)
	case errors.As(err, &emptyErr):
		return "transform.empty_batch"
	case errors.Is(err, context.Canceled):
		return "extract.cancelled"
	case errors.As(err, &extractErr):
		return "extract." + string(extractErr.Kind)
	default:
		return "unknown"
	}
}
