package svc

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"cryptoetl/internal/analytics"
	"cryptoetl/internal/config"
	marketpersist "cryptoetl/internal/persistence/market"
	"cryptoetl/internal/pipeline"
	"cryptoetl/pkg/archive"
	"cryptoetl/pkg/journal"
	"cryptoetl/pkg/market"
)

// ServiceContext holds everything the ETL process needs, built once at start.
type ServiceContext struct {
	Config config.Config

	DBConn       sqlx.SqlConn
	Store        *marketpersist.Store
	Source       market.Source
	Archive      *archive.Writer // nil when artifacts are disabled
	Journal      *journal.Writer // nil when the journal is disabled
	Orchestrator *pipeline.Orchestrator
	Scheduler    *pipeline.Scheduler
	Reader       *analytics.Reader
}

// NewServiceContext assembles the context. It is the terminal provider of ProviderSet.
func NewServiceContext(
	c *config.Config,
	conn sqlx.SqlConn,
	store *marketpersist.Store,
	source market.Source,
	arch *archive.Writer,
	jr *journal.Writer,
	orch *pipeline.Orchestrator,
	sched *pipeline.Scheduler,
	reader *analytics.Reader,
) *ServiceContext {
	return &ServiceContext{
		Config:       *c,
		DBConn:       conn,
		Store:        store,
		Source:       source,
		Archive:      arch,
		Journal:      jr,
		Orchestrator: orch,
		Scheduler:    sched,
		Reader:       reader,
	}
}

// Prepare creates the table and indexes if they are missing.
func (s *ServiceContext) Prepare(ctx context.Context) error {
	if err := s.Store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("prepare schema: %w", err)
	}
	return nil
}

// LogFreshness reports how old the stored data is relative to the refresh interval.
func (s *ServiceContext) LogFreshness(ctx context.Context) {
	f, err := s.Reader.Freshness(ctx, s.Config.Pipeline.Interval, time.Now())
	if err != nil {
		logx.WithContext(ctx).Errorf("svc: freshness check err=%v", err)
		return
	}
	if !f.HasData {
		logx.WithContext(ctx).Infow("svc: no market data stored yet")
		return
	}
	logx.WithContext(ctx).Infow("svc: stored market data",
		logx.Field("extracted_at", f.ExtractedAt.Format(time.RFC3339)),
		logx.Field("age", f.Age.Round(time.Second).String()),
		logx.Field("stale", f.Stale))
}
