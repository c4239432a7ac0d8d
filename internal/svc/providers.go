package svc

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/wire"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	"cryptoetl/internal/analytics"
	cachekeys "cryptoetl/internal/cache"
	"cryptoetl/internal/config"
	marketpersist "cryptoetl/internal/persistence/market"
	"cryptoetl/internal/pipeline"
	"cryptoetl/pkg/archive"
	"cryptoetl/pkg/journal"
	"cryptoetl/pkg/market"
	_ "cryptoetl/pkg/market/coingecko" // register coingecko source
)

const driverName = "pgx"

// ProviderSet builds a ServiceContext from a *config.Config.
var ProviderSet = wire.NewSet(
	ProvideSqlConn,
	ProvideMirror,
	ProvideStore,
	ProvideArchive,
	ProvideJournal,
	ProvideSource,
	ProvideOrchestrator,
	ProvideScheduler,
	ProvideReader,
	NewServiceContext,
)

// ProvideSqlConn opens the Postgres pool. No connection is made until the
// first statement, which the store bounds with its op timeout.
func ProvideSqlConn(c *config.Config) (sqlx.SqlConn, func(), error) {
	return OpenPostgres(c.Postgres)
}

// OpenPostgres opens a go-zero sqlx connection over the pgx stdlib driver and
// applies the pool limits.
func OpenPostgres(pc config.PostgresConf) (sqlx.SqlConn, func(), error) {
	dsn := strings.TrimSpace(pc.DSN)
	if dsn == "" {
		return nil, nil, fmt.Errorf("svc: postgres dsn is empty")
	}
	sqlx.DisableStmtLog()
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("svc: open postgres: %w", err)
	}
	if pc.MaxOpen > 0 {
		db.SetMaxOpenConns(pc.MaxOpen)
	}
	if pc.MaxIdle > 0 {
		db.SetMaxIdleConns(pc.MaxIdle)
	}
	conn := sqlx.NewSqlConnFromDB(db)
	cleanup := func() {
		if err := db.Close(); err != nil {
			logx.Errorf("svc: close postgres err=%v", err)
		}
	}
	return conn, cleanup, nil
}

// ProvideMirror returns a Redis-backed latest-batch mirror, or nil when Redis
// is not configured.
func ProvideMirror(c *config.Config) marketpersist.Mirror {
	if !c.RedisEnabled() {
		return nil
	}
	return newLatestCache(c.Redis)
}

// newLatestCache builds the go-zero cache shared by the ETL writer and the
// API reader of the latest-batch mirror.
func newLatestCache(rc redis.RedisConf) cache.Cache {
	nodes := cache.ClusterConf{{RedisConf: rc, Weight: 100}}
	return cache.New(nodes, syncx.NewSingleFlight(), cache.NewStat("market"), sqlx.ErrNotFound)
}

func ProvideStore(c *config.Config, conn sqlx.SqlConn, mirror marketpersist.Mirror) *marketpersist.Store {
	opts := []marketpersist.Option{marketpersist.WithOpTimeout(c.Postgres.OpTimeout)}
	if mirror != nil {
		ttl := cachekeys.LatestBatchTTL(cachekeys.NewTTLSet(c.TTL), c.Pipeline.Interval)
		opts = append(opts, marketpersist.WithMirror(mirror, ttl))
	}
	return marketpersist.NewStore(conn, opts...)
}

// ProvideArchive starts the artifact writer; nil when artifacts are disabled.
func ProvideArchive(c *config.Config) (*archive.Writer, func(), error) {
	if c.Artifacts.Disabled {
		return nil, func() {}, nil
	}
	w, err := archive.NewWriter(archive.Config{
		Dir:         c.Artifacts.Dir,
		RawFormat:   c.Artifacts.RawFormat,
		BatchFormat: c.Artifacts.BatchFormat,
		QueueSize:   c.Artifacts.QueueSize,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := w.Close(); err != nil {
			logx.Errorf("svc: close archive err=%v", err)
		}
		if n := w.Dropped(); n > 0 {
			logx.Infow("svc: artifacts dropped", logx.Field("dropped", n))
		}
	}
	return w, cleanup, nil
}

// ProvideJournal opens the run journal; nil when disabled.
func ProvideJournal(c *config.Config) (*journal.Writer, error) {
	if c.Journal.Disabled {
		return nil, nil
	}
	return journal.NewWriter(c.Journal.Dir)
}

// ProvideSource builds the default source and, when it supports it, points
// its raw payloads at the archive.
func ProvideSource(c *config.Config, arch *archive.Writer) (market.Source, error) {
	srcCfg, err := c.Source.Require("source")
	if err != nil {
		return nil, err
	}
	src, err := srcCfg.BuildDefault()
	if err != nil {
		return nil, err
	}
	if pub, ok := src.(market.ArtifactPublisher); ok && arch != nil {
		pub.SetArtifactSink(arch)
	}
	return src, nil
}

func ProvideOrchestrator(
	c *config.Config,
	source market.Source,
	store *marketpersist.Store,
	arch *archive.Writer,
	jr *journal.Writer,
) *pipeline.Orchestrator {
	p := c.Pipeline
	opts := []pipeline.Option{
		pipeline.WithLimit(p.Limit),
		pipeline.WithBatchSize(p.BatchSize),
		pipeline.WithRetry(pipeline.RetryConfig{
			MaxAttempts:    p.MaxAttempts,
			InitialBackoff: p.InitialBackoff,
			MaxBackoff:     p.MaxBackoff,
		}),
	}
	if c.Source.Value != nil {
		opts = append(opts, pipeline.WithSourceName(c.Source.Value.Default))
	}
	if arch != nil {
		opts = append(opts, pipeline.WithBatchArchive(arch))
	}
	if jr != nil {
		opts = append(opts, pipeline.WithJournal(jr))
	}
	return pipeline.NewOrchestrator(source, store, opts...)
}

func ProvideScheduler(c *config.Config, o *pipeline.Orchestrator) *pipeline.Scheduler {
	return pipeline.NewScheduler(o, c.Pipeline.Interval)
}

func ProvideReader(store *marketpersist.Store) *analytics.Reader {
	return analytics.NewReader(store)
}
