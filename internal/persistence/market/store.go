package marketpersist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "cryptoetl/internal/cache"
	"cryptoetl/pkg/market"
)

const (
	// DefaultBatchSize is used when UpsertBatch receives a non-positive size.
	DefaultBatchSize = 100

	defaultOpTimeout = 30 * time.Second
)

// Mirror receives the latest loaded batch. go-zero's cache.Cache satisfies it.
type Mirror interface {
	SetWithExpireCtx(ctx context.Context, key string, val any, expire time.Duration) error
}

// Store owns the crypto_market table: schema, idempotent loads and read passthrough.
type Store struct {
	conn      sqlx.SqlConn
	opTimeout time.Duration
	mirror    Mirror
	mirrorTTL time.Duration
}

// Option customises a Store.
type Option func(*Store)

// WithOpTimeout bounds every database call.
func WithOpTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithMirror publishes each fully loaded batch to m under the latest-batch keys.
func WithMirror(m Mirror, ttl time.Duration) Option {
	return func(s *Store) {
		s.mirror = m
		s.mirrorTTL = ttl
	}
}

// NewStore wraps an open connection pool. Returns nil when conn is nil.
func NewStore(conn sqlx.SqlConn, opts ...Option) *Store {
	if conn == nil {
		return nil
	}
	s := &Store{conn: conn, opTimeout: defaultOpTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the table, its unique constraint and indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if err := s.exec(ctx, stmt); err != nil {
			return newStoreError("ensure schema", -1, err)
		}
	}
	return nil
}

func (s *Store) exec(ctx context.Context, stmt string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	_, err := s.conn.ExecCtx(ctx, stmt, args...)
	return err
}

// UpsertBatch loads batch in chunks of at most batchSize rows, one transaction
// per chunk. A failed chunk rolls back on its own; chunks committed before it
// stay committed and are included in the returned count.
func (s *Store) UpsertBatch(ctx context.Context, batch *market.Batch, batchSize int) (int64, error) {
	if batch.Len() == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > maxRowsPerStatement {
		batchSize = maxRowsPerStatement
	}

	rows := dedupe(batch.Snapshots)
	for i := range rows {
		if err := validateSnapshot(rows[i]); err != nil {
			return 0, &StoreError{Kind: ConstraintViolationUnexpected, Op: "validate", Chunk: -1,
				Err: fmt.Errorf("row %d: %w", i, err)}
		}
	}

	var total int64
	for chunk, start := 0, 0; start < len(rows); chunk, start = chunk+1, start+batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		n, err := s.upsertChunk(ctx, rows[start:end])
		if err != nil {
			return total, newStoreError("upsert", chunk, err)
		}
		total += n
	}

	s.publish(ctx, &market.Batch{ExtractedAt: batch.ExtractedAt, Snapshots: rows})
	return total, nil
}

func (s *Store) upsertChunk(ctx context.Context, rows []market.Snapshot) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	stmt := buildUpsert(len(rows))
	args := make([]any, 0, len(rows)*len(upsertColumns))
	for _, r := range rows {
		args = append(args,
			r.CoinID,
			r.Symbol,
			r.Name,
			r.CurrentPrice,
			r.MarketCap,
			r.TotalVolume,
			r.PriceChange24h,
			r.MarketCapRank,
			r.VolatilityScore,
			r.ExtractedAt.UTC(),
		)
	}

	var affected int64
	err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		res, err := session.ExecCtx(ctx, stmt, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// dedupe keeps one row per (coin_id, extracted_at); the last occurrence wins
// but keeps the position of the first. A single INSERT ... ON CONFLICT cannot
// touch the same row twice.
func dedupe(in []market.Snapshot) []market.Snapshot {
	type key struct {
		id string
		at time.Time
	}
	index := make(map[key]int, len(in))
	out := make([]market.Snapshot, 0, len(in))
	for _, snap := range in {
		k := key{id: snap.CoinID, at: snap.ExtractedAt.UTC()}
		if i, ok := index[k]; ok {
			out[i] = snap
			continue
		}
		index[k] = len(out)
		out = append(out, snap)
	}
	return out
}

func validateSnapshot(s market.Snapshot) error {
	switch {
	case strings.TrimSpace(s.CoinID) == "":
		return errors.New("coin_id is empty")
	case strings.TrimSpace(s.Symbol) == "":
		return errors.New("symbol is empty")
	case s.ExtractedAt.IsZero():
		return errors.New("extracted_at is zero")
	case s.VolatilityScore < 0:
		return errors.New("volatility_score is negative")
	}
	return nil
}

func (s *Store) publish(ctx context.Context, batch *market.Batch) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.SetWithExpireCtx(ctx, cachekeys.MarketLatestKey(), batch, s.mirrorTTL); err != nil {
		logx.WithContext(ctx).Errorf("marketpersist: mirror latest batch err=%v", err)
		return
	}
	at := batch.ExtractedAt.UTC().Format(time.RFC3339Nano)
	if err := s.mirror.SetWithExpireCtx(ctx, cachekeys.MarketLatestAtKey(), at, s.mirrorTTL); err != nil {
		logx.WithContext(ctx).Errorf("marketpersist: mirror latest timestamp err=%v", err)
	}
}

// Query runs a read-only statement and scans all rows into dest (a pointer to a slice).
func (s *Store) Query(ctx context.Context, dest any, query string, args ...any) error {
	if !isReadOnly(query) {
		return ErrNotReadOnly
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.conn.QueryRowsCtx(ctx, dest, query, args...); err != nil {
		return newStoreError("query", -1, err)
	}
	return nil
}

// QueryRow runs a read-only statement expected to return one row. It returns
// sqlx.ErrNotFound unwrapped when there is none.
func (s *Store) QueryRow(ctx context.Context, dest any, query string, args ...any) error {
	if !isReadOnly(query) {
		return ErrNotReadOnly
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	err := s.conn.QueryRowCtx(ctx, dest, query, args...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sqlx.ErrNotFound):
		return sqlx.ErrNotFound
	default:
		return newStoreError("query row", -1, err)
	}
}

// LatestExtraction returns the newest extracted_at, or false when the table is empty.
func (s *Store) LatestExtraction(ctx context.Context) (time.Time, bool, error) {
	var row struct {
		Latest sql.NullTime `db:"latest"`
	}
	if err := s.QueryRow(ctx, &row, `SELECT MAX(extracted_at) AS latest FROM crypto_market`); err != nil {
		return time.Time{}, false, err
	}
	if !row.Latest.Valid {
		return time.Time{}, false, nil
	}
	return row.Latest.Time.UTC(), true, nil
}

var mutatingKeyword = regexp.MustCompile(`(?i)\b(insert|update|delete|merge|truncate|drop|alter|create|grant|revoke|copy|call)\b`)

func isReadOnly(query string) bool {
	q := strings.TrimSpace(query)
	for strings.HasPrefix(q, "(") {
		q = strings.TrimSpace(q[1:])
	}
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
	default:
		return false
	}
	// Stacked statements and data-modifying CTEs are rejected.
	if strings.Contains(strings.TrimRight(q, "; \t\n"), ";") {
		return false
	}
	return !mutatingKeyword.MatchString(q)
}
