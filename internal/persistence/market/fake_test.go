package marketpersist

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

type rowKey struct {
	coinID string
	at     time.Time
}

type storedRow struct {
	CoinID          string
	Symbol          string
	Name            string
	CurrentPrice    float64
	MarketCap       int64
	TotalVolume     int64
	PriceChange24h  float64
	MarketCapRank   int
	VolatilityScore float64
	ExtractedAt     time.Time
}

// fakeConn emulates the subset of Postgres the store relies on: multi-row
// upserts keyed on (coin_id, extracted_at) with per-transaction rollback.
type fakeConn struct {
	sqlx.SqlConn

	mu        sync.Mutex
	table     map[rowKey]storedRow
	ddl       []string
	txSizes   []int
	commits   int
	rollbacks int
	// failTx returns an error for the n-th transaction (1-based) when set.
	failTx    int
	failErr   error
	queryErr  error
	queryRows func(v any) error
}

func newFakeConn() *fakeConn {
	return &fakeConn{table: make(map[rowKey]storedRow)}
}

func (f *fakeConn) ExecCtx(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.HasPrefix(strings.TrimSpace(query), "INSERT") {
		return nil, errors.New("fake: upserts must run inside a transaction")
	}
	f.ddl = append(f.ddl, query)
	return driver.RowsAffected(0), nil
}

func (f *fakeConn) TransactCtx(ctx context.Context, fn func(context.Context, sqlx.Session) error) error {
	f.mu.Lock()
	txNum := len(f.txSizes) + 1
	f.txSizes = append(f.txSizes, 0)
	f.mu.Unlock()

	tx := &fakeTx{pending: make(map[rowKey]storedRow)}
	if err := fn(ctx, tx); err != nil {
		f.mu.Lock()
		f.rollbacks++
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.txSizes[txNum-1] = tx.rows
	if f.failTx == txNum {
		f.rollbacks++
		return f.failErr
	}
	for k, v := range tx.pending {
		f.table[k] = v
	}
	f.commits++
	return nil
}

func (f *fakeConn) QueryRowsCtx(_ context.Context, v any, _ string, _ ...any) error {
	if f.queryErr != nil {
		return f.queryErr
	}
	if f.queryRows != nil {
		return f.queryRows(v)
	}
	return nil
}

func (f *fakeConn) QueryRowCtx(_ context.Context, v any, _ string, _ ...any) error {
	if f.queryErr != nil {
		return f.queryErr
	}
	if f.queryRows != nil {
		return f.queryRows(v)
	}
	return sqlx.ErrNotFound
}

func (f *fakeConn) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.table)
}

func (f *fakeConn) row(coinID string, at time.Time) (storedRow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.table[rowKey{coinID: coinID, at: at.UTC()}]
	return r, ok
}

type fakeTx struct {
	sqlx.Session
	pending map[rowKey]storedRow
	rows    int
}

func (t *fakeTx) ExecCtx(_ context.Context, query string, args ...any) (sql.Result, error) {
	if !strings.Contains(query, "ON CONFLICT (coin_id, extracted_at) DO UPDATE") {
		return nil, errors.New("fake: unexpected statement")
	}
	n := len(upsertColumns)
	if len(args)%n != 0 {
		return nil, errors.New("fake: argument count is not a multiple of the column count")
	}
	seen := make(map[rowKey]bool)
	for i := 0; i < len(args); i += n {
		r := storedRow{
			CoinID:          args[i].(string),
			Symbol:          args[i+1].(string),
			Name:            args[i+2].(string),
			CurrentPrice:    args[i+3].(float64),
			MarketCap:       args[i+4].(int64),
			TotalVolume:     args[i+5].(int64),
			PriceChange24h:  args[i+6].(float64),
			MarketCapRank:   args[i+7].(int),
			VolatilityScore: args[i+8].(float64),
			ExtractedAt:     args[i+9].(time.Time),
		}
		k := rowKey{coinID: r.CoinID, at: r.ExtractedAt.UTC()}
		if seen[k] {
			// Postgres: ON CONFLICT DO UPDATE command cannot affect row a second time.
			return nil, errors.New("fake: 21000 cardinality violation")
		}
		seen[k] = true
		t.pending[k] = r
	}
	t.rows = len(args) / n
	return driver.RowsAffected(int64(t.rows)), nil
}
