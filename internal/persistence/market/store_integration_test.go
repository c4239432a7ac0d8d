//go:build integration

package marketpersist

import (
	"context"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// Run with: CRYPTOETL_TEST_DSN=postgres://... go test -tags integration ./internal/persistence/market
func TestStore_Postgres(t *testing.T) {
	dsn := os.Getenv("CRYPTOETL_TEST_DSN")
	if dsn == "" {
		t.Skip("CRYPTOETL_TEST_DSN not set")
	}
	conn := sqlx.NewSqlConn("pgx", dsn)
	store := NewStore(conn, WithOpTimeout(10*time.Second))
	ctx := context.Background()

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx), "schema creation is repeatable")

	at := time.Now().UTC().Truncate(time.Microsecond)
	t.Cleanup(func() {
		_, _ = conn.ExecCtx(ctx, `DELETE FROM crypto_market WHERE extracted_at = $1`, at)
	})

	batch := makeBatch(25, at)
	n, err := store.UpsertBatch(ctx, batch, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25), n)

	_, err = store.UpsertBatch(ctx, batch, 10)
	require.NoError(t, err)

	var count struct {
		N int64 `db:"n"`
	}
	require.NoError(t, store.QueryRow(ctx, &count, `SELECT COUNT(*) AS n FROM crypto_market WHERE extracted_at = $1`, at))
	assert.Equal(t, int64(25), count.N)

	latest, ok, err := store.LatestExtraction(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, latest.Before(at))
}
