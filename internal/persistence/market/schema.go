package marketpersist

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// TableName is the single table this package manages.
const TableName = "crypto_market"

// Columns in insert order. coin_id and extracted_at form the conflict key.
var upsertColumns = []string{
	"coin_id",
	"symbol",
	"name",
	"current_price",
	"market_cap",
	"total_volume",
	"price_change_24h",
	"market_cap_rank",
	"volatility_score",
	"extracted_at",
}

// Postgres caps bind parameters per statement at 65535.
var maxRowsPerStatement = 65535 / len(upsertColumns)

func schemaStatements() []string {
	table := pq.QuoteIdentifier(TableName)
	index := func(column string) string {
		name := pq.QuoteIdentifier(fmt.Sprintf("idx_%s_%s", TableName, column))
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, table, pq.QuoteIdentifier(column))
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    coin_id TEXT NOT NULL,
    symbol TEXT NOT NULL,
    name TEXT NOT NULL,
    current_price DOUBLE PRECISION,
    market_cap BIGINT,
    total_volume BIGINT,
    price_change_24h DOUBLE PRECISION,
    market_cap_rank INTEGER,
    volatility_score DOUBLE PRECISION,
    extracted_at TIMESTAMPTZ NOT NULL,
    CONSTRAINT %s UNIQUE (coin_id, extracted_at)
)`, table, pq.QuoteIdentifier(TableName+"_coin_id_extracted_at_key")),
		index("coin_id"),
		index("extracted_at"),
		index("market_cap_rank"),
	}
}

// buildUpsert renders a multi-row upsert for rows records.
func buildUpsert(rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pq.QuoteIdentifier(TableName))
	b.WriteString(" (")
	b.WriteString(strings.Join(upsertColumns, ", "))
	b.WriteString(") VALUES ")
	n := len(upsertColumns)
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < n; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*n+j+1)
		}
		b.WriteByte(')')
	}
	b.WriteString(" ON CONFLICT (coin_id, extracted_at) DO UPDATE SET ")
	first := true
	for _, col := range upsertColumns {
		if col == "coin_id" || col == "extracted_at" {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%s = EXCLUDED.%s", col, col)
	}
	return b.String()
}
