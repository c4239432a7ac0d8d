package archive

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/jsonx"
)

// BatchSaver writes transformed rows to a single file.
type BatchSaver interface {
	Save(rows []Row, path string) error
	Extension() string
}

// NewBatchSaver returns the saver for format (csv, json, parquet) or nil.
func NewBatchSaver(format string) BatchSaver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "json":
		return JSONSaver{}
	case "parquet":
		return ParquetSaver{}
	default:
		return nil
	}
}

// RawCodec turns an upstream response body into the bytes stored on disk.
type RawCodec interface {
	Encode(payload []byte) ([]byte, error)
	Extension() string
}

// NewRawCodec returns the codec for format (json, msgpack) or nil.
func NewRawCodec(format string) RawCodec {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return JSONRaw{}
	case "msgpack":
		return MsgpackRaw{}
	default:
		return nil
	}
}

// CSVSaver writes rows with a header line.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(rows []Row, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)

	header := []string{
		"coin_id", "symbol", "name", "current_price", "market_cap", "total_volume",
		"price_change_24h", "market_cap_rank", "volatility_score", "extracted_at_ms",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			r.CoinID,
			r.Symbol,
			r.Name,
			floatStr(r.CurrentPrice),
			strconv.FormatInt(r.MarketCap, 10),
			strconv.FormatInt(r.TotalVolume, 10),
			floatStr(r.PriceChange24h),
			strconv.FormatInt(int64(r.MarketCapRank), 10),
			floatStr(r.VolatilityScore),
			strconv.FormatInt(r.ExtractedAtMs, 10),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// JSONSaver writes rows as an indented JSON array.
type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(rows []Row, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// ParquetSaver writes rows as a Parquet file.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(rows []Row, path string) error {
	return parquet.WriteFile(path, rows)
}

// JSONRaw stores the body as indented JSON, or verbatim if it is not JSON.
type JSONRaw struct{}

func (JSONRaw) Extension() string { return "json" }

func (JSONRaw) Encode(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return payload, nil
	}
	return buf.Bytes(), nil
}

// MsgpackRaw re-encodes a JSON body as MessagePack. Bodies that are not JSON
// are stored as a msgpack string so nothing is lost.
type MsgpackRaw struct{}

func (MsgpackRaw) Extension() string { return "msgpack" }

func (MsgpackRaw) Encode(payload []byte) ([]byte, error) {
	var decoded any
	if err := jsonx.Unmarshal(payload, &decoded); err != nil {
		decoded = string(payload)
	}
	out, err := msgpack.Marshal(normaliseNumbers(decoded))
	if err != nil {
		return nil, fmt.Errorf("archive: msgpack encode: %w", err)
	}
	return out, nil
}

// normaliseNumbers converts json.Number leaves to int64 or float64 so they are
// stored as msgpack numbers rather than strings.
func normaliseNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = normaliseNumbers(t[i])
		}
		return t
	case map[string]any:
		for k, val := range t {
			t[k] = normaliseNumbers(val)
		}
		return t
	default:
		return v
	}
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
