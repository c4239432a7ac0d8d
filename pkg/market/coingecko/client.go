package coingecko

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/jsonx"
	"github.com/zeromicro/go-zero/core/logx"

	"cryptoetl/pkg/market"
)

const (
	defaultBaseURL    = "https://api.coingecko.com/api/v3"
	defaultTimeout    = 30 * time.Second
	defaultVSCurrency = "usd"
	defaultName       = "coingecko"

	// MaxPerPage is the largest page size the markets endpoint accepts.
	MaxPerPage = 250

	maxBodyBytes = 8 << 20
	apiKeyHeader = "x-cg-demo-api-key"
	opFetch      = "coingecko: fetch markets"
)

// Client fetches ranked coin market data from the CoinGecko REST API.
type Client struct {
	name       string
	baseURL    string
	vsCurrency string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	sink       market.ArtifactSink
	now        func() time.Time
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the API root, e.g. for the pro endpoint or tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout bounds each Fetch call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithVSCurrency sets the quote currency.
func WithVSCurrency(cur string) Option {
	return func(c *Client) {
		if cur = strings.ToLower(strings.TrimSpace(cur)); cur != "" {
			c.vsCurrency = cur
		}
	}
}

// WithAPIKey sets the demo API key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithName labels batches and artifacts produced by this client.
func WithName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.name = name
		}
	}
}

// WithArtifactSink registers a best-effort receiver for raw payloads.
func WithArtifactSink(sink market.ArtifactSink) Option {
	return func(c *Client) {
		c.sink = sink
	}
}

// WithClock overrides the fetch timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a CoinGecko client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		name:       defaultName,
		baseURL:    defaultBaseURL,
		vsCurrency: defaultVSCurrency,
		timeout:    defaultTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: client.timeout}
	}
	return client
}

// SetArtifactSink implements market.ArtifactPublisher.
func (c *Client) SetArtifactSink(sink market.ArtifactSink) {
	c.sink = sink
}

// Fetch retrieves the top limit coins ordered by market cap. It performs
// exactly one HTTP request.
func (c *Client) Fetch(ctx context.Context, limit int) (*market.RawBatch, error) {
	if limit < 1 || limit > MaxPerPage {
		return nil, &market.ExtractError{
			Kind: market.KindSchema,
			Op:   opFetch,
			Err:  fmt.Errorf("limit %d outside 1..%d", limit, MaxPerPage),
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.marketsURL(limit), nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}

	fetchedAt := c.now().UTC()
	if c.sink != nil {
		c.sink.SaveRaw(c.name, fetchedAt, body)
	}

	if err := classifyStatus(resp, body); err != nil {
		return nil, err
	}

	p := parsePayload(body)
	if p.kind == payloadMalformed {
		return nil, &market.ExtractError{
			Kind:   market.KindSchema,
			Op:     opFetch,
			Status: resp.StatusCode,
			Err:    errors.New(p.reason),
		}
	}
	if p.dropped > 0 {
		logx.WithContext(ctx).Infow("coingecko: dropped records missing identity",
			logx.Field("dropped", p.dropped),
			logx.Field("kept", len(p.records)))
	}
	records := p.records
	if len(records) > limit {
		records = records[:limit]
	}

	return &market.RawBatch{
		Source:    c.name,
		FetchedAt: fetchedAt,
		Records:   records,
		Dropped:   p.dropped,
	}, nil
}

func (c *Client) marketsURL(limit int) string {
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	return c.baseURL + "/coins/markets?" + q.Encode()
}

func classifyTransport(parent context.Context, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return fmt.Errorf("coingecko: fetch cancelled: %w", err)
	}
	kind := market.KindTransport
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = market.KindTimeout
	}
	return &market.ExtractError{Kind: kind, Op: opFetch, Err: err}
}

func classifyStatus(resp *http.Response, body []byte) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	e := &market.ExtractError{
		Op:     opFetch,
		Status: code,
		Err:    fmt.Errorf("http status %d: %s", code, snippet(body)),
	}
	switch {
	case code == http.StatusTooManyRequests:
		e.Kind = market.KindRateLimit
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	case code >= 500:
		e.Kind = market.KindTransport
	default:
		e.Kind = market.KindSchema
	}
	return e
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

type payloadKind int

const (
	payloadMalformed payloadKind = iota
	payloadValid
)

// payload is the validated form of a response body. Only payloadValid
// results carry records.
type payload struct {
	kind    payloadKind
	records []market.RawSnapshot
	dropped int
	reason  string
}

func malformed(format string, args ...any) payload {
	return payload{kind: payloadMalformed, reason: fmt.Sprintf(format, args...)}
}

func parsePayload(body []byte) payload {
	var decoded any
	if err := jsonx.Unmarshal(body, &decoded); err != nil {
		return malformed("decode body: %v", err)
	}
	items, ok := decoded.([]any)
	if !ok {
		return malformed("expected JSON array, got %s", jsonKind(decoded))
	}
	if len(items) == 0 {
		return malformed("empty market list")
	}

	out := payload{kind: payloadValid, records: make([]market.RawSnapshot, 0, len(items))}
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return malformed("element %d is %s, not an object", i, jsonKind(item))
		}
		id := stringField(obj, "id")
		symbol := stringField(obj, "symbol")
		if id == "" || symbol == "" {
			out.dropped++
			continue
		}
		out.records = append(out.records, market.RawSnapshot{
			ID:             id,
			Symbol:         symbol,
			Name:           stringField(obj, "name"),
			CurrentPrice:   obj["current_price"],
			MarketCap:      obj["market_cap"],
			TotalVolume:    obj["total_volume"],
			PriceChange24h: obj["price_change_24h"],
			MarketCapRank:  obj["market_cap_rank"],
		})
	}
	if len(out.records) == 0 {
		return malformed("all %d records lack id or symbol", out.dropped)
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	default:
		return "number"
	}
}
