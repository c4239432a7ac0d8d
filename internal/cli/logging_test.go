package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zeromicro/go-zero/core/logx/logtest"

	"cryptoetl/internal/config"
	"cryptoetl/pkg/confkit"
	"cryptoetl/pkg/market"
)

func sampleConfig() *config.Config {
	return &config.Config{
		Env:      "dev",
		Postgres: config.PostgresConf{DSN: "postgres://etl:s3cret@db:5432/crypto?sslmode=disable", MaxOpen: 10, OpTimeout: 30 * time.Second},
		TTL:      config.CacheTTL{Short: 10, Medium: 60, Long: 300},
		Pipeline: config.PipelineConf{
			Interval: 5 * time.Minute, Limit: 20, BatchSize: 100,
			MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 30 * time.Second,
		},
		Artifacts: config.ArtifactsConf{Dir: "artifacts", RawFormat: "json", BatchFormat: "parquet"},
		Journal:   config.JournalConf{Dir: "journal"},
		Source:    confkit.Section[market.Config]{File: "source.yaml", Value: config.DefaultSourceConfig()},
	}
}

func TestConfigSummaryLines(t *testing.T) {
	lines := ConfigSummaryLines(sampleConfig())
	joined := strings.Join(lines, "\n")

	assert.Contains(t, joined, "Environment: dev")
	assert.Contains(t, joined, "postgres://etl:xxxxx@db:5432/crypto")
	assert.NotContains(t, joined, "s3cret")
	assert.Contains(t, joined, "Redis mirror: not configured")
	assert.Contains(t, joined, "Pipeline: interval=5m0s limit=20 batchSize=100")
	assert.Contains(t, joined, "Retry: attempts=3 backoff=1s..30s")
	assert.Contains(t, joined, "Artifacts: artifacts (raw=json, batches=parquet)")
	assert.Contains(t, joined, "Source config: source.yaml")
	assert.Contains(t, joined, "Source: coingecko (coingecko)")

	assert.Equal(t, []string{"Configuration: <nil>"}, ConfigSummaryLines(nil))
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "not configured", redactDSN(""))
	assert.Equal(t, "host=db", redactDSN("host=db user=etl password=secret"))
	assert.Equal(t, "configured", redactDSN("user=etl"))
}

func TestLogConfigSummary(t *testing.T) {
	logs := logtest.NewCollector(t)
	cfg := sampleConfig()
	cfg.Artifacts.Disabled = true
	cfg.Journal.Disabled = true
	LogConfigSummary(cfg)

	out := logs.String()
	assert.Contains(t, out, "configuration summary")
	assert.Contains(t, out, "config • Artifacts: disabled")
	assert.Contains(t, out, "config • Journal: disabled")
}
