package cli

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"cryptoetl/internal/config"
	"cryptoetl/pkg/confkit"
)

// SetupLogging configures logx with the durable sink from c (file mode writes
// daily-rotated files under c.Path) and mirrors every record to stdout.
func SetupLogging(c logx.LogConf) {
	if c.ServiceName == "" {
		c.ServiceName = "cryptoetl"
	}
	logx.MustSetup(c)
	if c.Mode == "file" || c.Mode == "volume" {
		logx.AddWriter(logx.NewWriter(os.Stdout))
	}
	logx.DisableStat()
}

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	p := cfg.Pipeline
	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Postgres: %s (opTimeout=%s, maxOpen=%d)", redactDSN(cfg.Postgres.DSN), cfg.Postgres.OpTimeout, cfg.Postgres.MaxOpen),
		fmt.Sprintf("Redis mirror: %s", presence(cfg.RedisEnabled())),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		fmt.Sprintf("Pipeline: interval=%s limit=%d batchSize=%d", p.Interval, p.Limit, p.BatchSize),
		fmt.Sprintf("Retry: attempts=%d backoff=%s..%s", p.MaxAttempts, p.InitialBackoff, p.MaxBackoff),
		artifactsLine(cfg.Artifacts),
		journalLine(cfg.Journal),
		sectionLine("Source config", cfg.Source),
	}
	if src := cfg.Source.Value; src != nil {
		lines = append(lines, fmt.Sprintf("Source: %s (%s)", src.Default, strings.Join(src.Names(), ", ")))
	}
	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func artifactsLine(a config.ArtifactsConf) string {
	if a.Disabled {
		return "Artifacts: disabled"
	}
	batches := a.BatchFormat
	if batches == "" {
		batches = "off"
	}
	return fmt.Sprintf("Artifacts: %s (raw=%s, batches=%s)", a.Dir, a.RawFormat, batches)
}

func journalLine(j config.JournalConf) string {
	if j.Disabled {
		return "Journal: disabled"
	}
	return fmt.Sprintf("Journal: %s", j.Dir)
}

// redactDSN hides credentials in URL-form DSNs; key=value DSNs are reduced
// to their host.
func redactDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "not configured"
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	for _, field := range strings.Fields(dsn) {
		if strings.HasPrefix(field, "host=") {
			return field
		}
	}
	return "configured"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
