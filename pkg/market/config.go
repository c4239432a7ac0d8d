package market

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"cryptoetl/pkg/confkit"
)

// Config describes the upstream market data sources available to the pipeline.
type Config struct {
	Default string                   `yaml:"default"`
	Sources map[string]*SourceConfig `yaml:"sources"`
}

// SourceConfig represents configuration for a single upstream source.
type SourceConfig struct {
	Type string `yaml:"type"`

	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	VSCurrency string `yaml:"vs_currency"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
}

// SourceBuilder constructs a Source from configuration.
type SourceBuilder func(name string, cfg *SourceConfig) (Source, error)

var (
	sourceRegistry   = make(map[string]SourceBuilder)
	sourceRegistryMu sync.RWMutex
)

// RegisterSource registers a source constructor under a type name.
func RegisterSource(typeName string, builder SourceBuilder) {
	sourceRegistryMu.Lock()
	defer sourceRegistryMu.Unlock()
	sourceRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupSourceBuilder(typeName string) (SourceBuilder, bool) {
	sourceRegistryMu.RLock()
	defer sourceRegistryMu.RUnlock()
	builder, ok := sourceRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// LoadConfig reads source configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal source config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Sources == nil {
		c.Sources = make(map[string]*SourceConfig)
	}
	for name, source := range c.Sources {
		if source == nil {
			source = &SourceConfig{}
			c.Sources[name] = source
		}
		source.expandEnv()
		if err := source.parseDurations(name); err != nil {
			return err
		}
	}
	if c.Default == "" && len(c.Sources) == 1 {
		for name := range c.Sources {
			c.Default = name
		}
	}
	return nil
}

func (s *SourceConfig) expandEnv() {
	s.Type = strings.TrimSpace(os.ExpandEnv(s.Type))
	s.BaseURL = strings.TrimSpace(os.ExpandEnv(s.BaseURL))
	s.APIKey = strings.TrimSpace(os.ExpandEnv(s.APIKey))
	s.VSCurrency = strings.TrimSpace(os.ExpandEnv(s.VSCurrency))
	s.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(s.TimeoutRaw))
}

func (s *SourceConfig) parseDurations(name string) error {
	if s.TimeoutRaw == "" {
		return nil
	}
	d, err := time.ParseDuration(s.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("market source %s: invalid timeout %q: %w", name, s.TimeoutRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("market source %s: timeout must be positive, got %s", name, d)
	}
	s.Timeout = d
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("source config: sources cannot be empty")
	}
	if c.Default == "" {
		return fmt.Errorf("source config: default is required when more than one source is defined")
	}
	if _, ok := c.Sources[c.Default]; !ok {
		return fmt.Errorf("source config: default source %q not defined", c.Default)
	}
	for name, source := range c.Sources {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("source config: source name cannot be empty")
		}
		if err := source.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SourceConfig) validate(name string) error {
	if s == nil {
		return fmt.Errorf("source config: source %s is nil", name)
	}
	if strings.TrimSpace(s.Type) == "" {
		return fmt.Errorf("source config: source %s must specify type", name)
	}
	if _, ok := lookupSourceBuilder(s.Type); !ok {
		return fmt.Errorf("source config: source %s has unsupported type %q", name, s.Type)
	}
	return nil
}

// Names returns the configured source names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildSource instantiates a single named source.
func (c *Config) BuildSource(name string) (Source, error) {
	sourceCfg, ok := c.Sources[name]
	if !ok || sourceCfg == nil {
		return nil, fmt.Errorf("market source %s: not configured", name)
	}
	builder, ok := lookupSourceBuilder(sourceCfg.Type)
	if !ok {
		return nil, fmt.Errorf("market source %s: unsupported type %q", name, sourceCfg.Type)
	}
	source, err := builder(name, sourceCfg)
	if err != nil {
		return nil, fmt.Errorf("market source %s: %w", name, err)
	}
	return source, nil
}

// BuildDefault instantiates the default source.
func (c *Config) BuildDefault() (Source, error) {
	return c.BuildSource(c.Default)
}
