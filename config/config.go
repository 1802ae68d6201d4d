package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/rotaplan/core/finance"
	"github.com/kilianp07/rotaplan/core/metrics"
	"github.com/kilianp07/rotaplan/core/rangetrack"
	"github.com/kilianp07/rotaplan/core/runlog"
	"github.com/kilianp07/rotaplan/infra/mqtt"
)

// EnvPrefix selects the environment variables overriding file values.
// ROTA_OPTIMIZER__ALGORITHM maps to optimizer.algorithm.
const EnvPrefix = "ROTA_"

type Config struct {
	Inputs    InputsConfig      `json:"inputs"`
	Optimizer OptimizerConfig   `json:"optimizer"`
	Range     rangetrack.Config `json:"range"`
	// Finance holds the financial parameters inline. FinanceFile loads them
	// from a separate file instead; FinanceDefaults falls back to the built-in
	// collective agreement tables.
	Finance         *finance.Config `json:"finance"`
	FinanceFile     string          `json:"finance_file"`
	FinanceDefaults bool            `json:"finance_defaults"`
	Search          SearchConfig    `json:"search"`
	Output          OutputConfig    `json:"output"`
	History         runlog.Config   `json:"history"`
	Metrics         metrics.Config  `json:"metrics"`
	MQTT            mqtt.Config     `json:"mqtt"`
	Logging         LoggingConfig   `json:"logging"`
}

func newKoanf(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	return k, nil
}

func Load(path string) (*Config, error) {
	k, err := newKoanf(path)
	if err != nil {
		return nil, err
	}
	// Optional environment overrides
	prefix := strings.ToLower(EnvPrefix)
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), prefix)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if cfg.FinanceFile != "" {
		fpath := cfg.FinanceFile
		if !filepath.IsAbs(fpath) {
			fpath = filepath.Join(filepath.Dir(path), fpath)
		}
		fin, err := LoadFinance(fpath)
		if err != nil {
			return nil, fmt.Errorf("finance_file: %w", err)
		}
		cfg.Finance = fin
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFinance reads a financial parameter file. The file holds the fields of
// the finance section at its top level.
func LoadFinance(path string) (*finance.Config, error) {
	k, err := newKoanf(path)
	if err != nil {
		return nil, err
	}
	var fin finance.Config
	if err := k.UnmarshalWithConf("", &fin, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	return &fin, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Optimizer.SetDefaults()
	c.Range.SetDefaults()
	c.Search.SetDefaults()
	c.Output.SetDefaults()
	c.Logging.SetDefaults()
	if c.Finance == nil && c.FinanceDefaults {
		fin := finance.Defaults()
		c.Finance = &fin
	}
	if c.Finance != nil {
		c.Finance.SetDefaults()
	}
	if c.MQTT.Enabled {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section and joins the errors. Financial parameters
// are only checked when present; commands needing them require them.
func (c Config) Validate() error {
	errs := []error{
		c.Inputs.Validate(),
		c.Optimizer.Validate(),
		c.Range.Validate(),
		c.Search.Validate(),
		c.Output.Validate(),
		c.History.Validate(),
		c.Metrics.Validate(),
		c.MQTT.Validate(),
		c.Logging.Validate(),
	}
	if c.Finance != nil {
		if err := c.Finance.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("finance: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Default returns a configuration with every default applied, used when no
// configuration file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}
