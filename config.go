package wapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the client settings. Durations use Go duration
// syntax, for example "15s".
//
//	baseURL: https://api.example.com/
//	timeout: 10s
//	allowDuplicates: false
//	maxConcurrency: 8
//	cache:
//	  enabled: true
//	  capacity: 1024
//	parameters:
//	  apikey: secret
type Config struct {
	BaseURL         string            `yaml:"baseURL"`
	Timeout         time.Duration     `yaml:"timeout,omitempty"`
	AllowDuplicates bool              `yaml:"allowDuplicates,omitempty"`
	MaxConcurrency  int               `yaml:"maxConcurrency,omitempty"`
	Cache           CacheConfig       `yaml:"cache,omitempty"`
	Parameters      map[string]string `yaml:"parameters,omitempty"`
	Debug           bool              `yaml:"debug,omitempty"`
}

// CacheConfig holds the response cache settings of a Config.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled,omitempty"`
	Capacity int  `yaml:"capacity,omitempty"`
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML document. Unknown keys are rejected and an empty
// document yields a zero Config.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ClientError{
			Type:      ErrorTypeValidation,
			Message:   "invalid configuration document",
			Cause:     err,
			Timestamp: time.Now(),
		}
	}

	return cfg, nil
}

// Options converts the settings into client options. Zero values keep the
// client defaults.
func (cfg *Config) Options() []Option {
	if cfg == nil {
		return nil
	}

	var options []Option
	if cfg.Timeout > 0 {
		options = append(options, WithTimeout(cfg.Timeout))
	}
	if cfg.AllowDuplicates {
		options = append(options, WithAllowDuplicates(true))
	}
	if cfg.MaxConcurrency > 0 {
		options = append(options, WithMaxConcurrency(cfg.MaxConcurrency))
	}
	if cfg.Cache.Enabled {
		options = append(options, WithCache())
	}
	if cfg.Cache.Capacity > 0 {
		options = append(options, WithCacheCapacity(cfg.Cache.Capacity))
	}

	names := make([]string, 0, len(cfg.Parameters))
	for name := range cfg.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		options = append(options, WithPersistentURLParameter(name, cfg.Parameters[name]))
	}

	if cfg.Debug {
		options = append(options, WithSimpleLogger())
	}

	return options
}

// NewFromConfig builds a client from cfg. Options in extra are applied after
// the ones derived from cfg and therefore win.
func NewFromConfig(cfg *Config, extra ...Option) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return New(cfg.BaseURL, append(cfg.Options(), extra...)...)
}
