package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edgeflare/ktable/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// keyDelimiter replaces viper's "." so property keys such as
// "bootstrap.servers" are kept whole.
const keyDelimiter = "::"

var ErrTableNotFound = errors.New("table not declared")

// Config holds application-wide configuration
type Config struct {
	Tables  []TableDeclaration `mapstructure:"tables"`
	Metrics MetricsConfig      `mapstructure:"metrics"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// TableDeclaration is a named table: its schema and property bag.
type TableDeclaration struct {
	Name       string             `mapstructure:"name"`
	Schema     []FieldDeclaration `mapstructure:"schema"`
	Properties map[string]any     `mapstructure:"properties"`
}

type FieldDeclaration struct {
	Name     string           `mapstructure:"name"`
	Type     schema.FieldType `mapstructure:"type"`
	Nullable bool             `mapstructure:"nullable"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Addr: ":9100",
	}
}

// Load reads config from file or environment
func Load(cfgFile string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("ktable")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	defaults := DefaultMetricsConfig()
	v.SetDefault("metrics::enabled", defaults.Enabled)
	v.SetDefault("metrics::addr", defaults.Addr)

	v.SetEnvPrefix("KTABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		schema.FieldTypeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Tables))
	for i, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("table %d: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("table %q declared more than once", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// Table returns the declaration named name.
func (c *Config) Table(name string) (*TableDeclaration, error) {
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			return &c.Tables[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
}

// Definition converts the declaration into a schema and a copy of its
// property bag, ready for table.Provider.BuildFromProperties.
func (d *TableDeclaration) Definition() (*schema.Schema, map[string]any, error) {
	fields := make([]schema.Field, len(d.Schema))
	for i, f := range d.Schema {
		if f.Type == schema.TypeUnknown {
			return nil, nil, fmt.Errorf("table %q: field %q has no type", d.Name, f.Name)
		}
		fields[i] = schema.Field{Name: f.Name, Type: f.Type, Nullable: f.Nullable}
	}
	s, err := schema.New(fields...)
	if err != nil {
		return nil, nil, fmt.Errorf("table %q: %w", d.Name, err)
	}

	props := make(map[string]any, len(d.Properties))
	for k, v := range d.Properties {
		props[k] = v
	}
	return s, props, nil
}
