// Package table builds Kafka-backed tables from a schema and a string-keyed
// property bag. A Table binds the schema to broker endpoints, topics and a
// payload codec; the codec is what readers and writers use to move rows on
// and off the wire.
//
// Construction is one-shot and synchronous:
//
//	provider := table.NewProvider(table.WithLogger(logger))
//	t, err := provider.BuildFromProperties(s, map[string]any{
//		"bootstrap.servers": "localhost:9092",
//		"topics":            []string{"orders"},
//		"format":            "json",
//	})
//
// Errors are typed: MissingPropertyError, UnknownFormatError,
// TypeNotFoundError, TypeInstantiationError, UnsupportedFormatError and
// SchemaMismatchError all match a package sentinel through errors.Is.
package table

import (
	"github.com/edgeflare/ktable/pkg/codec"
	"github.com/edgeflare/ktable/pkg/schema"
)

// Table is an immutable, fully constructed table. It is safe for concurrent
// use, as is its codec.
type Table struct {
	schema *schema.Schema
	config TableConfig
	codec  codec.Codec
}

func (t *Table) Schema() *schema.Schema { return t.schema }

func (t *Table) BootstrapServers() string { return t.config.BootstrapServers }

// Brokers returns the bootstrap servers as a list.
func (t *Table) Brokers() []string { return t.config.Brokers() }

// Topics returns a copy of the topic list.
func (t *Table) Topics() []string { return append([]string(nil), t.config.Topics...) }

func (t *Table) Format() PayloadFormat { return t.config.Format }

// Params returns a copy of the format-specific parameters.
func (t *Table) Params() map[string]any {
	return t.config.clone().Params
}

// Config returns a copy of the configuration the table was built from.
func (t *Table) Config() TableConfig { return t.config.clone() }

func (t *Table) Codec() codec.Codec { return t.codec }
