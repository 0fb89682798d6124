package table

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
)

// Recognized property keys.
const (
	PropBootstrapServers   = "bootstrap.servers"
	PropTopics             = "topics"
	PropFormat             = "format"
	PropProtoClass         = "protoClass"
	PropThriftClass        = "thriftClass"
	PropThriftFactoryClass = "thriftProtocolFactoryClass"

	PropCSVDelimiter  = "csv.delimiter"
	PropCSVNull       = "csv.null"
	PropAvroName      = "avro.name"
	PropAvroNamespace = "avro.namespace"
	PropJSONStrict    = "json.strict"
	PropKafka         = "kafka"
)

// TableConfig is the typed projection of a table's property bag.
type TableConfig struct {
	BootstrapServers string
	Topics           []string
	Format           PayloadFormat
	// Params holds every property other than bootstrap.servers, topics and
	// format, unexamined.
	Params map[string]any
}

// TypeReference names the external types a PROTO or THRIFT table binds to.
// Secondary is only used by THRIFT, for the protocol factory.
type TypeReference struct {
	Name      string
	Secondary string
}

type rawConfig struct {
	BootstrapServers any            `mapstructure:"bootstrap.servers"`
	Topics           any            `mapstructure:"topics"`
	Format           any            `mapstructure:"format"`
	Params           map[string]any `mapstructure:",remain"`
}

// ParseConfig validates properties and projects them onto a TableConfig.
// Keys match case-insensitively. The format is checked first, so an unknown
// format is reported regardless of the other properties, then
// bootstrap.servers, then topics. properties is not modified.
func ParseConfig(properties map[string]any) (*TableConfig, error) {
	var raw rawConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:    &raw,
		MatchName: strings.EqualFold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := decoder.Decode(properties); err != nil {
		return nil, fmt.Errorf("failed to decode table properties: %w", err)
	}

	cfg := &TableConfig{Format: FormatCSV, Params: make(map[string]any, len(raw.Params))}

	if raw.Format != nil {
		name, ok := raw.Format.(string)
		if !ok {
			name = fmt.Sprint(raw.Format)
		}
		if cfg.Format, err = ParseFormat(name); err != nil {
			return nil, err
		}
	}

	cfg.BootstrapServers = bootstrapServers(raw.BootstrapServers)
	if cfg.BootstrapServers == "" {
		return nil, &MissingPropertyError{Key: PropBootstrapServers}
	}

	if cfg.Topics, err = topics(raw.Topics); err != nil {
		return nil, &InvalidPropertyError{Key: PropTopics, Value: raw.Topics, Cause: err}
	}
	if len(cfg.Topics) == 0 {
		return nil, &MissingPropertyError{Key: PropTopics}
	}

	for k, v := range raw.Params {
		cfg.Params[k] = copyValue(v)
	}
	return cfg, nil
}

// Brokers splits BootstrapServers into host:port entries.
func (c *TableConfig) Brokers() []string {
	return splitList(c.BootstrapServers)
}

// Param looks up a format-specific parameter, ignoring key case.
func (c *TableConfig) Param(key string) (any, bool) {
	if v, ok := c.Params[key]; ok {
		return v, true
	}
	for k, v := range c.Params {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// StringParam returns a scalar parameter as trimmed text. Absent, nil and
// blank values report false.
func (c *TableConfig) StringParam(key string) (string, bool) {
	v, ok := c.Param(key)
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []any, []string, map[string]any:
		return "", false
	default:
		s = fmt.Sprint(x)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// BoolParam parses a boolean parameter given as a bool or as text.
func (c *TableConfig) BoolParam(key string) (bool, error) {
	v, ok := c.Param(key)
	if !ok || v == nil {
		return false, nil
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, &InvalidPropertyError{Key: key, Value: v, Cause: err}
		}
		return b, nil
	}
	return false, &InvalidPropertyError{Key: key, Value: v, Cause: fmt.Errorf("expected boolean, got %T", v)}
}

// TypeReference returns the external type names the configured format
// requires, or a MissingPropertyError for the first one absent.
func (c *TableConfig) TypeReference() (TypeReference, error) {
	var ref TypeReference
	switch c.Format {
	case FormatProto:
		name, ok := c.StringParam(PropProtoClass)
		if !ok {
			return ref, &MissingPropertyError{Key: PropProtoClass}
		}
		ref.Name = name
	case FormatThrift:
		name, ok := c.StringParam(PropThriftClass)
		if !ok {
			return ref, &MissingPropertyError{Key: PropThriftClass}
		}
		factory, ok := c.StringParam(PropThriftFactoryClass)
		if !ok {
			return ref, &MissingPropertyError{Key: PropThriftFactoryClass}
		}
		ref.Name, ref.Secondary = name, factory
	}
	return ref, nil
}

func (c *TableConfig) clone() TableConfig {
	out := TableConfig{
		BootstrapServers: c.BootstrapServers,
		Topics:           append([]string(nil), c.Topics...),
		Format:           c.Format,
		Params:           make(map[string]any, len(c.Params)),
	}
	for k, v := range c.Params {
		out.Params[k] = copyValue(v)
	}
	return out
}

// copyValue copies nested maps and slices so params never alias the
// caller's property bag or another table.
func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = copyValue(e)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(x))
		for k, e := range x {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	case []byte:
		return append([]byte(nil), x...)
	}
	return v
}

func bootstrapServers(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []string:
		return strings.Join(splitList(strings.Join(x, ",")), ",")
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, fmt.Sprint(e))
		}
		return strings.Join(splitList(strings.Join(parts, ",")), ",")
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// topics accepts a list, a JSON array string or a comma separated string.
func topics(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return trimNames(x), nil
	case []any:
		names := make([]string, 0, len(x))
		for _, e := range x {
			if e == nil {
				continue
			}
			names = append(names, fmt.Sprint(e))
		}
		return trimNames(names), nil
	case string:
		s := strings.TrimSpace(x)
		if strings.HasPrefix(s, "[") {
			var list []any
			if err := json.Unmarshal([]byte(s), &list); err != nil {
				return nil, err
			}
			return topics(list)
		}
		return splitList(s), nil
	}
	return nil, fmt.Errorf("expected list of topic names, got %T", v)
}

// trimNames trims each name and drops blank ones.
func trimNames(names []string) []string {
	var out []string
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
