package table

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/edgeflare/ktable/pkg/codec"
	"github.com/edgeflare/ktable/pkg/codec/avro"
	"github.com/edgeflare/ktable/pkg/codec/csv"
	jsoncodec "github.com/edgeflare/ktable/pkg/codec/json"
	protocodec "github.com/edgeflare/ktable/pkg/codec/proto"
	thriftcodec "github.com/edgeflare/ktable/pkg/codec/thrift"
	"github.com/edgeflare/ktable/pkg/metrics"
	"github.com/edgeflare/ktable/pkg/schema"
	"github.com/edgeflare/ktable/pkg/typeregistry"
	"go.uber.org/zap"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// TableType is the kind of table this provider builds.
const TableType = "kafka"

// TypeResolver finds named types and creates instances of them.
// *typeregistry.Registry implements it.
type TypeResolver interface {
	FindType(name string) (*typeregistry.Descriptor, error)
	Instantiate(d typeregistry.Instantiable) (any, error)
}

// Provider turns table definitions into Tables.
type Provider struct {
	types  TypeResolver
	logger *zap.Logger
}

type Option func(*Provider)

// WithTypeRegistry sets the resolver for protoClass, thriftClass and
// thriftProtocolFactoryClass. Defaults to typeregistry.Default.
func WithTypeRegistry(r TypeResolver) Option {
	return func(p *Provider) {
		p.types = r
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		types:  typeregistry.Default,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) TableType() string { return TableType }

// codecBuilder constructs the codec for one payload format. Required type
// references have been checked by the time it runs.
type codecBuilder func(p *Provider, s *schema.Schema, cfg *TableConfig, ref TypeReference) (codec.Codec, error)

var builders = map[PayloadFormat]codecBuilder{
	FormatCSV:    buildCSV,
	FormatAvro:   buildAvro,
	FormatJSON:   buildJSON,
	FormatProto:  buildProto,
	FormatThrift: buildThrift,
}

// BuildFromProperties parses properties and builds the table they describe.
func (p *Provider) BuildFromProperties(s *schema.Schema, properties map[string]any) (*Table, error) {
	cfg, err := ParseConfig(properties)
	if err != nil {
		p.fail(nil, err)
		return nil, err
	}
	return p.Build(s, cfg)
}

// Build constructs the codec for cfg.Format bound to s. Required parameters
// are checked before any type is resolved, and the first failure is
// returned. A Table is only returned when fully usable.
func (p *Provider) Build(s *schema.Schema, cfg *TableConfig) (*Table, error) {
	if s == nil {
		p.fail(cfg, ErrNilSchema)
		return nil, ErrNilSchema
	}
	if cfg == nil {
		err := errors.New("table config is required")
		p.fail(nil, err)
		return nil, err
	}

	logger := p.logger.With(zap.Stringer("format", cfg.Format), zap.Strings("topics", cfg.Topics))
	logger.Debug("Building table", zap.Int("fields", s.Len()))

	build, ok := builders[cfg.Format]
	if !ok {
		err := &UnsupportedFormatError{Format: cfg.Format}
		p.fail(cfg, err)
		return nil, err
	}

	ref, err := cfg.TypeReference()
	if err != nil {
		p.fail(cfg, err)
		return nil, err
	}

	c, err := build(p, s, cfg, ref)
	if err != nil {
		p.fail(cfg, err)
		return nil, err
	}

	metrics.TableBuilds.WithLabelValues(cfg.Format.String(), metrics.StatusOK).Inc()
	logger.Info("Table built", zap.String("type", ref.Name))

	return &Table{schema: s, config: cfg.clone(), codec: c}, nil
}

func (p *Provider) fail(cfg *TableConfig, err error) {
	format := "unknown"
	if cfg != nil {
		format = cfg.Format.String()
	}
	metrics.TableBuilds.WithLabelValues(format, metrics.StatusFailed).Inc()
	metrics.BuildErrors.WithLabelValues(errorKind(err)).Inc()
	p.logger.Warn("Failed to build table", zap.String("format", format), zap.Error(err))
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingProperty):
		return "missing_property"
	case errors.Is(err, ErrInvalidProperty):
		return "invalid_property"
	case errors.Is(err, ErrUnknownFormat):
		return "unknown_format"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrTypeNotFound):
		return "type_not_found"
	case errors.Is(err, ErrTypeInstantiation):
		return "type_instantiation"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	}
	return "other"
}

func (p *Provider) findType(name string) (*typeregistry.Descriptor, error) {
	d, err := p.types.FindType(name)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Resolved type", zap.String("type", name), zap.String("resolved", d.Name))
	return d, nil
}

func buildCSV(_ *Provider, s *schema.Schema, cfg *TableConfig, _ TypeReference) (codec.Codec, error) {
	var opts []csv.Option
	if v, ok := cfg.StringParam(PropCSVDelimiter); ok {
		r, err := csv.ParseDelimiter(v)
		if err != nil {
			return nil, &InvalidPropertyError{Key: PropCSVDelimiter, Value: v, Cause: err}
		}
		opts = append(opts, csv.WithDelimiter(r))
	}
	null, hasNull := cfg.Param(PropCSVNull)
	if hasNull {
		token, ok := null.(string)
		if !ok {
			return nil, &InvalidPropertyError{Key: PropCSVNull, Value: null, Cause: fmt.Errorf("expected string, got %T", null)}
		}
		opts = append(opts, csv.WithNullToken(token))
	}
	c, err := csv.New(s, opts...)
	if errors.Is(err, csv.ErrInvalidNullToken) {
		return nil, &InvalidPropertyError{Key: PropCSVNull, Value: null, Cause: err}
	}
	if err != nil {
		v, _ := cfg.Param(PropCSVDelimiter)
		return nil, &InvalidPropertyError{Key: PropCSVDelimiter, Value: v, Cause: err}
	}
	return c, nil
}

func buildAvro(_ *Provider, s *schema.Schema, cfg *TableConfig, _ TypeReference) (codec.Codec, error) {
	var opts []avro.Option
	if v, ok := cfg.StringParam(PropAvroName); ok {
		opts = append(opts, avro.WithRecordName(v))
	}
	if v, ok := cfg.StringParam(PropAvroNamespace); ok {
		opts = append(opts, avro.WithNamespace(v))
	}
	c, err := avro.New(s, opts...)
	if err != nil {
		return nil, mismatch(FormatAvro, err)
	}
	return c, nil
}

func buildJSON(_ *Provider, s *schema.Schema, cfg *TableConfig, _ TypeReference) (codec.Codec, error) {
	strict, err := cfg.BoolParam(PropJSONStrict)
	if err != nil {
		return nil, err
	}
	var opts []jsoncodec.Option
	if strict {
		opts = append(opts, jsoncodec.WithStrict())
	}
	c, err := jsoncodec.New(s, opts...)
	if err != nil {
		return nil, mismatch(FormatJSON, err)
	}
	return c, nil
}

func buildProto(p *Provider, s *schema.Schema, _ *TableConfig, ref TypeReference) (codec.Codec, error) {
	d, err := p.findType(ref.Name)
	if err != nil {
		return nil, err
	}

	mt := d.Message
	if mt == nil {
		// a generated message registered by Go type rather than by proto name
		inst, err := p.types.Instantiate(d)
		if err != nil {
			return nil, err
		}
		pm, ok := inst.(protoreflect.ProtoMessage)
		if !ok {
			return nil, &TypeInstantiationError{Name: d.Name, Cause: ErrNotProtoMessage}
		}
		mt = pm.ProtoReflect().Type()
	}

	c, err := protocodec.New(s, mt)
	if err != nil {
		return nil, mismatch(FormatProto, err)
	}
	return c, nil
}

var tstructType = reflect.TypeOf((*thrift.TStruct)(nil)).Elem()

func buildThrift(p *Provider, s *schema.Schema, _ *TableConfig, ref TypeReference) (codec.Codec, error) {
	record, err := p.findType(ref.Name)
	if err != nil {
		return nil, err
	}
	factoryType, err := p.findType(ref.Secondary)
	if err != nil {
		return nil, err
	}

	if !isThriftStruct(record.Type) {
		return nil, &TypeInstantiationError{Name: record.Name, Cause: ErrNotThriftStruct}
	}

	inst, err := p.types.Instantiate(factoryType)
	if err != nil {
		return nil, err
	}
	factory, ok := inst.(thrift.TProtocolFactory)
	if !ok {
		return nil, &TypeInstantiationError{Name: factoryType.Name, Cause: ErrNotProtocolFactory}
	}
	if !thriftcodec.Readable(factory) {
		return nil, &TypeInstantiationError{Name: factoryType.Name, Cause: ErrWriteOnlyProtocol}
	}

	c, err := thriftcodec.New(s, record.Type, factory)
	if err != nil {
		return nil, mismatch(FormatThrift, err)
	}
	return c, nil
}

func isThriftStruct(t reflect.Type) bool {
	if t == nil {
		return false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(tstructType)
}

func mismatch(format PayloadFormat, err error) error {
	var fieldErr *codec.MismatchError
	if errors.As(err, &fieldErr) {
		return &SchemaMismatchError{Format: format, Field: fieldErr.Field, Reason: fieldErr.Reason}
	}
	return &SchemaMismatchError{Format: format, Reason: err.Error()}
}

// String implements fmt.Stringer for logging.
func (r TypeReference) String() string {
	if r.Secondary == "" {
		return r.Name
	}
	return fmt.Sprintf("%s (%s)", r.Name, r.Secondary)
}
