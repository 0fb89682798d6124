// Package typeregistry resolves fully-qualified type names to loaded Go and
// protobuf types and instantiates types that have a zero-argument constructor.
//
// Go has no class loader, so the type universe is whatever has been registered
// (usually from init functions) plus the protobuf message registry, which every
// generated .pb.go file populates on import.
package typeregistry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// Instantiable is implemented by descriptors that can produce a new instance
// of their type without arguments.
type Instantiable interface {
	Create() (any, error)
}

// Descriptor describes a loaded type.
type Descriptor struct {
	// Name is the fully-qualified name the type is registered under
	Name string
	// Type is the Go type. TypeFor stores the element type of pointer types.
	Type reflect.Type
	// Message is set for protobuf message types
	Message protoreflect.MessageType
	// New is the zero-argument constructor; nil if the type cannot be instantiated
	New func() (any, error)
}

// Create invokes the zero-argument constructor.
func (d *Descriptor) Create() (any, error) {
	if d.New == nil {
		return nil, ErrNotInstantiable
	}
	return d.New()
}

// Registry maps qualified names to descriptors. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	types   map[string]*Descriptor
	aliases map[string]string
	protos  *protoregistry.Types
	logger  *zap.Logger
}

type Option func(*Registry)

// WithProtoTypes sets the protobuf type universe consulted after the explicitly
// registered types. Defaults to protoregistry.GlobalTypes.
func WithProtoTypes(types *protoregistry.Types) Option {
	return func(r *Registry) {
		r.protos = types
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		types:   make(map[string]*Descriptor),
		aliases: make(map[string]string),
		protos:  protoregistry.GlobalTypes,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default is the process-wide registry codec packages seed at init.
var Default = New()

// Register adds a descriptor. Registering the same name twice is an error.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("descriptor name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, d.Name)
	}
	if _, exists := r.aliases[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, d.Name)
	}
	r.types[d.Name] = &d
	return nil
}

// MustRegister is like Register but panics on error. Meant for init functions.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// RegisterAlias makes alias resolve to the already registered type name.
func (r *Registry) RegisterAlias(alias, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[name]; !ok {
		return &TypeNotFoundError{Name: name}
	}
	if _, exists := r.types[alias]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, alias)
	}
	if _, exists := r.aliases[alias]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, alias)
	}
	r.aliases[alias] = name
	return nil
}

// Names returns every registered name and alias, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types)+len(r.aliases))
	for name := range r.types {
		names = append(names, name)
	}
	for alias := range r.aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// FindType resolves a qualified name. Registered types and aliases are
// consulted first, then the protobuf message registry by full name.
func (r *Registry) FindType(name string) (*Descriptor, error) {
	r.mu.RLock()
	target := name
	if aliased, ok := r.aliases[name]; ok {
		target = aliased
	}
	d, ok := r.types[target]
	r.mu.RUnlock()

	if ok {
		r.logger.Debug("Resolved registered type", zap.String("name", name), zap.String("type", d.Name))
		return d, nil
	}

	if r.protos != nil && protoreflect.FullName(name).IsValid() {
		mt, err := r.protos.FindMessageByName(protoreflect.FullName(name))
		if err == nil {
			r.logger.Debug("Resolved protobuf message type", zap.String("name", name))
			return protoDescriptor(mt), nil
		}
	}

	return nil, &TypeNotFoundError{Name: name}
}

// Instantiate creates a new instance through the descriptor's zero-argument
// constructor. Constructor errors and panics are reported as
// TypeInstantiationError carrying the underlying cause.
func (r *Registry) Instantiate(d Instantiable) (instance any, err error) {
	name := nameOf(d)
	defer func() {
		if p := recover(); p != nil {
			instance = nil
			err = &TypeInstantiationError{Name: name, Cause: fmt.Errorf("constructor panicked: %v", p)}
		}
	}()

	if d == nil {
		return nil, &TypeInstantiationError{Name: name, Cause: ErrNotInstantiable}
	}
	instance, err = d.Create()
	if err != nil {
		return nil, &TypeInstantiationError{Name: name, Cause: err}
	}
	if isNil(instance) {
		return nil, &TypeInstantiationError{Name: name, Cause: ErrNilInstance}
	}
	return instance, nil
}

// isNil also catches typed nils such as (*T)(nil) boxed in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func nameOf(d Instantiable) string {
	if desc, ok := d.(*Descriptor); ok && desc != nil {
		return desc.Name
	}
	if d == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", d)
}

func protoDescriptor(mt protoreflect.MessageType) *Descriptor {
	return &Descriptor{
		Name:    string(mt.Descriptor().FullName()),
		Type:    reflect.TypeOf(mt.Zero().Interface()),
		Message: mt,
		New: func() (any, error) {
			return mt.New().Interface(), nil
		},
	}
}
