// Package codec defines the contract between table payload formats and the
// readers/writers that move message bytes on and off a broker.
//
// Every Codec must be safe for concurrent use: readers invoke Decode from one
// goroutine per partition without additional synchronization. Implementations
// either hold no mutable state or confine scratch state to a single call.
package codec

import (
	"errors"
	"fmt"

	"github.com/edgeflare/ktable/pkg/schema"
)

var (
	ErrDecode = errors.New("failed to decode payload")
	ErrEncode = errors.New("failed to encode row")
)

// Codec translates between a message payload and a schema row.
type Codec interface {
	// Encode validates row against the codec schema and serializes it.
	Encode(row schema.Row) ([]byte, error)
	// Decode parses a payload into a row with canonical field values.
	Decode(data []byte) (schema.Row, error)
	// Schema returns the schema the codec is bound to.
	Schema() *schema.Schema
}

// MismatchError reports a schema field that a record type bound to a codec
// cannot represent.
type MismatchError struct {
	Field  string
	Reason string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// DecodeError wraps a payload parsing failure.
func DecodeError(format string, err error) error {
	return fmt.Errorf("%w as %s: %w", ErrDecode, format, err)
}

// EncodeError wraps a serialization failure.
func EncodeError(format string, err error) error {
	return fmt.Errorf("%w as %s: %w", ErrEncode, format, err)
}
