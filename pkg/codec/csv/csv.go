// Package csv implements the CSV payload format: each message is a single
// delimited line whose columns follow schema field order.
//
// Null is written as a token, \N unless configured, so a nullable STRING
// keeps "" and null apart. Empty columns of other nullable types also read
// as null.
package csv

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/edgeflare/ktable/pkg/codec"
	"github.com/edgeflare/ktable/pkg/schema"
)

const (
	formatName = "csv"

	DefaultNullToken = `\N`
)

var (
	ErrInvalidDelimiter = errors.New("invalid csv delimiter")
	ErrInvalidNullToken = errors.New("invalid csv null token")

	errNullTokenValue = errors.New("value equals the null token")
)

// Codec is safe for concurrent use; readers and writers are created per call.
type Codec struct {
	schema    *schema.Schema
	delimiter rune
	null      string
}

type Option func(*Codec)

// WithDelimiter sets the column separator. Defaults to ','.
func WithDelimiter(r rune) Option {
	return func(c *Codec) {
		c.delimiter = r
	}
}

// WithNullToken sets the column text written for null. It must be non-empty.
func WithNullToken(token string) Option {
	return func(c *Codec) {
		c.null = token
	}
}

var _ codec.Codec = (*Codec)(nil)

func New(s *schema.Schema, opts ...Option) (*Codec, error) {
	c := &Codec{schema: s, delimiter: ',', null: DefaultNullToken}
	for _, opt := range opts {
		opt(c)
	}
	if c.delimiter == '"' || c.delimiter == '\r' || c.delimiter == '\n' ||
		!utf8.ValidRune(c.delimiter) || c.delimiter == utf8.RuneError {
		return nil, fmt.Errorf("%w %q", ErrInvalidDelimiter, c.delimiter)
	}
	if c.null == "" || strings.ContainsAny(c.null, "\r\n\"") || strings.ContainsRune(c.null, c.delimiter) {
		return nil, fmt.Errorf("%w %q", ErrInvalidNullToken, c.null)
	}
	return c, nil
}

// ParseDelimiter validates a single-character delimiter property value.
func ParseDelimiter(s string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("csv delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func (c *Codec) Schema() *schema.Schema { return c.schema }

func (c *Codec) Encode(row schema.Row) ([]byte, error) {
	if err := c.schema.Validate(row); err != nil {
		return nil, codec.EncodeError(formatName, err)
	}

	record := make([]string, len(row))
	for i, v := range row {
		f := c.schema.Field(i)
		if v == nil {
			record[i] = c.null
			continue
		}
		record[i] = formatValue(f.Type, v)
		if f.Nullable && record[i] == c.null {
			return nil, codec.EncodeError(formatName, fmt.Errorf("field %q: %w %q", f.Name, errNullTokenValue, c.null))
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = c.delimiter
	if err := w.Write(record); err != nil {
		return nil, codec.EncodeError(formatName, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, codec.EncodeError(formatName, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\r\n"), nil
}

func (c *Codec) Decode(data []byte) (schema.Row, error) {
	record, err := c.read(data)
	if err != nil {
		return nil, codec.DecodeError(formatName, err)
	}

	row := make(schema.Row, len(record))
	for i, raw := range record {
		f := c.schema.Field(i)
		if f.Nullable && c.isNull(f.Type, raw) {
			continue
		}
		v, err := f.Coerce(parseValue(f.Type, raw))
		if err != nil {
			return nil, codec.DecodeError(formatName, err)
		}
		row[i] = v
	}
	return row, nil
}

// read parses the single record in data. A lone empty column encodes to an
// empty payload, which the csv reader would report as EOF.
func (c *Codec) read(data []byte) ([]string, error) {
	if c.schema.Len() == 1 && len(bytes.TrimRight(data, "\r\n")) == 0 {
		return []string{""}, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = c.delimiter
	r.FieldsPerRecord = c.schema.Len()
	r.ReuseRecord = true
	return r.Read()
}

func (c *Codec) isNull(t schema.FieldType, raw string) bool {
	if raw == c.null {
		return true
	}
	return raw == "" && t != schema.TypeString && t != schema.TypeBytes
}

func formatValue(t schema.FieldType, v any) string {
	switch t {
	case schema.TypeFloat:
		return strconv.FormatFloat(float64(v.(float32)), 'g', -1, 32)
	case schema.TypeDouble:
		return strconv.FormatFloat(v.(float64), 'g', -1, 64)
	case schema.TypeBytes:
		return base64.StdEncoding.EncodeToString(v.([]byte))
	case schema.TypeTimestamp:
		return v.(time.Time).UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

// parseValue keeps raw text for Field.Coerce, except for FLOAT where parsing
// at 32-bit precision avoids a lossy float64 round trip.
func parseValue(t schema.FieldType, raw string) any {
	if t == schema.TypeFloat {
		if f, err := strconv.ParseFloat(raw, 32); err == nil {
			return float32(f)
		}
	}
	return raw
}
