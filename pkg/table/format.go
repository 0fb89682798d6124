package table

import (
	"fmt"
	"strings"
)

// PayloadFormat is the wire encoding of message values.
type PayloadFormat int

// The set is closed; adding a format is a code change.
const (
	FormatCSV PayloadFormat = iota
	FormatAvro
	FormatJSON
	FormatProto
	FormatThrift
)

var formatNames = [...]string{
	FormatCSV:    "CSV",
	FormatAvro:   "AVRO",
	FormatJSON:   "JSON",
	FormatProto:  "PROTO",
	FormatThrift: "THRIFT",
}

func (f PayloadFormat) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("PayloadFormat(%d)", int(f))
}

// Formats returns every payload format in declaration order.
func Formats() []PayloadFormat {
	return []PayloadFormat{FormatCSV, FormatAvro, FormatJSON, FormatProto, FormatThrift}
}

// ParseFormat resolves a format name in any letter casing.
func ParseFormat(name string) (PayloadFormat, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range formatNames {
		if n == upper {
			return PayloadFormat(i), nil
		}
	}
	return 0, &UnknownFormatError{Name: name}
}

// MarshalText lets formats appear as names in JSON and YAML output.
func (f PayloadFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *PayloadFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
