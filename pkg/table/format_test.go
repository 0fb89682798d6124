package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormatAnyCasing(t *testing.T) {
	for _, f := range Formats() {
		canonical := f.String()
		lower := strings.ToLower(canonical)
		spellings := []string{
			canonical,
			lower,
			strings.ToUpper(lower[:1]) + lower[1:],
			" " + lower + " ",
		}
		for _, name := range spellings {
			got, err := ParseFormat(name)
			require.NoError(t, err, name)
			assert.Equal(t, f, got, name)
		}
	}

	got, err := ParseFormat("tHrIfT")
	require.NoError(t, err)
	assert.Equal(t, FormatThrift, got)
}

func TestParseFormatUnknown(t *testing.T) {
	for _, name := range []string{"xml", "", "csv2", "parquet"} {
		_, err := ParseFormat(name)
		assert.ErrorIs(t, err, ErrUnknownFormat)

		var unknown *UnknownFormatError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, name, unknown.Name)
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, []string{"CSV", "AVRO", "JSON", "PROTO", "THRIFT"}, func() []string {
		var names []string
		for _, f := range Formats() {
			names = append(names, f.String())
		}
		return names
	}())
	assert.Equal(t, "PayloadFormat(42)", PayloadFormat(42).String())
}

func TestFormatText(t *testing.T) {
	b, err := FormatProto.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "PROTO", string(b))

	var f PayloadFormat
	require.NoError(t, f.UnmarshalText([]byte("avro")))
	assert.Equal(t, FormatAvro, f)
	assert.ErrorIs(t, f.UnmarshalText([]byte("xml")), ErrUnknownFormat)
}
