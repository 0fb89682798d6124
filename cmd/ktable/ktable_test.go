package ktable

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edgeflare/ktable/pkg/kafka"
	"github.com/edgeflare/ktable/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
tables:
  - name: orders
    schema:
      - {name: id, type: int64}
      - {name: customer, type: string}
      - {name: note, type: string, nullable: true}
    properties:
      bootstrap.servers: localhost:9092
      topics: [orders, orders-replay]
      format: json
  - name: legacy
    schema:
      - {name: id, type: int64}
    properties:
      bootstrap.servers: localhost:9092
      topics: legacy
      format: xml
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ktable.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", path, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "JSON")
	assert.Contains(t, out, "orders,orders-replay")

	out, err = execute(t, "validate")
	assert.ErrorContains(t, err, "1 of 2 tables failed validation")
	assert.Contains(t, out, "unknown payload format")

	_, err = execute(t, "validate", "missing")
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "validate")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestReadRows(t *testing.T) {
	s := schema.MustNew(
		schema.Field{Name: "id", Type: schema.TypeInt64},
		schema.Field{Name: "note", Type: schema.TypeString, Nullable: true},
	)
	input := `{"id": 1, "note": "a"}

{"id": "2"}
{"id": 3, "note": null}
`
	var batches [][]schema.Row
	err := readRows(strings.NewReader(input), s, 2, func(rows []schema.Row) error {
		batches = append(batches, rows)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]schema.Row{
		{{int64(1), "a"}, {int64(2), nil}},
		{{int64(3), nil}},
	}, batches)

	err = readRows(strings.NewReader("{\"id\": 1}\n{oops\n"), s, 10, func([]schema.Row) error { return nil })
	assert.ErrorContains(t, err, "line 2")

	errStop := errors.New("stop")
	err = readRows(strings.NewReader(`{"id": 1}`), s, 1, func([]schema.Row) error { return errStop })
	assert.ErrorIs(t, err, errStop)
}

func TestRowPrinter(t *testing.T) {
	s := schema.MustNew(
		schema.Field{Name: "id", Type: schema.TypeInt64},
		schema.Field{Name: "at", Type: schema.TypeTimestamp},
	)
	var out bytes.Buffer
	p := &rowPrinter{w: &out, schema: s}

	at := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, p.print(kafka.Message{Topic: "orders", Partition: 1, Offset: 9, Row: schema.Row{int64(5), at}}))
	assert.JSONEq(t, `{"topic":"orders","partition":1,"offset":9,"row":{"id":5,"at":"2024-06-01T10:30:00Z"}}`, out.String())
}
