package ktable

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/edgeflare/ktable/pkg/kafka"
	"github.com/edgeflare/ktable/pkg/schema"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newProduceCmd() *cobra.Command {
	var (
		keyField  string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "produce <table>",
		Short: "Publish JSON objects read from stdin as table rows",
		Long: `Read one JSON object per line from stdin, convert it to a row of the table
schema, encode it with the table's payload format and publish it to the table's
first topic.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := buildTable(args[0])
			if err != nil {
				return err
			}

			client, err := kafka.NewClientForTable(t, logger)
			if err != nil {
				return err
			}
			var opts []kafka.WriterOption
			if keyField != "" {
				opts = append(opts, kafka.WithKeyField(keyField))
			}
			writer, err := client.Writer(cmd.Context(), t, opts...)
			if err != nil {
				return err
			}
			defer writer.Close()

			var produced int
			err = readRows(cmd.InOrStdin(), t.Schema(), batchSize, func(rows []schema.Row) error {
				if err := writer.Write(cmd.Context(), rows...); err != nil {
					return err
				}
				produced += len(rows)
				return nil
			})
			logger.Info("Production finished", zap.String("topic", writer.Topic()), zap.Int("produced", produced))
			return err
		},
	}

	cmd.Flags().StringVar(&keyField, "key", "", "schema field used as the message key")
	cmd.Flags().IntVar(&batchSize, "batch", 100, "rows published per request")
	return cmd
}

// readRows parses JSON lines from r into rows of s and hands them to fn in
// batches of at most size. Blank lines are skipped.
func readRows(r io.Reader, s *schema.Schema, size int, fn func([]schema.Row) error) error {
	if size < 1 {
		size = 1
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	batch := make([]schema.Row, 0, size)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var obj map[string]any
		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			return fmt.Errorf("line %d: failed to parse JSON: %w", line, err)
		}
		row, err := s.RowFromMap(obj)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		batch = append(batch, row)
		if len(batch) == size {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]schema.Row, 0, size)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
