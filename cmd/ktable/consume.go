package ktable

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/edgeflare/ktable/pkg/kafka"
	"github.com/edgeflare/ktable/pkg/metrics"
	"github.com/edgeflare/ktable/pkg/schema"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newConsumeCmd() *cobra.Command {
	var (
		maxMessages       int64
		strict            bool
		prometheusEnabled bool
		prometheusAddr    string
	)

	cmd := &cobra.Command{
		Use:   "consume <table>",
		Short: "Print decoded rows of a table as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := buildTable(args[0])
			if err != nil {
				return err
			}

			// the metrics server exits once ctx is canceled, so wait after cancel
			var wg sync.WaitGroup
			defer wg.Wait()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			enabled, addr := cfg.Metrics.Enabled, cfg.Metrics.Addr
			if cmd.Flags().Changed("metrics") {
				enabled = prometheusEnabled
			}
			if cmd.Flags().Changed("metrics-addr") {
				addr = prometheusAddr
			}
			if enabled {
				metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{Addr: addr, Logger: logger})
			}

			client, err := kafka.NewClientForTable(t, logger)
			if err != nil {
				return err
			}
			var opts []kafka.ReaderOption
			if strict {
				opts = append(opts, kafka.WithStrictDecoding())
			}
			reader, err := client.Reader(ctx, t, opts...)
			if err != nil {
				return err
			}
			defer reader.Close()

			out := &rowPrinter{w: cmd.OutOrStdout(), schema: t.Schema()}
			var consumed atomic.Int64
			err = reader.Run(ctx, func(ctx context.Context, msg kafka.Message) error {
				if err := out.print(msg); err != nil {
					return err
				}
				if n := consumed.Add(1); maxMessages > 0 && n >= maxMessages {
					cancel()
				}
				return nil
			})

			logger.Info("Consumption finished", zap.Int64("consumed", consumed.Load()))
			return err
		},
	}

	cmd.Flags().Int64VarP(&maxMessages, "max", "n", 0, "stop after this many messages (0 for no limit)")
	cmd.Flags().BoolVar(&strict, "strict", false, "stop on the first undecodable message")
	cmd.Flags().BoolVar(&prometheusEnabled, "metrics", false, "serve Prometheus metrics")
	cmd.Flags().StringVar(&prometheusAddr, "metrics-addr", ":9100", "Prometheus metrics listen address")
	return cmd
}

// rowPrinter writes one JSON object per message. Reader handlers run
// concurrently, so writes are serialized.
type rowPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	schema *schema.Schema
}

type printedMessage struct {
	Topic     string         `json:"topic"`
	Partition int32          `json:"partition"`
	Offset    int64          `json:"offset"`
	Row       map[string]any `json:"row"`
}

func (p *rowPrinter) print(msg kafka.Message) error {
	b, err := json.Marshal(printedMessage{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Row:       p.schema.Map(msg.Row),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = fmt.Fprintln(p.w, string(b))
	return err
}
