package metrics

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Label values for TableBuilds status and CodecErrors operation.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"

	OperationEncode = "encode"
	OperationDecode = "decode"
)

var (
	TableBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktable_table_builds_total",
			Help: "Total number of table builds by payload format and outcome",
		},
		[]string{"format", "status"},
	)

	BuildErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktable_build_errors_total",
			Help: "Total number of failed table builds by error kind",
		},
		[]string{"kind"},
	)

	CodecErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktable_codec_errors_total",
			Help: "Total number of payload encode and decode failures by format",
		},
		[]string{"format", "operation"},
	)

	MessagesProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktable_messages_produced_total",
			Help: "Total number of rows encoded and published by topic",
		},
		[]string{"topic"},
	)

	MessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ktable_messages_consumed_total",
			Help: "Total number of messages consumed and decoded by topic",
		},
		[]string{"topic"},
	)

	ProduceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ktable_produce_duration_seconds",
			Help:    "Duration of encoding and publishing a row",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)

type PromServerOpts struct {
	Addr              string
	Path              string        // Path for metrics endpoint, defaults to "/metrics"
	ShutdownTimeout   time.Duration // defaults to 5 seconds
	ReadHeaderTimeout time.Duration // defaults to 3 seconds
	Logger            *zap.Logger
}

func defaultPrometheusServerOptions() PromServerOpts {
	return PromServerOpts{
		Addr:              ":9100",
		Path:              "/metrics",
		ShutdownTimeout:   5 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		Logger:            zap.NewNop(),
	}
}

// StartPrometheusServer serves the default registry until ctx is canceled,
// then shuts the server down gracefully. wg is released once the listener
// has returned.
func StartPrometheusServer(ctx context.Context, wg *sync.WaitGroup, opts *PromServerOpts) {
	effective := defaultPrometheusServerOptions()
	if opts != nil {
		effective.Addr = cmp.Or(opts.Addr, effective.Addr)
		effective.Path = cmp.Or(opts.Path, effective.Path)
		effective.ShutdownTimeout = cmp.Or(opts.ShutdownTimeout, effective.ShutdownTimeout)
		effective.ReadHeaderTimeout = cmp.Or(opts.ReadHeaderTimeout, effective.ReadHeaderTimeout)
		if opts.Logger != nil {
			effective.Logger = opts.Logger
		}
	}
	logger := effective.Logger.With(zap.String("addr", effective.Addr))

	mux := http.NewServeMux()
	mux.Handle(effective.Path, promhttp.Handler())
	server := &http.Server{
		Addr:              effective.Addr,
		Handler:           mux,
		ReadHeaderTimeout: effective.ReadHeaderTimeout,
	}

	serverClosed := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(serverClosed)
		logger.Info("Starting Prometheus metrics server", zap.String("path", effective.Path))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
		case <-serverClosed:
			return
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), effective.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error shutting down metrics server", zap.Error(err))
		}

		select {
		case <-serverClosed:
			logger.Info("Metrics server shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Metrics server shutdown timed out")
		}
	}()
}
