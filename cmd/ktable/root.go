package ktable

import (
	"fmt"
	"os"

	"github.com/edgeflare/ktable/pkg/config"
	"github.com/edgeflare/ktable/pkg/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
	logger   = zap.NewNop()
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ktable",
		Short: "ktable reads and writes typed rows on Kafka topics",
		Long: `ktable builds Kafka-backed tables from declared schemas and properties,
and produces or consumes rows encoded as CSV, Avro, JSON, Protobuf or Thrift.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			versionFlag, _ := cmd.Flags().GetBool("version")
			if versionFlag {
				fmt.Fprintln(cmd.OutOrStdout(), config.Version)
				return nil
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/ktable.yaml)")
	cmd.PersistentFlags().StringVarP(&logLevel, "log-level", "L", "info", "log at this level (debug, info, warn, error)")
	cmd.Flags().BoolP("version", "v", false, "Print the version number")

	cmd.AddCommand(newValidateCmd(), newConsumeCmd(), newProduceCmd())
	return cmd
}

func Main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func initialize() error {
	level, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	zcfg.OutputPaths = []string{"stderr"}
	l, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger = l

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.File != "" {
		logger.Debug("Using config file", zap.String("file", cfg.File))
	}
	return nil
}

// buildTable builds the declared table name.
func buildTable(name string) (*table.Table, error) {
	decl, err := cfg.Table(name)
	if err != nil {
		return nil, err
	}
	s, props, err := decl.Definition()
	if err != nil {
		return nil, err
	}
	provider := table.NewProvider(table.WithLogger(logger.With(zap.String("table", name))))
	t, err := provider.BuildFromProperties(s, props)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", name, err)
	}
	return t, nil
}
