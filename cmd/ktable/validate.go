package ktable

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/edgeflare/ktable/pkg/kafka"
	"github.com/edgeflare/ktable/pkg/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newValidateCmd() *cobra.Command {
	var checkTopics bool

	cmd := &cobra.Command{
		Use:   "validate [table...]",
		Short: "Build declared tables and report their formats and topics",
		Long: `Build every declared table, or only the named ones, and print the payload
format and topics of each. With --check-topics the cluster is asked whether the
topics exist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				for _, t := range cfg.Tables {
					names = append(names, t.Name)
				}
			}
			if len(names) == 0 {
				return errors.New("no tables declared")
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tFORMAT\tTOPICS\tSTATUS")

			var failed int
			for _, name := range names {
				t, err := buildTable(name)
				if err != nil {
					failed++
					fmt.Fprintf(w, "%s\t-\t-\t%v\n", name, err)
					continue
				}

				status := "ok"
				if checkTopics {
					status = topicStatus(t, name)
					if status != "ok" {
						failed++
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, t.Format(), strings.Join(t.Topics(), ","), status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d tables failed validation", failed, len(names))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkTopics, "check-topics", false, "verify that every topic exists on the cluster")
	return cmd
}

func topicStatus(t *table.Table, name string) string {
	client, err := kafka.NewClientForTable(t, logger)
	if err != nil {
		return err.Error()
	}
	missing, err := client.MissingTopics(t)
	if err != nil {
		logger.Warn("Failed to list topics", zap.String("table", name), zap.Error(err))
		return err.Error()
	}
	if len(missing) > 0 {
		return "missing topics: " + strings.Join(missing, ",")
	}
	return "ok"
}
