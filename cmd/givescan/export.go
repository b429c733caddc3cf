package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/givescan/givescan/internal/report"
	"github.com/givescan/givescan/internal/storage"
)

var exportOpts struct {
	store, storePath string
	runID            string
	hasEmail         bool
	since            time.Duration
	limit, offset    int
	format, out      string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render a report from stored results",
	Example: `  givescan export --store sqlite --store-path results.db --format html --out report.html
  givescan export --store json --store-path results.jsonl --run-id 4f7c... --has-email`,
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportOpts.store, "store", "json", "storage backend: json, csv, sqlite, postgres")
	f.StringVar(&exportOpts.storePath, "store-path", "results.jsonl", "backend file path, or DSN for postgres")
	f.StringVar(&exportOpts.runID, "run-id", "", "only this run")
	f.BoolVar(&exportOpts.hasEmail, "has-email", false, "only places with (or, with =false, without) a scraped email")
	f.DurationVar(&exportOpts.since, "since", 0, "only records newer than this (e.g. 24h)")
	f.IntVar(&exportOpts.limit, "limit", 0, "max records (0 = all)")
	f.IntVar(&exportOpts.offset, "offset", 0, "records to skip")
	f.StringVar(&exportOpts.format, "format", "text", "report format: text, json, html")
	f.StringVar(&exportOpts.out, "out", "", "output file (default stdout)")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	backend, err := openBackend(ctx, exportOpts.store, exportOpts.storePath)
	if err != nil {
		return err
	}
	defer backend.Close()

	filter := storage.Filter{
		RunID:  exportOpts.runID,
		Limit:  exportOpts.limit,
		Offset: exportOpts.offset,
	}
	if cmd.Flags().Changed("has-email") {
		filter.HasEmail = &exportOpts.hasEmail
	}
	if exportOpts.since > 0 {
		since := time.Now().Add(-exportOpts.since)
		filter.Since = &since
	}

	records, err := backend.Query(ctx, filter)
	if err != nil {
		return fmt.Errorf("querying %s backend: %w", exportOpts.store, err)
	}

	return renderReport(report.GenerateSummary(records), exportOpts.format, exportOpts.out)
}
