package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/atelierops/api/internal/config"
	"github.com/atelierops/api/internal/db"
	"github.com/atelierops/api/internal/importer"
	"github.com/atelierops/api/internal/metrics"
	"github.com/atelierops/api/internal/rowsource"
	"github.com/atelierops/api/internal/store"
	"github.com/atelierops/api/internal/store/memory"
	"github.com/atelierops/api/internal/store/postgres"
)

type runOptions struct {
	orgID                 uuid.UUID
	file                  string
	sheet                 string
	mappings              []string
	batchSize             int
	maxRows               int
	currency              string
	dryRun                bool
	memory                bool
	duplicateContactCheck bool
	noCollapse            bool
	quiet                 bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import a spreadsheet of orders for one organization",
		Example: `  importer run --org 6f1c7f39-9a40-4d0e-9d5c-3f0a3a0e7b11 --file orders.xlsx \
    --map "Order No=order_number" --map "Client=client_name" --map "Services=services"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "CSV or XLSX file to import (required)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "XLSX worksheet (default: first sheet)")
	cmd.Flags().StringArrayVar(&opts.mappings, "map", nil, `Column mapping "Header=field", repeatable (required)`)
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", importer.DefaultOptions().BatchSize, "Orders per bulk insert")
	cmd.Flags().IntVar(&opts.maxRows, "max-rows", 0, "Reject files with more data rows (default: IMPORT_MAX_ROWS)")
	cmd.Flags().StringVar(&opts.currency, "currency", "", "Currency marker in service text (default: IMPORT_CURRENCY)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Resolve and report without writing")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "Import into an in-memory store instead of DATABASE_URL")
	cmd.Flags().BoolVar(&opts.duplicateContactCheck, "duplicate-contact-check", false, "Skip new clients whose name or phone alone matches an existing client")
	cmd.Flags().BoolVar(&opts.noCollapse, "no-collapse", false, "Do not merge repeated clients and services within the file")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "Only print the result")

	var org string
	cmd.Flags().StringVar(&org, "org", "", "Organization UUID (required)")

	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("map")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(strings.TrimSpace(org))
		if err != nil || id == uuid.Nil {
			return withCode(exitUsage, fmt.Errorf("invalid --org: %q", org))
		}
		opts.orgID = id
		return nil
	}

	return cmd
}

func parseMappings(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		column, field, ok := strings.Cut(entry, "=")
		column = strings.TrimSpace(column)
		if !ok || column == "" || strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("invalid --map %q: want \"Header=field\"", entry)
		}
		out[column] = strings.TrimSpace(field)
	}
	return out, nil
}

func runImport(ctx context.Context, opts runOptions, stdout, stderr io.Writer) error {
	rawMapping, err := parseMappings(opts.mappings)
	if err != nil {
		return withCode(exitUsage, err)
	}
	if _, err := importer.NewMapping(rawMapping); err != nil {
		return withCode(exitValidation, fmt.Errorf("mapping: %w", err))
	}

	cfg, err := config.Load()
	if err != nil {
		return withCode(exitUsage, err)
	}
	if opts.maxRows <= 0 {
		opts.maxRows = cfg.ImportMaxRows
	}
	if opts.currency == "" {
		opts.currency = cfg.ImportCurrency
	}

	table, err := readTable(opts)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ds, closeStore, err := openStore(ctx, cfg, opts.memory)
	if err != nil {
		return err
	}
	defer closeStore()

	progress := importer.NewProgress(logger, "organization_id", opts.orgID.String())
	if !opts.quiet {
		progress.OnEntry(func(e importer.LogEntry) {
			fmt.Fprintf(stderr, "%s %-5s %s\n", e.At.Format("15:04:05"), e.Level, e.Message)
		})
	}

	// First interrupt stops at the next batch boundary; the second one kills ctx.
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			progress.Cancel()
		case <-ctx.Done():
			return
		}
		select {
		case <-sigs:
			stop()
		case <-ctx.Done():
		}
	}()

	importOpts := importer.DefaultOptions()
	importOpts.BatchSize = opts.batchSize
	if cfg.ImportLineBatch > 0 {
		importOpts.LineBatchSize = cfg.ImportLineBatch
	}
	if cfg.ImportPageSize > 0 {
		importOpts.PageSize = cfg.ImportPageSize
	}
	importOpts.Currency = opts.currency
	importOpts.DryRun = opts.dryRun
	importOpts.DuplicateContactCheck = opts.duplicateContactCheck
	importOpts.CollapseBatchDuplicates = !opts.noCollapse

	res, err := importer.New(ds, logger, metrics.NewRegistry()).Run(ctx, importer.Request{
		OrganizationID: opts.orgID,
		Rows:           table.Rows,
		Lines:          table.Lines,
		Mapping:        rawMapping,
		Options:        importOpts,
	}, progress)
	if err != nil {
		return withCode(exitStore, fmt.Errorf("import: %w", err))
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if res.BatchesFailed > 0 {
		return withCode(exitPartial, fmt.Errorf("%d batch(es) failed, see log", res.BatchesFailed))
	}
	return nil
}

func readTable(opts runOptions) (rowsource.Table, error) {
	f, err := os.Open(opts.file)
	if err != nil {
		return rowsource.Table{}, withCode(exitUsage, fmt.Errorf("open %s: %w", opts.file, err))
	}
	defer f.Close()

	table, err := rowsource.Read(filepath.Base(opts.file), f, rowsource.Options{Sheet: opts.sheet, MaxRows: opts.maxRows})
	if err != nil {
		return rowsource.Table{}, withCode(exitValidation, fmt.Errorf("read %s: %w", opts.file, err))
	}
	return table, nil
}

func openStore(ctx context.Context, cfg config.Config, inMemory bool) (store.DataStore, func(), error) {
	if inMemory {
		return memory.New(), func() {}, nil
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, withCode(exitUsage, fmt.Errorf("%w (or pass --memory)", err))
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, withCode(exitStore, err)
	}
	return postgres.New(pool), pool.Close, nil
}
