package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/insightdelivered/releve-parser/internal/api"
	"github.com/insightdelivered/releve-parser/internal/batch"
	"github.com/insightdelivered/releve-parser/internal/config"
	"github.com/insightdelivered/releve-parser/internal/database"
	"github.com/insightdelivered/releve-parser/internal/extractor"
	"github.com/insightdelivered/releve-parser/internal/logger"
	"github.com/insightdelivered/releve-parser/internal/models"
	"github.com/insightdelivered/releve-parser/internal/parser"
	"github.com/insightdelivered/releve-parser/internal/writer"
)

const version = "1.0.0"

type options struct {
	output        string
	format        string
	includeHeader bool
}

func main() {
	// CLI flags
	configFlag := flag.String("config", "", "Path to a YAML config file")
	outputFlag := flag.String("output", "", "Output file (one input) or directory (several inputs); defaults to the input path with the format's extension")
	formatFlag := flag.String("format", "csv", "Output format: csv or xlsx")
	headerFlag := flag.Bool("header", true, "Include statement metadata rows in the output")
	dbFlag := flag.String("db", "", "SQLite database to store parsed statements in (overrides database.path)")
	workersFlag := flag.Int("workers", 0, "Number of documents parsed concurrently (overrides batch.workers)")
	logLevelFlag := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
	listFlag := flag.Bool("list", false, "List statements instead of converting: emission dates of the given files, or the statements stored in the database")
	serveFlag := flag.Bool("serve", false, "Run the HTTP API instead of converting files")
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `La Banque Postale statement parser

Extracts the transactions of La Banque Postale account statements (PDF or
pre-extracted text), attributes them to accounts, classifies them as credit
or debit and writes them as CSV or XLSX.

Usage:
  releve-parser [flags] <statement.pdf|statement.txt|dir> [...]
  releve-parser -list [flags] [<statement.pdf|statement.txt|dir> ...]
  releve-parser -serve [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Convert one statement
  releve-parser releve-2023-01.pdf

  # Convert a folder of statements to spreadsheets in out/
  releve-parser -format=xlsx -output=out/ statements/

  # Convert and keep a history in SQLite
  releve-parser -db=releve.db statements/

  # Show the emission date of every statement in a folder
  releve-parser -list statements/

  # Show what the database holds
  releve-parser -list -db=releve.db

  # Serve the HTTP API (JSON logs on stderr)
  releve-parser -serve -addr=:9090

Environment:
  RELEVE_LOG_LEVEL, RELEVE_SERVER_ADDR, RELEVE_BATCH_WORKERS,
  RELEVE_DATABASE_PATH (also read from a .env file)
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("releve-parser v%s\n", version)
		os.Exit(0)
	}

	if *helpFlag || (flag.NArg() == 0 && !*serveFlag && !*listFlag) {
		flag.Usage()
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fatalf("Configuration error: %v\n", err)
	}
	if *dbFlag != "" {
		cfg.Database.Path = *dbFlag
	}
	if *workersFlag > 0 {
		cfg.Batch.Workers = *workersFlag
	}
	if *logLevelFlag != "" {
		cfg.Log.Level = *logLevelFlag
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}

	log := logger.New(cfg.Log.Level)
	if *serveFlag {
		log = logger.NewWithWriter(os.Stderr, cfg.Log.Level)
	}
	p := parser.New(parser.Config{Keywords: cfg.Classifier, Logger: log})

	var db *database.DB
	if cfg.Database.Path != "" {
		db, err = database.Open(cfg.Database.Path)
		if err != nil {
			fatalf("Database error: %v\n", err)
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	if *serveFlag {
		if err := serve(ctx, cfg.Server.Addr, &api.Handler{Parser: p, DB: db, Logger: log}); err != nil {
			log.Error().Err(err).Msg("server stopped")
			stop()
			os.Exit(1)
		}
		return
	}

	if *listFlag && flag.NArg() == 0 {
		if db == nil {
			fatalf("-list needs input files or a database (-db).\n")
		}
		if err := listStored(ctx, os.Stdout, db); err != nil {
			fatalf("Error: %v\n", err)
		}
		return
	}

	paths, err := batch.Collect(flag.Args())
	if err != nil {
		fatalf("Error: %v\n", err)
	}
	if len(paths) == 0 {
		fatalf("No .pdf or .txt statements found.\n")
	}

	if *listFlag {
		listFiles(os.Stdout, paths, extractor.Load)
		return
	}

	opts := options{output: *outputFlag, format: *formatFlag, includeHeader: *headerFlag}
	if _, err := writer.New(opts.format, opts.includeHeader); err != nil {
		fatalf("Error: %v\n", err)
	}

	runner := &batch.Runner{Parser: p, Workers: cfg.Batch.Workers, Logger: log}
	results := runner.Run(ctx, paths)

	failed := 0
	for _, res := range results {
		if err := handleResult(ctx, res, opts, len(results) > 1, db); err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", res.Path, err)
			failed++
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d document(s) failed.\n", failed, len(results))
		stop()
		os.Exit(1)
	}
}

func handleResult(ctx context.Context, res batch.Result, opts options, many bool, db *database.DB) error {
	if res.Err != nil {
		return res.Err
	}
	stmt := res.Statement

	fmt.Printf("Processing: %s\n", res.Path)
	fmt.Printf("  Emission date: %s\n", stmt.EmissionDate.Format(time.DateOnly))
	fmt.Printf("  Found %d account(s), %d transaction(s)\n", len(stmt.Accounts), len(stmt.Transactions))

	if len(stmt.Transactions) == 0 {
		fmt.Println("  Warning: No transactions found. The text layout may not match the expected statement format.")
	}

	outPath := outputPath(res.Path, opts, many)
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	w, err := writer.New(opts.format, opts.includeHeader)
	if err != nil {
		return err
	}
	if err := w.WriteToFile(outPath, stmt); err != nil {
		return fmt.Errorf("%s write failed: %w", strings.ToUpper(strings.TrimPrefix(writer.Extension(opts.format), ".")), err)
	}
	fmt.Printf("  Output: %s\n", outPath)

	if db != nil {
		id, err := db.SaveStatement(ctx, stmt)
		if err != nil {
			return fmt.Errorf("failed to store statement: %w", err)
		}
		log := logger.FromContext(ctx)
		log.Debug().Int64("statement_id", id).Str("document", stmt.Document).Msg("statement stored")
		fmt.Printf("  Stored as statement #%d\n", id)
	}

	printSummary(stmt)
	fmt.Println("  Done.")
	return nil
}

// outputPath places the output next to the input unless -output is given.
// With several inputs -output names a directory.
func outputPath(inputPath string, opts options, many bool) string {
	ext := writer.Extension(opts.format)
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath)) + ext
	switch {
	case opts.output == "":
		return filepath.Join(filepath.Dir(inputPath), base)
	case many || strings.HasSuffix(opts.output, string(os.PathSeparator)):
		return filepath.Join(opts.output, base)
	default:
		return opts.output
	}
}

func printSummary(stmt *models.Statement) {
	for _, acc := range stmt.Accounts {
		fmt.Printf("  Account: %s n°%s\n", acc.Name, acc.ID)
	}
	credit, debit, unknown := stmt.Totals()
	fmt.Printf("  Credits: %s  Debits: %s", credit.StringFixed(2), debit.StringFixed(2))
	if !unknown.IsZero() {
		fmt.Printf("  Unclassified: %s", unknown.StringFixed(2))
	}
	fmt.Println()
}

// listFiles prints the emission date of each document without parsing its
// transactions. Documents that are not statements are listed as such.
func listFiles(w io.Writer, paths []string, load batch.LoadFunc) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tEMISSION DATE")
	for _, path := range paths {
		pages, err := load(path)
		if err != nil {
			fmt.Fprintf(tw, "%s\terror: %v\n", path, err)
			continue
		}
		if date, ok := parser.EmissionDate(pages); ok {
			fmt.Fprintf(tw, "%s\t%s\n", path, date.Format(time.DateOnly))
		} else {
			fmt.Fprintf(tw, "%s\tnot a statement\n", path)
		}
	}
	tw.Flush()
}

func listStored(ctx context.Context, w io.Writer, db *database.DB) error {
	stored, err := db.ListStatements(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOCUMENT\tEMISSION DATE\tTRANSACTIONS")
	for _, s := range stored {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", s.ID, s.Document, s.EmissionDate.Format(time.DateOnly), s.Transactions)
	}
	return tw.Flush()
}

func serve(ctx context.Context, addr string, h *api.Handler) error {
	app := api.NewApp(h)
	log := h.Logger

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("version", version).Msg("listening")
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
