// Command cuipo-catalog maintains the sqlite copy of the reference catalog.
//
//	cuipo-catalog import [-from workbook|sheets|memory] [-workbook path] [-db path]
//	cuipo-catalog export -out catalog.xlsx [-from sqlite|workbook|sheets|memory]
//	cuipo-catalog status [-db path]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"cuipo/internal/backend"
	"cuipo/internal/catalog"
	"cuipo/internal/catalog/workbook"
	"cuipo/internal/cli"
	"cuipo/internal/config"
	"cuipo/internal/log"
	"cuipo/internal/storage"
)

const usage = `usage: cuipo-catalog <import|export|status> [flags]`

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentCatalog)
	if err := run(context.Background(), os.Args[1:], cfg, logger, os.Stdout); err != nil {
		logger.Error("Catalog command failed", log.FieldError, err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, cfg *config.Config, logger *log.Logger, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	logger = log.OrDiscard(logger)
	switch args[0] {
	case "import":
		return runImport(ctx, args[1:], cfg, logger)
	case "export":
		return runExport(ctx, args[1:], cfg, logger)
	case "status":
		return runStatus(ctx, args[1:], cfg, logger, out)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

// sourceFlags binds the flags selecting a catalog backend over cfg's values.
func sourceFlags(fs *flag.FlagSet, cfg *config.Config, defaultFrom string) *backend.Config {
	bc := &backend.Config{
		WorkbookPath:        cfg.CatalogWorkbookPath,
		SQLiteDBPath:        cfg.CatalogSQLitePath,
		GoogleSpreadsheetID: cfg.GoogleSpreadsheetID,
	}
	types := make([]string, 0, 4)
	for _, t := range backend.GetBackendTypes() {
		types = append(types, t.String())
	}
	fs.Func("from", "catalog source: "+strings.Join(types, "|")+" (default "+defaultFrom+")", func(s string) error {
		bc.Type = backend.BackendType(s)
		if !bc.Type.IsValid() {
			return fmt.Errorf("unknown source %q", s)
		}
		return nil
	})
	bc.Type = backend.BackendType(defaultFrom)
	fs.StringVar(&bc.WorkbookPath, "workbook", bc.WorkbookPath, "reference workbook path")
	fs.StringVar(&bc.SQLiteDBPath, "db", bc.SQLiteDBPath, "sqlite catalog path")
	fs.StringVar(&bc.GoogleSpreadsheetID, "spreadsheet", bc.GoogleSpreadsheetID, "Google spreadsheet ID")
	return bc
}

func loadTables(ctx context.Context, bc backend.Config, logger *log.Logger) (catalog.Tables, error) {
	if err := bc.Validate(); err != nil {
		return catalog.Tables{}, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		return catalog.Tables{}, err
	}
	if res.Cleanup != nil {
		defer res.Cleanup()
	}
	cat, err := catalog.Load(ctx, res.Source)
	if err != nil {
		return catalog.Tables{}, err
	}
	return cat.Tables(), nil
}

func runImport(ctx context.Context, args []string, cfg *config.Config, logger *log.Logger) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	bc := sourceFlags(fs, cfg, string(backend.WorkbookBackend))
	if err := fs.Parse(args); err != nil {
		return err
	}
	if bc.Type == backend.SQLiteBackend {
		return errors.New("import: source and destination are both sqlite")
	}

	tables, err := loadTables(ctx, *bc, logger)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	repo, err := storage.NewSQLiteRepository(bc.SQLiteDBPath, logger)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer repo.Close()

	source := bc.Type.String()
	switch bc.Type {
	case backend.WorkbookBackend:
		source += ":" + bc.WorkbookPath
	case backend.SheetsBackend:
		source += ":" + bc.GoogleSpreadsheetID
	}
	return repo.Save(ctx, source, tables)
}

func runExport(ctx context.Context, args []string, cfg *config.Config, logger *log.Logger) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	bc := sourceFlags(fs, cfg, string(backend.SQLiteBackend))
	outPath := fs.String("out", "", "destination .xlsx path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outPath == "" {
		return errors.New("export: -out is required")
	}

	tables, err := loadTables(ctx, *bc, logger)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	f, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := workbook.Write(f, tables); err != nil {
		f.Close()
		return fmt.Errorf("export: %w", err)
	}
	logger.Info("Catalog exported",
		log.FieldOperation, log.OpExport,
		log.FieldBackend, bc.Type.String(),
		"path", *outPath)
	return f.Close()
}

func runStatus(ctx context.Context, args []string, cfg *config.Config, logger *log.Logger, out io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.CatalogSQLitePath, "sqlite catalog path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	repo, err := storage.NewSQLiteRepository(*dbPath, logger)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	defer repo.Close()

	imp, err := repo.LatestImport(ctx)
	if errors.Is(err, storage.ErrEmptyCatalog) {
		fmt.Fprintln(out, "catalog store is empty; run `cuipo-catalog import`")
		return nil
	}
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	fmt.Fprintf(out, "source:   %s\nentities: %d\nimported: %s\n",
		imp.Source, imp.Entities, imp.ImportedAt.Format("2006-01-02 15:04:05"))
	return nil
}
