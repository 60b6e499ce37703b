package backend

import (
	"context"
	"fmt"

	"cuipo/internal/catalog/memory"
	gsheet "cuipo/internal/catalog/sheets"
	"cuipo/internal/catalog/workbook"
	"cuipo/internal/log"
	"cuipo/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	return &DefaultFactory{
		logger: log.OrDiscard(logger).WithComponent(log.ComponentCatalog),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case WorkbookBackend:
		return f.createWorkbookBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite catalog backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Source:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	src, err := gsheet.NewFromEnv(ctx, config.GoogleSpreadsheetID, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets catalog backend")

	return &BackendResult{Source: src}, nil
}

func (f *DefaultFactory) createWorkbookBackend(config Config) (*BackendResult, error) {
	f.logger.Info("Initialized workbook catalog backend", "path", config.WorkbookPath)
	return &BackendResult{Source: workbook.New(config.WorkbookPath)}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory catalog backend")
	return &BackendResult{Source: memory.NewSeeded()}, nil
}
