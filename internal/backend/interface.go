package backend

import (
	"context"

	"cuipo/internal/catalog"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the catalog source and optional cleanup function
type BackendResult struct {
	Source  catalog.Source
	Cleanup CleanupFunc
}

// Factory creates catalog sources based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for catalog source creation
type Config struct {
	Type BackendType

	// Workbook specific
	WorkbookPath string

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID string
}

// BackendType represents the type of catalog backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	WorkbookBackend BackendType = "workbook"
	SheetsBackend   BackendType = "sheets"
	SQLiteBackend   BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, WorkbookBackend, SheetsBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
