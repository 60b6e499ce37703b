// Package upstream defines the ports for reading budget records from the
// open-data provider.
package upstream

import (
	"context"
	"errors"
	"fmt"

	"cuipo/internal/core"
)

// Operation names, also used as cache key prefixes.
const (
	OpRevenue = "revenue"
	OpExpense = "expense"
	OpScope   = "scope"
)

// Ports for outbound adapters.
type (
	RevenueFetcher interface {
		// FetchRevenue returns revenue rows for an entity. An empty periodCode
		// fetches every period.
		FetchRevenue(ctx context.Context, entityCode, periodCode string) ([]core.RawRecord, error)
	}

	ExpenseFetcher interface {
		FetchExpense(ctx context.Context, entityCode, periodCode string) ([]core.RawRecord, error)
	}

	// ScopeFetcher returns revenue rows of every entity for one account scope.
	ScopeFetcher interface {
		FetchByScope(ctx context.Context, periodCode, scopeCode string) ([]core.RawRecord, error)
	}

	Fetcher interface {
		RevenueFetcher
		ExpenseFetcher
		ScopeFetcher
	}
)

// FetchError reports a failed upstream call: transport error, timeout or a
// non-2xx response. A successful response with zero rows is not a FetchError.
type FetchError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s fetch failed: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s fetch failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err carries a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
