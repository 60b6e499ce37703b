// Package sheets loads the reference catalog from a Google Sheets copy of the
// "Tablas Control" workbook.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cuipo/internal/catalog"
	"cuipo/internal/log"
)

// Source reads the catalog tabs of one spreadsheet.
type Source struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

var _ catalog.Source = (*Source)(nil)

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID string, logger *log.Logger) *Source {
	return &Source{svc: svc, spreadsheetID: spreadsheetID, logger: log.OrDiscard(logger).WithComponent(log.ComponentCatalog)}
}

// NewFromEnv creates a Sheets-backed source. A token saved by cuipo-oauth in
// GOOGLE_OAUTH_TOKEN_FILE wins; otherwise service account credentials come
// from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS. Extra client options are appended.
func NewFromEnv(ctx context.Context, spreadsheetID string, logger *log.Logger, opts ...goption.ClientOption) (*Source, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID, logger), nil
}

func newSheetsService(ctx context.Context, extra ...goption.ClientOption) (*gsheet.Service, error) {
	if opt, ok, err := oauthOption(ctx); ok {
		if err != nil {
			return nil, err
		}
		return gsheet.NewService(ctx, append([]goption.ClientOption{opt}, extra...)...)
	}

	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	opts := append([]goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
	}, extra...)
	return gsheet.NewService(ctx, opts...)
}

func (s *Source) Load(ctx context.Context) (catalog.Tables, error) {
	if s.svc == nil {
		return catalog.Tables{}, errors.New("sheets service not initialized")
	}
	required := []string{catalog.SheetMunicipalities, catalog.SheetGovernorates, catalog.SheetPeriods, catalog.SheetAccounts}
	resp, err := s.svc.Spreadsheets.Values.BatchGet(s.spreadsheetID).Ranges(required...).Context(ctx).Do()
	if err != nil {
		return catalog.Tables{}, fmt.Errorf("read catalog tabs: %w", err)
	}
	if len(resp.ValueRanges) != len(required) {
		return catalog.Tables{}, fmt.Errorf("read catalog tabs: got %d ranges, want %d", len(resp.ValueRanges), len(required))
	}
	sheets := map[string][][]string{}
	for i, vr := range resp.ValueRanges {
		sheets[required[i]] = toRows(vr.Values)
	}

	// The price index tab is optional.
	if vr, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, catalog.SheetPriceIndex).Context(ctx).Do(); err == nil {
		sheets[catalog.SheetPriceIndex] = toRows(vr.Values)
	} else {
		s.logger.DebugContext(ctx, "No price index tab in spreadsheet", log.FieldError, err.Error())
	}

	t, err := catalog.ParseSheets(sheets)
	if err != nil {
		return catalog.Tables{}, err
	}
	s.logger.InfoContext(ctx, "Catalog loaded from Google Sheets",
		log.FieldBackend, "sheets", log.FieldCount, len(t.Entities))
	return t, nil
}

func toRows(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = toStrings(row)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			// JSON numbers arrive as float64; %v would switch to exponent form.
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}
