package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"cuipo/internal/catalog/memory"
	"cuipo/internal/catalog/workbook"
	"cuipo/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		CatalogWorkbookPath: filepath.Join(dir, "Tablas Control.xlsx"),
		CatalogSQLitePath:   filepath.Join(dir, "catalog.db"),
	}
}

func TestImportExportStatus(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	var out bytes.Buffer

	if err := run(ctx, []string{"status"}, cfg, nil, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "empty") {
		t.Fatalf("status before import: %q", out.String())
	}

	if err := run(ctx, []string{"import", "-from", "memory"}, cfg, nil, &out); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := run(ctx, []string{"status"}, cfg, nil, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "source:   memory") || !strings.Contains(out.String(), "entities: 9") {
		t.Fatalf("status after import: %q", out.String())
	}

	// Round trip the stored catalog through the workbook layout.
	xlsx := filepath.Join(t.TempDir(), "export.xlsx")
	if err := run(ctx, []string{"export", "-out", xlsx}, cfg, nil, &out); err != nil {
		t.Fatal(err)
	}
	got, err := workbook.New(xlsx).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Entities) != len(memory.Seed().Entities) || len(got.Accounts) != len(memory.Seed().Accounts) {
		t.Fatalf("exported %d entities %d accounts", len(got.Entities), len(got.Accounts))
	}

	// A workbook can then be imported back.
	if err := run(ctx, []string{"import", "-workbook", xlsx}, cfg, nil, &out); err != nil {
		t.Fatal(err)
	}
}

func TestRunRejectsBadInvocations(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	tests := [][]string{
		nil,
		{"frobnicate"},
		{"import", "-from", "sqlite"},
		{"import", "-from", "ftp"},
		{"export"},
		{"import", "-from", "workbook", "-workbook", filepath.Join(t.TempDir(), "missing.xlsx")},
	}
	for _, args := range tests {
		if err := run(ctx, args, cfg, nil, &bytes.Buffer{}); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}
