package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Reference catalog
	CatalogBackend      string
	CatalogWorkbookPath string
	CatalogSQLitePath   string
	GoogleSpreadsheetID string

	// Open-data upstream
	SocrataBaseURL  string
	SocrataAppToken string
	RevenueDataset  string
	ExpenseDataset  string
	UpstreamTimeout time.Duration
	CacheTTL        time.Duration
	ScopeCacheTTL   time.Duration
	CacheMaxEntries int
	SessionTTL      time.Duration
	ExpenseAccounts []string
	PriceIndex      map[int]float64
	priceIndexErr   error
}

// DefaultPriceIndex is the consumer price index series used for real-terms
// revenue (base 100).
var DefaultPriceIndex = map[int]float64{
	2021: 111.41,
	2022: 126.03,
	2023: 137.09,
	2024: 144.88,
}

// Backends lists the accepted CATALOG_BACKEND values.
var Backends = []string{"memory", "workbook", "sheets", "sqlite"}

// LoadEnvFile loads a .env file for local development. A missing file is not an error.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

func Load() *Config {
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		CatalogBackend:      getEnv("CATALOG_BACKEND", "memory"),
		CatalogWorkbookPath: getEnv("CATALOG_WORKBOOK_PATH", "./data/Tablas Control.xlsx"),
		CatalogSQLitePath:   getEnv("CATALOG_SQLITE_PATH", "./data/catalog.db"),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),

		SocrataBaseURL:  getEnv("SOCRATA_BASE_URL", "https://www.datos.gov.co/resource"),
		SocrataAppToken: getEnv("SOCRATA_APP_TOKEN", ""),
		RevenueDataset:  getEnv("REVENUE_DATASET", "22ah-ddsj"),
		ExpenseDataset:  getEnv("EXPENSE_DATASET", "4f7r-epif"),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		CacheTTL:        getEnvDuration("CACHE_TTL", 10*time.Minute),
		ScopeCacheTTL:   getEnvDuration("SCOPE_CACHE_TTL", 5*time.Minute),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 256),
		SessionTTL:      getEnvDuration("SESSION_TTL", time.Hour),
		ExpenseAccounts: getEnvList("EXPENSE_ACCOUNTS"),
	}

	cfg.PriceIndex = DefaultPriceIndex
	if raw := os.Getenv("CPI_INDEX"); raw != "" {
		idx, err := ParsePriceIndex(raw)
		if err != nil {
			cfg.priceIndexErr = err
		} else {
			cfg.PriceIndex = idx
		}
	}

	return cfg
}

// ParsePriceIndex parses "2021:111.41,2022:126.03" into a year → index map.
func ParsePriceIndex(raw string) (map[int]float64, error) {
	out := map[int]float64{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		yearStr, valStr, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("CPI entry %q: expected year:index", pair)
		}
		year, err := strconv.Atoi(strings.TrimSpace(yearStr))
		if err != nil {
			return nil, fmt.Errorf("CPI entry %q: invalid year: %w", pair, err)
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(valStr), 64)
		if err != nil || val <= 0 {
			return nil, fmt.Errorf("CPI entry %q: index must be a positive number", pair)
		}
		out[year] = val
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("CPI index is empty")
	}
	return out, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	isValidBackend := false
	for _, backend := range Backends {
		if c.CatalogBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid catalog backend '%s': must be one of %v", c.CatalogBackend, Backends))
	}

	switch c.CatalogBackend {
	case "workbook":
		if c.CatalogWorkbookPath == "" {
			errors = append(errors, "catalog workbook path cannot be empty when using workbook backend")
		} else if _, err := os.Stat(c.CatalogWorkbookPath); err != nil {
			errors = append(errors, fmt.Sprintf("catalog workbook not readable: %s", c.CatalogWorkbookPath))
		}
	case "sqlite":
		if c.CatalogSQLitePath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.CatalogSQLitePath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
	}

	if u, err := url.Parse(c.SocrataBaseURL); err != nil || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid Socrata base URL '%s'", c.SocrataBaseURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid Socrata base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}
	if c.RevenueDataset == "" || c.ExpenseDataset == "" {
		errors = append(errors, "revenue and expense dataset identifiers are required")
	}

	if c.UpstreamTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid upstream timeout %v: must be at least 1 second", c.UpstreamTimeout))
	}
	if c.CacheTTL <= 0 || c.ScopeCacheTTL <= 0 {
		errors = append(errors, "cache TTLs must be positive")
	}
	if c.CacheMaxEntries < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheMaxEntries))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.priceIndexErr != nil {
		errors = append(errors, fmt.Sprintf("invalid CPI_INDEX: %v", c.priceIndexErr))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// PriceIndexYears returns the configured CPI years in ascending order.
func (c *Config) PriceIndexYears() []int {
	years := make([]int, 0, len(c.PriceIndex))
	for y := range c.PriceIndex {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
