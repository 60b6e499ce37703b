package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Entity levels.
const (
	Municipality Level = "municipio"
	Governorate  Level = "gobernacion"
)

type (
	Level string

	// Entity is a territorial entity from the reference catalog.
	Entity struct {
		Code       string
		Name       string
		Department string
		Population Amount
		Category   string
		Level      Level
	}

	// Period maps an API-facing period code (YYYYMMDD) to its UI label.
	Period struct {
		Code  string
		Label string
	}

	// Account is a node of the budget classification taxonomy.
	Account struct {
		Code string // dotted hierarchical code, e.g. "1.1.01.02.104"
		Name string
	}
)

var (
	ErrEmptyCode   = errors.New("empty code")
	ErrEmptyName   = errors.New("empty name")
	ErrEmptyLabel  = errors.New("empty label")
	ErrInvalidDate = errors.New("invalid period date")
)

// PeriodLayout is the date layout of upstream period codes.
const PeriodLayout = "20060102"

func (e Entity) Validate() error {
	if strings.TrimSpace(e.Code) == "" {
		return ErrEmptyCode
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("entity %s: %w", e.Code, ErrEmptyName)
	}
	return nil
}

func (p Period) Validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return ErrEmptyCode
	}
	if strings.TrimSpace(p.Label) == "" {
		return fmt.Errorf("period %s: %w", p.Code, ErrEmptyLabel)
	}
	return nil
}

// Date parses the period code as a calendar date.
func (p Period) Date() (time.Time, error) {
	return ParsePeriodDate(p.Code)
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Code) == "" {
		return ErrEmptyCode
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("account %s: %w", a.Code, ErrEmptyName)
	}
	return nil
}

// IsAncestorOf reports whether a is a strict prefix of other in the dotted hierarchy.
func (a Account) IsAncestorOf(other Account) bool {
	return strings.HasPrefix(other.Code, a.Code+".")
}

// ParsePeriodDate parses a YYYYMMDD period code. Surrounding whitespace and a
// trailing time component (as in "2024-12-01T00:00:00.000") are tolerated.
func ParsePeriodDate(code string) (time.Time, error) {
	s := strings.TrimSpace(code)
	if i := strings.IndexByte(s, 'T'); i > 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "-", "")
	t, err := time.Parse(PeriodLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, code)
	}
	return t, nil
}
