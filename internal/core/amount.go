// Package core provides the domain types shared by the reconciliation pipeline.
//
// This file contains the explicit optional value types used for every field
// read from upstream records: Amount for numeric fields and Text for strings.
// A zero Amount or Text is missing, never zero or empty.
package core

import (
	"math"
	"strconv"
)

type (
	// Amount is an optional COP value.
	Amount struct {
		Value float64
		Valid bool
	}

	// Text is an optional string field.
	Text struct {
		Value string
		Valid bool
	}
)

// Missing is the explicit missing marker for numeric fields.
var Missing = Amount{}

// Some wraps a finite value. Non-finite values become Missing.
func Some(v float64) Amount {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	return Amount{Value: v, Valid: true}
}

// Get returns the value and whether it is present.
func (a Amount) Get() (float64, bool) {
	return a.Value, a.Valid
}

// Or returns the value or def when missing.
func (a Amount) Or(def float64) float64 {
	if !a.Valid {
		return def
	}
	return a.Value
}

// Div divides by d; missing or a zero divisor yields Missing.
func (a Amount) Div(d float64) Amount {
	if !a.Valid || d == 0 {
		return Missing
	}
	return Some(a.Value / d)
}

// Mul multiplies by f; missing stays missing.
func (a Amount) Mul(f float64) Amount {
	if !a.Valid {
		return Missing
	}
	return Some(a.Value * f)
}

// String renders the raw value, or "" when missing.
func (a Amount) String() string {
	if !a.Valid {
		return ""
	}
	return strconv.FormatFloat(a.Value, 'f', -1, 64)
}

// TextOf wraps s; the empty string is treated as missing.
func TextOf(s string) Text {
	if s == "" {
		return Text{}
	}
	return Text{Value: s, Valid: true}
}

func (t Text) Get() (string, bool) {
	return t.Value, t.Valid
}

func (t Text) Or(def string) string {
	if !t.Valid {
		return def
	}
	return t.Value
}
