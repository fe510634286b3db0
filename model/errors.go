package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingData indicates a required input column is absent.
var ErrMissingData = errors.New("missing required data")

// MissingDataError names the table and the required columns it lacks.
type MissingDataError struct {
	Table   string
	Columns []string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("table %q is missing required columns: %s", e.Table, strings.Join(e.Columns, ", "))
}

// Is lets errors.Is match ErrMissingData.
func (e *MissingDataError) Is(target error) bool { return target == ErrMissingData }

// WarningKind classifies non-fatal findings collected during a run.
type WarningKind string

const (
	// WarnImplausibleValue marks a value discarded for being outside physical bounds.
	WarnImplausibleValue WarningKind = "IMPLAUSIBLE_VALUE"
	// WarnUnusableRow marks an input row dropped for lacking a required value.
	WarnUnusableRow WarningKind = "UNUSABLE_ROW"
)

// Warning is a discarded value or row. Processing continues after a warning.
type Warning struct {
	Kind   WarningKind
	SatNo  int
	Field  string
	Value  float64
	Reason string
}
