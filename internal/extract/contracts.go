package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Bounds is a token's pixel box as reported by the recognizer.
type Bounds struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// Token is one recognized piece of text. Tokens arrive in recognition-scan order.
type Token struct {
	Text       string
	Confidence float64 // 0..1
	Box        *Bounds
}

// CaptureMetadata is what the photo itself says about when and where it was taken.
// Any field may be nil.
type CaptureMetadata struct {
	Timestamp *time.Time
	Latitude  *float64
	Longitude *float64
}

// UnitHint is the unit evidence attached to a numeric candidate.
type UnitHint int

const (
	HintUnknown UnitHint = iota
	HintCelsius
	HintPercent
)

func (h UnitHint) String() string {
	switch h {
	case HintCelsius:
		return "CELSIUS"
	case HintPercent:
		return "PERCENT"
	default:
		return "UNKNOWN"
	}
}

// Candidate is a number parsed out of the token stream, not yet assigned to a field.
type Candidate struct {
	Value      float64
	Hint       UnitHint
	Sources    []Token
	Confidence float64

	order int // scan position among candidates
}

// Field names a measured column of the output row.
type Field string

const (
	FieldTemperature Field = "temperature_c"
	FieldHumidity    Field = "humidity_pct"
)

// Reading is the successful row. Nil pointers are unset cells.
type Reading struct {
	Date         *time.Time
	TemperatureC *float64
	HumidityPct  *float64
	Lat          *float64
	Lng          *float64
}

// Complete reports whether both measured fields were resolved.
func (r *Reading) Complete() bool {
	return r != nil && r.TemperatureC != nil && r.HumidityPct != nil
}

// Reason classifies a failed extraction.
type Reason string

const (
	ReasonNoNumericTokens Reason = "NO_NUMERIC_TOKENS"
	// ReasonMetadataMissing is part of the reporting vocabulary only; Extract never returns it.
	ReasonMetadataMissing Reason = "METADATA_MISSING"
)

// Failure is the non-row outcome.
type Failure struct {
	Reason  Reason
	Partial *Reading
}

func (f *Failure) Error() string {
	return "extraction failed: " + string(f.Reason)
}

// NoteKind tags informational notes produced while resolving fields.
type NoteKind string

const (
	NoteOutOfRange NoteKind = "OUT_OF_RANGE"
	NoteAmbiguous  NoteKind = "AMBIGUOUS"
)

// Note records a non-error event such as a discarded or ambiguous value.
type Note struct {
	Field  Field
	Kind   NoteKind
	Values []float64
}

func (n Note) String() string {
	vals := make([]string, len(n.Values))
	for i, v := range n.Values {
		vals[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprintf("%s %s [%s]", n.Field, n.Kind, strings.Join(vals, ", "))
}

// Result is the engine output for one photo: exactly one of Reading or Failure is set.
type Result struct {
	Reading *Reading
	Failure *Failure
	Notes   []Note
}

// OK reports whether the result is the success variant.
func (r Result) OK() bool { return r.Reading != nil }
