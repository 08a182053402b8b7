package llm

import (
	"math"
	"slices"

	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
)

// NeedsRefinement reports whether a successful result still lacks a reading.
// Failures are never refined: NO_NUMERIC_TOKENS keeps no partial data.
func NeedsRefinement(res extract.Result) bool {
	return res.OK() && !res.Reading.Complete()
}

// Merge fills only the fields the engine left unset, and only with in-range values.
// The returned result never aliases res; filled lists the fields taken from ref.
func Merge(res extract.Result, ref Refinement, temp, hum extract.Range) (extract.Result, []extract.Field) {
	if !res.OK() {
		return res, nil
	}
	rd := *res.Reading
	var filled []extract.Field
	if rd.TemperatureC == nil && usable(ref.TemperatureC, temp) {
		v := *ref.TemperatureC
		rd.TemperatureC = &v
		filled = append(filled, extract.FieldTemperature)
	}
	if rd.HumidityPct == nil && usable(ref.HumidityPct, hum) {
		v := *ref.HumidityPct
		rd.HumidityPct = &v
		filled = append(filled, extract.FieldHumidity)
	}
	res.Reading = &rd
	res.Notes = slices.Clone(res.Notes)
	return res, filled
}

func usable(v *float64, r extract.Range) bool {
	return v != nil && !math.IsNaN(*v) && r.Contains(*v)
}
