// Package llm asks a vision model for the gauge readings the rule engine left unset
// and merges validated answers back into the row.
package llm

import (
	"context"

	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
)

// Refinement is the normalized shape we want from the model.
// Nil means the model did not see a value.
type Refinement struct {
	TemperatureC *float64 `json:"temperature_c"`
	HumidityPct  *float64 `json:"humidity_pct"`
	Reason       string   `json:"reason,omitempty"`
}

type RefineRequest struct {
	Path    string // photo on disk, attached as an image when possible
	OCRText string // recognized tokens joined in scan order

	Current     extract.Reading
	Temperature extract.Range
	Humidity    extract.Range

	// set for HEIC inputs so the converted PNG can be attached
	ArtifactCacheDir string
	ContentHashHex   string
}

// Refiner is the interface the pipeline depends on.
type Refiner interface {
	Refine(ctx context.Context, req RefineRequest) (Refinement, []byte /*rawJSON*/, error)
}
