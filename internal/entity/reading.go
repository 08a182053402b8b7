package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/gauge-tracker/constants"
	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
)

// Reading is one processed photo as stored and served.
type Reading struct {
	ID          uuid.UUID             `json:"id"`
	Source      string                `json:"source"`
	ContentHash string                `json:"content_hash,omitempty"`
	Date        *time.Time            `json:"date,omitempty"`
	Temperature *float64              `json:"temperature_c,omitempty"`
	Humidity    *float64              `json:"humidity_pct,omitempty"`
	Lat         *float64              `json:"lat,omitempty"`
	Lng         *float64              `json:"lng,omitempty"`
	Status      constants.PhotoStatus `json:"status"`
	NeedsReview bool                  `json:"needs_review"`
	Notes       string                `json:"notes,omitempty"`
	LLMReason   string                `json:"llm_reason,omitempty"`
	Error       string                `json:"error,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// Values returns the sheet fields of the record.
func (r *Reading) Values() extract.Reading {
	return extract.Reading{
		Date:         r.Date,
		TemperatureC: r.Temperature,
		HumidityPct:  r.Humidity,
		Lat:          r.Lat,
		Lng:          r.Lng,
	}
}

// HasRow reports whether the photo produced a sheet row.
func (r *Reading) HasRow() bool {
	return r.Status == constants.PhotoStatusOK || r.Status == constants.PhotoStatusPartial
}
