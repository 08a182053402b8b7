// Package table assembles extraction results into the published sheet layout
// (date | temperature_c | humidity_pct | lat | lng) and writes it out.
package table

import (
	"strconv"
	"sync"
	"time"

	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
)

const DateLayout = "2006-01-02"

// Columns is the sheet header, in order.
var Columns = []string{"date", "temperature_c", "humidity_pct", "lat", "lng"}

// Row is one sheet line. Source names the photo it came from and is not a column.
type Row struct {
	Source  string
	Reading extract.Reading
}

// Cells renders the row in column order. Unset values are blank cells.
// Numbers keep their parsed precision.
func (r Row) Cells() []string {
	rd := r.Reading
	return []string{
		formatDate(rd.Date),
		formatFloat(rd.TemperatureC),
		formatFloat(rd.HumidityPct),
		formatFloat(rd.Lat),
		formatFloat(rd.Lng),
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Builder collects rows from concurrent producers. Appends are serialized and
// rows keep arrival order.
type Builder struct {
	mu      sync.Mutex
	rows    []Row
	skipped int
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Append adds the reading of a successful result and reports whether it did.
// Failures are skipped.
func (b *Builder) Append(source string, res extract.Result) bool {
	if !res.OK() {
		b.mu.Lock()
		b.skipped++
		b.mu.Unlock()
		return false
	}
	b.AppendRow(Row{Source: source, Reading: *res.Reading})
	return true
}

// AppendRow adds an already assembled row, e.g. one loaded from storage.
func (b *Builder) AppendRow(r Row) {
	b.mu.Lock()
	b.rows = append(b.rows, r)
	b.mu.Unlock()
}

// Rows returns a copy of the collected rows.
func (b *Builder) Rows() []Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Row, len(b.rows))
	copy(out, b.rows)
	return out
}

func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows)
}

// Skipped counts failures passed to Append.
func (b *Builder) Skipped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.skipped
}
