package table

import (
	"bytes"
	"encoding/csv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
)

func f64(v float64) *float64 { return &v }

func sampleReading() extract.Reading {
	d := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	return extract.Reading{Date: &d, TemperatureC: f64(24.5), HumidityPct: f64(58), Lat: f64(37.5), Lng: f64(127.0)}
}

func TestRowCells(t *testing.T) {
	full := Row{Reading: sampleReading()}
	if got, want := strings.Join(full.Cells(), "|"), "2024-05-01|24.5|58|37.5|127"; got != want {
		t.Errorf("cells = %q, want %q", got, want)
	}

	partial := Row{Reading: extract.Reading{HumidityPct: f64(99.9)}}
	if got, want := strings.Join(partial.Cells(), "|"), "||99.9||"; got != want {
		t.Errorf("cells = %q, want %q", got, want)
	}

	precise := Row{Reading: extract.Reading{Lat: f64(37.566535), Lng: f64(-0.1)}}
	if got := precise.Cells(); got[3] != "37.566535" || got[4] != "-0.1" {
		t.Errorf("coordinates should not be rounded: %v", got)
	}
}

func TestBuilderAppendSkipsFailures(t *testing.T) {
	b := NewBuilder()
	rd := sampleReading()
	if !b.Append("a.jpg", extract.Result{Reading: &rd}) {
		t.Error("success should be appended")
	}
	fail := extract.Result{Failure: &extract.Failure{Reason: extract.ReasonNoNumericTokens}}
	if b.Append("b.jpg", fail) {
		t.Error("failure should be skipped")
	}
	if b.Len() != 1 || b.Skipped() != 1 {
		t.Errorf("len=%d skipped=%d", b.Len(), b.Skipped())
	}
	rows := b.Rows()
	rows[0].Source = "mutated"
	if b.Rows()[0].Source != "a.jpg" {
		t.Error("Rows must return a copy")
	}
}

func TestBuilderConcurrentAppend(t *testing.T) {
	b := NewBuilder()
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := float64(i)
			b.Append("p", extract.Result{Reading: &extract.Reading{HumidityPct: &v}})
		}()
	}
	wg.Wait()
	if b.Len() != 64 {
		t.Errorf("len = %d, want 64", b.Len())
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{{Reading: sampleReading()}, {Reading: extract.Reading{TemperatureC: f64(-3.5)}}}
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	raw := buf.String()
	if !strings.HasPrefix(raw, "\ufeff") {
		t.Fatal("missing BOM")
	}
	recs, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(raw, "\ufeff"))).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	want := [][]string{
		Columns,
		{"2024-05-01", "24.5", "58", "37.5", "127"},
		{"", "-3.5", "", "", ""},
	}
	if len(recs) != len(want) {
		t.Fatalf("got %d records, want %d", len(recs), len(want))
	}
	for i := range want {
		if strings.Join(recs[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("record %d = %v, want %v", i, recs[i], want[i])
		}
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{{Reading: sampleReading()}, {Reading: extract.Reading{HumidityPct: f64(99.9)}}}
	if err := WriteXLSX(&buf, rows); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	if names := f.GetSheetList(); len(names) != 1 || names[0] != SheetName {
		t.Fatalf("sheets = %v", names)
	}
	got, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if strings.Join(got[0], "|") != strings.Join(Columns, "|") {
		t.Errorf("header = %v", got[0])
	}
	if strings.Join(got[1], "|") != "2024-05-01|24.5|58|37.5|127" {
		t.Errorf("row 1 = %v", got[1])
	}
	if v, _ := f.GetCellValue(SheetName, "A3"); v != "" {
		t.Errorf("unset date should be blank, got %q", v)
	}
	if v, _ := f.GetCellValue(SheetName, "C3"); v != "99.9" {
		t.Errorf("humidity = %q, want 99.9", v)
	}
}
