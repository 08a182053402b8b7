package table

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Readings"

// WriteXLSX writes a single-sheet workbook. Numeric cells are stored as numbers,
// dates as YYYY-MM-DD text, unset values are left empty.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// Rename the default sheet instead of adding a second one.
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for n, r := range rows {
		row := n + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		rd := r.Reading
		if rd.Date != nil {
			write(1, rd.Date.Format(DateLayout))
		}
		for col, v := range []*float64{rd.TemperatureC, rd.HumidityPct, rd.Lat, rd.Lng} {
			if v != nil {
				write(col+2, *v)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12) // date
	_ = f.SetColWidth(SheetName, "B", "C", 14) // readings
	_ = f.SetColWidth(SheetName, "D", "E", 12) // coordinates

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
