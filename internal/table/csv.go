package table

import (
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM lets spreadsheet apps detect the encoding when opening the file.
const utf8BOM = "\ufeff"

// WriteCSV writes the header and rows as UTF-8 CSV with a leading BOM.
func WriteCSV(w io.Writer, rows []Row) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Cells()); err != nil {
			return fmt.Errorf("csv write: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	return nil
}
