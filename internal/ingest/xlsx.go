package ingest

import (
	"fmt"
	"time"

	"github.com/tealeg/xlsx/v2"

	"disparos/internal/core"
)

const excelTimestampLayout = "02/01/2006 15:04:05"

// ReadXLSX reads the first sheet of an .xlsx export.
func ReadXLSX(path string) ([]core.RawRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx export: %w", err)
	}
	if len(f.Sheets) == 0 {
		return nil, &InputSchemaError{Missing: append([]string(nil), requiredColumns...)}
	}
	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = cellText(c, f.Date1904)
		}
		rows = append(rows, cells)
	}
	return FromRows(rows)
}

// cellText renders date cells day-first; the library's default rendering is
// the US short format, which the timestamp parser rejects.
func cellText(c *xlsx.Cell, date1904 bool) string {
	if c.IsTime() {
		if t, err := c.GetTime(date1904); err == nil {
			return t.Round(time.Second).Format(excelTimestampLayout)
		}
	}
	return c.String()
}
