// Package ingest reads campaign dispatch exports into raw records.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"disparos/internal/core"
)

// Required export columns.
const (
	ColCampaignName = "NOME CAMPANHA"
	ColTimestamp    = "DATA/HORA DISPARO"
	ColCampaignID   = "ID CAMPANHA"
)

// Delimiter separates fields in exports and summaries.
const Delimiter = ';'

var requiredColumns = []string{ColCampaignName, ColTimestamp, ColCampaignID}

// InputSchemaError reports required columns missing from the export header.
type InputSchemaError struct {
	Missing []string
}

func (e *InputSchemaError) Error() string {
	return fmt.Sprintf("input schema error: missing required columns %s", strings.Join(e.Missing, ", "))
}

func (e *InputSchemaError) Unwrap() error { return core.ErrInputSchema }

// ReadFile reads a .csv/.txt export or an .xlsx export, chosen by extension.
func ReadFile(path string) ([]core.RawRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open export: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	}
}

// ReadCSV reads a ';'-separated export. Exports that are not valid UTF-8 are
// decoded as Windows-1252, the encoding spreadsheet tools use for Portuguese text.
func ReadCSV(r io.Reader) ([]core.RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		if data, err = charmap.Windows1252.NewDecoder().Bytes(data); err != nil {
			return nil, fmt.Errorf("decode export: %w", err)
		}
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read export row: %w", err)
		}
		rows = append(rows, rec)
	}
	return FromRows(rows)
}

// FromRows maps a header row plus data rows to raw records. Blank rows are skipped.
// Line numbers are 1-based and count the header.
func FromRows(rows [][]string) ([]core.RawRecord, error) {
	if len(rows) == 0 {
		return nil, &InputSchemaError{Missing: append([]string(nil), requiredColumns...)}
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	idx := make(map[string]int, len(requiredColumns))
	var missing []string
	for _, col := range requiredColumns {
		i := indexOf(header, col)
		if i < 0 {
			missing = append(missing, col)
			continue
		}
		idx[col] = i
	}
	if len(missing) > 0 {
		return nil, &InputSchemaError{Missing: missing}
	}

	out := make([]core.RawRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rec := core.RawRecord{
			CampaignName:      cell(row, idx[ColCampaignName]),
			DispatchTimestamp: cell(row, idx[ColTimestamp]),
			CampaignID:        cell(row, idx[ColCampaignID]),
			Line:              n + 2,
		}
		for i, h := range header {
			if h == "" || i == idx[ColCampaignName] || i == idx[ColTimestamp] || i == idx[ColCampaignID] {
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[h] = cell(row, i)
		}
		out = append(out, rec)
	}
	return out, nil
}

func indexOf(header []string, col string) int {
	for i, h := range header {
		if strings.EqualFold(h, col) {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
