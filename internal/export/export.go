// Package export writes and reads the ';'-separated summary artifact.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"disparos/internal/core"
)

const delimiter = ';'

// Write renders the header followed by one line per aggregate.
func Write(w io.Writer, records []core.AggregateRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	if err := cw.Write(core.DefaultHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	if err := cw.WriteAll(core.Rows(records)); err != nil {
		return fmt.Errorf("write summary rows: %w", err)
	}
	return nil
}

// WriteFile writes the summary to path, replacing any previous file.
func WriteFile(path string, records []core.AggregateRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary file: %w", err)
	}
	if err := Write(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read parses a summary written by Write. The header must match the summary columns.
func Read(r io.Reader) ([]core.AggregateRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = len(core.DefaultHeader)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read summary header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if !core.HeaderMatches(header, core.DefaultHeader) {
		return nil, &core.SchemaMismatchError{Expected: core.DefaultHeader, Got: header}
	}

	var out []core.AggregateRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read summary line %d: %w", line, err)
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("summary line %d: %w", line, err)
		}
		out = append(out, rec)
	}
}

func parseRow(row []string) (core.AggregateRecord, error) {
	count, err := strconv.Atoi(strings.TrimSpace(row[4]))
	if err != nil {
		return core.AggregateRecord{}, fmt.Errorf("invalid %s %q: %w", core.ColCount, row[4], err)
	}
	cost, err := decimal.NewFromString(strings.TrimSpace(row[6]))
	if err != nil {
		return core.AggregateRecord{}, fmt.Errorf("invalid %s %q: %w", core.ColCost, row[6], err)
	}
	return core.AggregateRecord{
		DateKey: row[0],
		TimeKey: row[1],
		Partner: row[2],
		Product: row[3],
		Count:   count,
		Channel: row[5],
		Cost:    cost,
	}, nil
}
