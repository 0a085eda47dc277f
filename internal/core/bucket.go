package core

import (
	"strings"
	"time"
)

// Day-first layouts tried in order. ISO layouts are accepted because some exports
// are re-saved by spreadsheet tools.
var timestampLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"02-01-2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses a day-first date with optional time of day.
func ParseTimestamp(text string) (time.Time, bool) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Bucket derives the DD/MM/YYYY date key and HH:MM time key of a timestamp.
// Seconds are discarded. ok is false when the text cannot be parsed.
func Bucket(text string) (dateKey, timeKey string, ok bool) {
	t, ok := ParseTimestamp(text)
	if !ok {
		return "", "", false
	}
	return t.Format(DateLayout), t.Format(TimeLayout), true
}

// RowParseWarning records a timestamp that could not be parsed. The row is still aggregated.
type RowParseWarning struct {
	Line  int
	Value string
}

type dayGroup struct {
	date, partner, product string
}

// BucketAll assigns date and time keys, then stamps every (date, partner, product)
// group with the earliest time among its members. Groups without any parsed time
// keep an empty time key.
func BucketAll(records []ClassifiedRecord) ([]BucketedRecord, []RowParseWarning) {
	out := make([]BucketedRecord, len(records))
	var warnings []RowParseWarning
	earliest := make(map[dayGroup]string)

	for i, r := range records {
		dateKey, timeKey, ok := Bucket(r.DispatchTimestamp)
		if !ok {
			warnings = append(warnings, RowParseWarning{Line: r.Line, Value: r.DispatchTimestamp})
		}
		out[i] = BucketedRecord{ClassifiedRecord: r, DateKey: dateKey, TimeKey: timeKey}
		if timeKey == "" {
			continue
		}
		g := dayGroup{dateKey, r.PartnerLabel, r.ProductLabel}
		// HH:MM is zero padded, so string order is time order.
		if cur, seen := earliest[g]; !seen || timeKey < cur {
			earliest[g] = timeKey
		}
	}

	for i := range out {
		g := dayGroup{out[i].DateKey, out[i].PartnerLabel, out[i].ProductLabel}
		out[i].TimeKey = earliest[g]
	}
	return out, warnings
}
