package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Output column names, in the order the summary sheet stores them.
const (
	ColDate     = "DATA DISPARO"
	ColTime     = "HORA DISPARO"
	ColPartner  = "CONVENIO"
	ColProduct  = "PRODUTO"
	ColCount    = "quantidade"
	ColChannel  = "canal"
	ColCost     = "gasto"
	DateLayout  = "02/01/2006"
	TimeLayout  = "15:04"
	CostDecimal = 2
)

// DefaultHeader is the column order of the summary sheet.
var DefaultHeader = []string{ColDate, ColTime, ColPartner, ColProduct, ColCount, ColChannel, ColCost}

type (
	// RawRecord is one exported dispatch row. Extra keeps every other column untouched.
	RawRecord struct {
		CampaignName      string
		DispatchTimestamp string
		CampaignID        string
		Extra             map[string]string
		Line              int
	}

	// ClassifiedRecord is a raw record labelled with its agreement and product.
	ClassifiedRecord struct {
		RawRecord
		PartnerLabel string
		ProductLabel string
	}

	// BucketedRecord carries the date and time keys of a classified row.
	// An empty key means the timestamp could not be parsed.
	BucketedRecord struct {
		ClassifiedRecord
		DateKey string
		TimeKey string
	}

	// AggregateRecord is one dispatch group as it is written to the summary sheet.
	AggregateRecord struct {
		DateKey string
		TimeKey string
		Partner string
		Product string
		Count   int
		Channel string
		Cost    decimal.Decimal
	}
)

var (
	ErrInputSchema    = errors.New("input schema error")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrStoreIO        = errors.New("store i/o error")
	ErrInvalidRate    = errors.New("invalid unit rate")
	ErrEmptyChannel   = errors.New("empty channel")
	ErrEmptyFallback  = errors.New("empty fallback label")
)

// StoreIOError reports a failed read or append round trip against the external store.
type StoreIOError struct {
	Op  string
	Err error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreIOError) Unwrap() []error {
	return []error{ErrStoreIO, e.Err}
}

// Values renders the record in header order.
func (a AggregateRecord) Values() []string {
	return []string{
		a.DateKey,
		a.TimeKey,
		a.Partner,
		a.Product,
		fmt.Sprintf("%d", a.Count),
		a.Channel,
		a.Cost.StringFixedBank(CostDecimal),
	}
}

// Rows renders a slice of aggregates in header order.
func Rows(records []AggregateRecord) [][]string {
	out := make([][]string, len(records))
	for i, r := range records {
		out[i] = r.Values()
	}
	return out
}

// TotalCount sums Count across records.
func TotalCount(records []AggregateRecord) int {
	n := 0
	for _, r := range records {
		n += r.Count
	}
	return n
}

// TotalCost sums Cost across records.
func TotalCost(records []AggregateRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Cost)
	}
	return total
}
