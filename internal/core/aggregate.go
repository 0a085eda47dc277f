package core

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultUnitRate is the per-message cost used when none is configured.
var DefaultUnitRate = decimal.RequireFromString("0.105")

// DefaultChannel labels every aggregate of this pipeline.
const DefaultChannel = "RCS"

type groupKey struct {
	date, time, partner, product string
}

// Aggregate groups records by (date, time, partner, product) and prices each group
// at count × unitRate, rounded half to even to two decimals. Output is ordered by
// date, time, partner and product; empty keys sort last.
func Aggregate(records []BucketedRecord, unitRate decimal.Decimal, channel string) []AggregateRecord {
	counts := make(map[groupKey]int)
	for _, r := range records {
		counts[groupKey{r.DateKey, r.TimeKey, r.PartnerLabel, r.ProductLabel}]++
	}

	keys := make([]groupKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	out := make([]AggregateRecord, 0, len(keys))
	for _, k := range keys {
		n := counts[k]
		out = append(out, AggregateRecord{
			DateKey: k.date,
			TimeKey: k.time,
			Partner: k.partner,
			Product: k.product,
			Count:   n,
			Channel: channel,
			Cost:    Cost(n, unitRate),
		})
	}
	return out
}

// Cost prices count messages at unitRate.
func Cost(count int, unitRate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(count)).Mul(unitRate).RoundBank(CostDecimal)
}

func lessKey(a, b groupKey) bool {
	if a.date != b.date {
		return lessDate(a.date, b.date)
	}
	if a.time != b.time {
		return lessNullLast(a.time, b.time)
	}
	if a.partner != b.partner {
		return a.partner < b.partner
	}
	return a.product < b.product
}

func lessDate(a, b string) bool {
	if a == "" || b == "" {
		return lessNullLast(a, b)
	}
	ta, errA := time.Parse(DateLayout, a)
	tb, errB := time.Parse(DateLayout, b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b) < 0
	}
	return ta.Before(tb)
}

func lessNullLast(a, b string) bool {
	switch {
	case a == "":
		return false
	case b == "":
		return true
	default:
		return a < b
	}
}
