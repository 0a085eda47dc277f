package core

import (
	"github.com/shopspring/decimal"
)

// PipelineConfig carries everything a run needs. Memo is optional.
type PipelineConfig struct {
	Partner  RuleTable
	Product  RuleTable
	UnitRate decimal.Decimal
	Channel  string
	Memo     Memo
}

// DefaultPipelineConfig uses the built-in rule tables, rate and channel.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Partner:  NewRuleTable(DefaultFallback, DefaultPartnerRules()...),
		Product:  NewRuleTable(DefaultFallback, DefaultProductRules()...),
		UnitRate: DefaultUnitRate,
		Channel:  DefaultChannel,
	}
}

// Validate rejects a negative unit rate or an empty channel.
func (c PipelineConfig) Validate() error {
	if c.UnitRate.IsNegative() {
		return ErrInvalidRate
	}
	if c.Channel == "" {
		return ErrEmptyChannel
	}
	return nil
}

// Diagnostics describes a run without failing it.
type Diagnostics struct {
	InputRows        int
	ParseWarnings    []RowParseWarning
	PartnerFallbacks int
	ProductFallbacks int
}

// Result is the output of one pipeline run.
type Result struct {
	Aggregates  []AggregateRecord
	Diagnostics Diagnostics
}

// Run classifies, buckets and aggregates raw records. It performs no I/O; displaying
// or storing the result is left to the caller.
func Run(records []RawRecord, cfg PipelineConfig) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	cl := NewClassifier(cfg.Partner, cfg.Product, cfg.Memo)
	classified := cl.ClassifyAll(records)

	diag := Diagnostics{InputRows: len(records)}
	for _, r := range classified {
		if cl.PartnerFallback(r.PartnerLabel) {
			diag.PartnerFallbacks++
		}
		if cl.ProductFallback(r.ProductLabel) {
			diag.ProductFallbacks++
		}
	}

	bucketed, warnings := BucketAll(classified)
	diag.ParseWarnings = warnings

	return Result{
		Aggregates:  Aggregate(bucketed, cfg.UnitRate, cfg.Channel),
		Diagnostics: diag,
	}, nil
}
