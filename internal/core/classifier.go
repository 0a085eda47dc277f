package core

import "strings"

// Memo caches classification results by normalized campaign name.
type Memo interface {
	Get(key string) (string, bool)
	Set(key string, data string)
}

// Classifier applies the partner and product tables to raw records.
type Classifier struct {
	partner RuleTable
	product RuleTable
	memo    Memo
}

// NewClassifier builds a classifier. memo may be nil.
func NewClassifier(partner, product RuleTable, memo Memo) *Classifier {
	return &Classifier{partner: partner, product: product, memo: memo}
}

const memoSep = "\x1f"

// Labels returns the partner and product labels for a campaign name.
func (c *Classifier) Labels(campaignName string) (partner, product string) {
	key := Normalize(campaignName)
	if c.memo != nil {
		if v, ok := c.memo.Get(key); ok {
			if p, q, found := strings.Cut(v, memoSep); found {
				return p, q
			}
		}
	}
	partner = c.partner.match(key)
	product = c.product.match(key)
	if c.memo != nil {
		c.memo.Set(key, partner+memoSep+product)
	}
	return partner, product
}

// Classify derives the two labels of a raw record.
func (c *Classifier) Classify(r RawRecord) ClassifiedRecord {
	partner, product := c.Labels(r.CampaignName)
	return ClassifiedRecord{RawRecord: r, PartnerLabel: partner, ProductLabel: product}
}

// ClassifyAll classifies records in input order.
func (c *Classifier) ClassifyAll(records []RawRecord) []ClassifiedRecord {
	out := make([]ClassifiedRecord, len(records))
	for i, r := range records {
		out[i] = c.Classify(r)
	}
	return out
}

// PartnerFallback reports whether label is the partner table fallback.
func (c *Classifier) PartnerFallback(label string) bool { return label == c.partner.Fallback() }

// ProductFallback reports whether label is the product table fallback.
func (c *Classifier) ProductFallback(label string) bool { return label == c.product.Fallback() }
