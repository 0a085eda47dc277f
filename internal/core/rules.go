package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultFallback is the label given to text that no rule matches.
const DefaultFallback = "OUTRO"

type (
	// Rule maps a canonical label to the lowercase substrings that select it.
	Rule struct {
		Label    string   `yaml:"label"`
		Triggers []string `yaml:"triggers"`
	}

	// RuleTable is an ordered rule list. The first rule with a matching trigger wins,
	// regardless of trigger length.
	RuleTable struct {
		rules    []Rule
		fallback string
	}
)

// NewRuleTable copies rules in declaration order and folds every trigger the same
// way classified text is folded. Empty triggers are dropped.
func NewRuleTable(fallback string, rules ...Rule) RuleTable {
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		fallback = DefaultFallback
	}
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		label := strings.TrimSpace(r.Label)
		if label == "" {
			continue
		}
		triggers := make([]string, 0, len(r.Triggers))
		for _, t := range r.Triggers {
			if f := fold(t); f != "" {
				triggers = append(triggers, f)
			}
		}
		out = append(out, Rule{Label: label, Triggers: triggers})
	}
	return RuleTable{rules: out, fallback: fallback}
}

// Fallback returns the label used when nothing matches.
func (t RuleTable) Fallback() string {
	if t.fallback == "" {
		return DefaultFallback
	}
	return t.fallback
}

// Rules returns a copy of the folded rules in evaluation order.
func (t RuleTable) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i, r := range t.rules {
		out[i] = Rule{Label: r.Label, Triggers: append([]string(nil), r.Triggers...)}
	}
	return out
}

// Labels lists canonical labels in evaluation order.
func (t RuleTable) Labels() []string {
	out := make([]string, len(t.rules))
	for i, r := range t.rules {
		out[i] = r.Label
	}
	return out
}

// Len is the number of rules.
func (t RuleTable) Len() int { return len(t.rules) }

// Classify returns the label of the first rule whose trigger occurs in text,
// or the table fallback. Comparison ignores case, surrounding whitespace and accents.
func Classify(text string, table RuleTable) string {
	return table.match(Normalize(text))
}

func (t RuleTable) match(normalized string) string {
	if normalized == "" {
		return t.Fallback()
	}
	for _, r := range t.rules {
		for _, trigger := range r.Triggers {
			if strings.Contains(normalized, trigger) {
				return r.Label
			}
		}
	}
	return t.Fallback()
}

// Normalize lowercases, trims and strips diacritics from text.
func Normalize(text string) string {
	return fold(text)
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	t := transform.Chain(norm.NFD, stripMarks, norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// DefaultPartnerRules is the built-in agreement taxonomy.
func DefaultPartnerRules() []Rule {
	return []Rule{
		{Label: "PREF SP", Triggers: []string{"prefeitura de sp", "prefeitura de são paulo", "pref sp", "pref. sp", "prefsp"}},
		{Label: "GOV SP", Triggers: []string{"governo de sp", "governo de são paulo", "governo do estado de são paulo", "governo sp", "gov sp", "gov. sp", "govsp"}},
		{Label: "GOV CE", Triggers: []string{"governo do ceará", "governo de ce", "governo ce", "gov ce", "gov. ce", "govce"}},
		{Label: "GOV RJ", Triggers: []string{"governo do rio", "governo de rj", "governo rj", "gov rj", "gov. rj", "govrj"}},
		{Label: "GOV MG", Triggers: []string{"governo de minas", "governo de mg", "governo mg", "gov mg", "gov. mg", "govmg"}},
		{Label: "GOV BA", Triggers: []string{"governo da bahia", "governo de ba", "governo ba", "gov ba", "gov. ba", "govba"}},
		{Label: "GOV PR", Triggers: []string{"governo do paraná", "governo de pr", "governo pr", "gov pr", "gov. pr", "govpr"}},
		{Label: "GOV GO", Triggers: []string{"governo de goiás", "governo de go", "governo go", "gov go", "gov. go", "govgo"}},
		{Label: "SIAPE", Triggers: []string{"siape", "servidor federal"}},
		{Label: "INSS", Triggers: []string{"inss", "aposentado", "pensionista"}},
	}
}

// DefaultProductRules is the built-in product taxonomy. NOVO precedes CARTÃO so that
// "cartão novo" campaigns are counted as new credit.
func DefaultProductRules() []Rule {
	return []Rule{
		{Label: "NOVO", Triggers: []string{"cartão novo", "crédito novo", "novo"}},
		{Label: "REFIN", Triggers: []string{"refin", "refinanciamento"}},
		{Label: "PORTABILIDADE", Triggers: []string{"portabilidade", "portab"}},
		{Label: "CARTÃO", Triggers: []string{"cartão", "rmc"}},
		{Label: "BENEFICIO", Triggers: []string{"benef", "rcc"}},
		{Label: "SAQUE", Triggers: []string{"saque"}},
	}
}
