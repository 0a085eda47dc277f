package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"disparos/internal/core"
)

// RulesFile is the YAML layout of a rules override. Sequences keep declaration
// order, which decides precedence between overlapping triggers.
//
//	fallback: OUTRO
//	partner:
//	  - label: GOV SP
//	    triggers: [governo de sp, gov sp]
//	product:
//	  - label: NOVO
//	    triggers: [cartão novo, novo]
type RulesFile struct {
	Fallback string      `yaml:"fallback"`
	Partner  []core.Rule `yaml:"partner"`
	Product  []core.Rule `yaml:"product"`
}

// LoadRules reads a rules file. A taxonomy left empty in the file keeps the built-in rules.
func LoadRules(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}
	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	for i, r := range append(append([]core.Rule(nil), rf.Partner...), rf.Product...) {
		if r.Label == "" {
			return nil, fmt.Errorf("rules file %s: rule %d has no label", path, i+1)
		}
		if len(r.Triggers) == 0 {
			return nil, fmt.Errorf("rules file %s: rule %q has no triggers", path, r.Label)
		}
	}
	return &rf, nil
}

// Pipeline builds the core pipeline configuration from the environment and the
// optional rules file. memo may be nil.
func (c *Config) Pipeline(memo core.Memo) (core.PipelineConfig, error) {
	rate, err := c.Rate()
	if err != nil {
		return core.PipelineConfig{}, err
	}

	fallback := c.FallbackLabel
	partner := core.DefaultPartnerRules()
	product := core.DefaultProductRules()
	if c.RulesFile != "" {
		rf, err := LoadRules(c.RulesFile)
		if err != nil {
			return core.PipelineConfig{}, err
		}
		if rf.Fallback != "" {
			fallback = rf.Fallback
		}
		if len(rf.Partner) > 0 {
			partner = rf.Partner
		}
		if len(rf.Product) > 0 {
			product = rf.Product
		}
	}

	return core.PipelineConfig{
		Partner:  core.NewRuleTable(fallback, partner...),
		Product:  core.NewRuleTable(fallback, product...),
		UnitRate: rate,
		Channel:  c.Channel,
		Memo:     memo,
	}, nil
}
