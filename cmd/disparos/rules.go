package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"disparos/internal/config"
	"disparos/internal/core"
)

var classifyText []string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective classification rules",
	Long: `Print the agreement and product rules in evaluation order, as YAML that can
be saved and used as RULES_FILE. Triggers are shown folded (lowercase, without
accents), the way they are matched.

With --classify the given campaign names are classified instead.

Examples:
  disparos rules > rules.yaml
  disparos rules --classify "GOVERNO DE SP - CARTÃO NOVO"`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rulesCmd.Flags().StringArrayVarP(&classifyText, "classify", "c", nil, "campaign name to classify (repeatable)")
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	pipeline, err := cfg.Pipeline(nil)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(classifyText) > 0 {
		cl := core.NewClassifier(pipeline.Partner, pipeline.Product, nil)
		for _, text := range classifyText {
			partner, product := cl.Labels(text)
			fmt.Fprintf(out, "%s\t%s\t%s\n", partner, product, text)
		}
		return nil
	}

	rf := config.RulesFile{
		Fallback: pipeline.Partner.Fallback(),
		Partner:  pipeline.Partner.Rules(),
		Product:  pipeline.Product.Rules(),
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(rf); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return enc.Close()
}
