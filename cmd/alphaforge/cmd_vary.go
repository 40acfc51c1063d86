package main

import (
	"fmt"
	"os"

	"alphaforge/internal/alpha"
	"alphaforge/internal/logging"
	"alphaforge/internal/variation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var varyOut string

// varyCmd expands a record file into its variants
var varyCmd = &cobra.Command{
	Use:   "vary <records.json>",
	Short: "Expand expressions into token and numeric-literal variants",
	Long: `Reads a JSON array whose elements are expression records or raw record
text and writes every distinct variant, in generation order. The base records
themselves are not repeated in the output.

Example:
  alphaforge vary base.json -o variants.json`,
	Args: cobra.ExactArgs(1),
	RunE: runVary,
}

func init() {
	varyCmd.Flags().StringVarP(&varyOut, "out", "o", "", "Output file (default: stdout)")
}

func runVary(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}
	sources, err := alpha.DecodeSources(data)
	if err != nil {
		return err
	}

	gen, err := newGenerator()
	if err != nil {
		return err
	}
	variants := generate(gen, sources)
	return writeSources(cmd, variants, varyOut)
}

func newGenerator() (*variation.Generator, error) {
	vocabs, err := variation.Lookup(cfg.Variation.Vocabularies...)
	if err != nil {
		return nil, err
	}
	return variation.New(vocabs...), nil
}

func generate(gen *variation.Generator, sources []alpha.Source) []alpha.Source {
	log := logs.Get(logging.CategoryGenerate)
	timer := logging.StartTimer(log, "generate variants")
	variants := gen.Generate(sources)
	timer.Stop()
	log.Info("variants generated", zap.Int("base", len(sources)), zap.Int("variants", len(variants)))
	return variants
}

func writeSources(cmd *cobra.Command, sources []alpha.Source, path string) error {
	out, err := alpha.EncodeSources(sources)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d records to %s\n", len(sources), path)
	return nil
}
