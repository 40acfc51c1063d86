// Package variation expands base expressions into families of syntactic variants.
//
// Each base expression is scanned for substitution axes: whole-word tokens drawn
// from fixed vocabularies, and integer literals. The Cartesian product of all axis
// candidate lists is the variant space of that expression. Every combination except
// the all-original one becomes a variant; variants are deduplicated across the whole
// output by the canonical form of the full record.
//
// The generator is a pure function of its input and vocabularies.
package variation

import (
	"alphaforge/internal/alpha"
)

// Generator holds the vocabularies scanned for token axes.
type Generator struct {
	Vocabularies []Vocabulary
}

// New returns a generator over the given vocabularies, or the defaults if none.
func New(vocabularies ...Vocabulary) *Generator {
	if len(vocabularies) == 0 {
		vocabularies = DefaultVocabularies()
	}
	return &Generator{Vocabularies: vocabularies}
}

// Generate expands sources with the default vocabularies.
func Generate(sources []alpha.Source) []alpha.Source {
	return New().Generate(sources)
}

// Parse splits code into its template and axes.
func (g *Generator) Parse(code string) Template {
	return Parse(code, g.Vocabularies)
}

// SpaceSize returns how many variants code can produce before deduplication.
func (g *Generator) SpaceSize(code string) int {
	n := g.Parse(code).Size()
	if n == 0 {
		return 0
	}
	return n - 1
}

// Generate returns the deduplicated variant set of sources. Output order follows
// input order, then product order over the axes with the last axis varying fastest.
// Sources without an extractable expression or without axes contribute nothing.
func (g *Generator) Generate(sources []alpha.Source) []alpha.Source {
	var out []alpha.Source
	seen := make(map[string]struct{})

	for _, src := range sources {
		code := src.Code()
		if code == "" {
			continue
		}
		tmpl := g.Parse(code)
		if len(tmpl.Axes) == 0 {
			continue
		}

		each(tmpl.Axes, func(choice []string) {
			if isIdentity(tmpl.Axes, choice) {
				return
			}
			variant := src.WithCode(tmpl.Fill(choice))
			key := variant.Key()
			if _, dup := seen[key]; dup {
				return
			}
			seen[key] = struct{}{}
			out = append(out, variant)
		})
	}
	return out
}

// GenerateRecords is Generate for structured records only.
func (g *Generator) GenerateRecords(records []alpha.Record) []alpha.Record {
	return alpha.Records(g.Generate(alpha.Sources(records)))
}

func isIdentity(axes []Axis, choice []string) bool {
	for i, a := range axes {
		if choice[i] != a.Original {
			return false
		}
	}
	return true
}

// each walks the Cartesian product of the axes' candidates like an odometer.
// The choice slice is reused between calls.
func each(axes []Axis, fn func(choice []string)) {
	idx := make([]int, len(axes))
	choice := make([]string, len(axes))
	for i, a := range axes {
		if len(a.Candidates) == 0 {
			return
		}
		choice[i] = a.Candidates[0]
	}

	for {
		fn(choice)

		i := len(axes) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(axes[i].Candidates) {
				choice[i] = axes[i].Candidates[idx[i]]
				break
			}
			idx[i] = 0
			choice[i] = axes[i].Candidates[0]
		}
		if i < 0 {
			return
		}
	}
}

// Ratios builds one record per (a, b) pair with the expression "a/b", placed on
// the template. Used to seed a population from two lists of data fields.
func Ratios(fieldsA, fieldsB []string, template alpha.Record) []alpha.Record {
	out := make([]alpha.Record, 0, len(fieldsA)*len(fieldsB))
	for _, a := range fieldsA {
		for _, b := range fieldsB {
			out = append(out, template.WithRegular(a+"/"+b))
		}
	}
	return out
}
