package variation

import "fmt"

// Vocabulary is a fixed, ordered set of interchangeable tokens. Any token of a
// vocabulary found in an expression may be swapped for any other token of the same
// vocabulary.
type Vocabulary struct {
	Name   string   `yaml:"name" json:"name"`
	Tokens []string `yaml:"tokens" json:"tokens"`
}

// GroupKeys are the grouping keys accepted by group operators.
var GroupKeys = Vocabulary{
	Name:   "group_keys",
	Tokens: []string{"subindustry", "market", "sector", "industry", "country", "currency"},
}

// GroupOperators are the cross-sectional group operators.
var GroupOperators = Vocabulary{
	Name:   "group_operators",
	Tokens: []string{"group_rank", "group_scale", "group_neutralize", "group_zscore"},
}

// TimeSeriesOperators are the single-series time-series operators.
var TimeSeriesOperators = Vocabulary{
	Name: "ts_operators",
	Tokens: []string{
		"last_diff_value", "ts_arg_max", "ts_arg_min", "ts_av_diff", "ts_backfill",
		"ts_corr", "ts_count_nans", "ts_decay_linear", "ts_delay", "ts_delta",
		"ts_mean", "ts_product", "ts_quantile", "ts_rank", "ts_regression",
		"ts_scale", "ts_std_dev", "ts_sum", "ts_zscore",
	},
}

// DefaultVocabularies returns the vocabularies in scan order.
func DefaultVocabularies() []Vocabulary {
	return []Vocabulary{GroupKeys, GroupOperators, TimeSeriesOperators}
}

// Lookup resolves built-in vocabularies by name, keeping the requested order.
// No names means all of them.
func Lookup(names ...string) ([]Vocabulary, error) {
	if len(names) == 0 {
		return DefaultVocabularies(), nil
	}
	out := make([]Vocabulary, 0, len(names))
	for _, name := range names {
		found := false
		for _, v := range DefaultVocabularies() {
			if v.Name == name {
				out = append(out, v)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown vocabulary %q", name)
		}
	}
	return out, nil
}

// alternatives lists token first, then every other token of v in order.
func (v Vocabulary) alternatives(token string) []string {
	out := make([]string, 0, len(v.Tokens))
	out = append(out, token)
	for _, t := range v.Tokens {
		if t != token {
			out = append(out, t)
		}
	}
	return out
}
