package variation

import (
	"encoding/json"
	"strings"
	"testing"

	"alphaforge/internal/alpha"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(sources []alpha.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Code()
	}
	return out
}

func base(code string) alpha.Source {
	return alpha.Structured{Record: alpha.NewRecord(alpha.DefaultSettings(), code)}
}

// numericOnly scans no vocabularies.
var numericOnly = &Generator{}

func TestGenerate_SingleNumericLiteral(t *testing.T) {
	gen := New(GroupKeys, GroupOperators)
	got := codes(gen.Generate([]alpha.Source{base("ts_rank(close, 5)")}))

	want := []string{
		"ts_rank(close, 2)",
		"ts_rank(close, 4)",
		"ts_rank(close, 6)",
		"ts_rank(close, 8)",
		"ts_rank(close, 10)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("variants mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_DefaultVocabulariesIncludeTimeSeriesOperators(t *testing.T) {
	out := Generate([]alpha.Source{base("ts_rank(close, 5)")})
	assert.Len(t, out, len(TimeSeriesOperators.Tokens)*6-1)
	assert.Equal(t, "ts_rank(close, 2)", out[0].Code(), "numeric axis varies fastest")
}

func TestGenerate_CountIsProductMinusIdentity(t *testing.T) {
	code := "group_rank(ts_mean(close), sector)"
	gen := New()

	want := len(GroupKeys.Tokens)*len(GroupOperators.Tokens)*len(TimeSeriesOperators.Tokens) - 1
	out := gen.Generate([]alpha.Source{base(code)})

	assert.Len(t, out, want)
	assert.Equal(t, want, gen.SpaceSize(code))
	for _, v := range out {
		assert.NotEqual(t, code, v.Code(), "identity combination must not be emitted")
	}
}

func TestGenerate_AxisOrder(t *testing.T) {
	tmpl := New().Parse("ts_mean(x, 5) - group_rank(y, sector)")

	require.Len(t, tmpl.Axes, 4)
	assert.Equal(t, "sector", tmpl.Axes[0].Original)
	assert.Equal(t, "group_rank", tmpl.Axes[1].Original)
	assert.Equal(t, "ts_mean", tmpl.Axes[2].Original)
	assert.Equal(t, NumericAxis, tmpl.Axes[3].Kind)
	assert.Equal(t, "5", tmpl.Axes[3].Original)
}

func TestGenerate_ProductOrderLastAxisFastest(t *testing.T) {
	out := codes(numericOnly.Generate([]alpha.Source{base("ts_mean(x, 5) - ts_mean(x, 10)")}))

	require.Len(t, out, 6*8-1)
	assert.Equal(t, "ts_mean(x, 5) - ts_mean(x, 15)", out[0])
	assert.Equal(t, "ts_mean(x, 5) - ts_mean(x, 45)", out[6])
	assert.Equal(t, "ts_mean(x, 2) - ts_mean(x, 10)", out[7])
	assert.Equal(t, "ts_mean(x, 10) - ts_mean(x, 45)", out[len(out)-1])
}

func TestGenerate_TwoDigitLiteralIsBoundarySafe(t *testing.T) {
	got := codes(numericOnly.Generate([]alpha.Source{base("ts_delay(x, 12)")}))

	want := []string{
		"ts_delay(x, 10)",
		"ts_delay(x, 15)",
		"ts_delay(x, 20)",
		"ts_delay(x, 25)",
		"ts_delay(x, 30)",
		"ts_delay(x, 35)",
		"ts_delay(x, 40)",
		"ts_delay(x, 45)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("variants mismatch (-want +got):\n%s", diff)
	}
}

func TestTemplate_NumericSubstitutionIsSimultaneous(t *testing.T) {
	tmpl := Parse("a * 2 + b * 12 + c * 20", nil)
	require.Len(t, tmpl.Axes, 3)

	assert.Equal(t, "a * 12 + b * 20 + c * 2", tmpl.Fill([]string{"12", "20", "2"}))
	assert.Equal(t, "a * 20 + b * 2 + c * 12", tmpl.Fill([]string{"20", "2", "12"}))
}

func TestTemplate_DigitsInsideIdentifiersAreNotLiterals(t *testing.T) {
	tmpl := Parse("ts_delay(x12, 2) + 12 + 1.5 + 1000", nil)

	var originals []string
	for _, a := range tmpl.Axes {
		originals = append(originals, a.Original)
	}
	assert.Equal(t, []string{"2", "12", "1", "5", "1000"}, originals)
	assert.Equal(t, []string{"1000"}, tmpl.Axes[4].Candidates, "long literals stay fixed")
}

func TestGenerate_TokenNeverMatchesInsideLongerIdentifier(t *testing.T) {
	gen := New(GroupOperators)
	got := codes(gen.Generate([]alpha.Source{base("group_rank(x, sector) + group_rank_v2(y)")}))

	want := []string{
		"group_scale(x, sector) + group_rank_v2(y)",
		"group_neutralize(x, sector) + group_rank_v2(y)",
		"group_zscore(x, sector) + group_rank_v2(y)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("variants mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_TokenAxisCoversEveryOccurrence(t *testing.T) {
	gen := New(GroupKeys)
	out := codes(gen.Generate([]alpha.Source{base("group_rank(x, sector) - group_rank(y, sector)")}))

	require.Len(t, out, len(GroupKeys.Tokens)-1)
	assert.Equal(t, "group_rank(x, subindustry) - group_rank(y, subindustry)", out[0])
}

func TestGenerate_TokenSubstitutionIsSimultaneous(t *testing.T) {
	gen := New(GroupKeys)
	out := codes(gen.Generate([]alpha.Source{base("sector + industry")}))

	assert.Len(t, out, 6*6-1)
	assert.Contains(t, out, "industry + sector")
	assert.Contains(t, out, "market + market")
}

func TestGenerate_DedupAcrossBaseRecords(t *testing.T) {
	out := numericOnly.Generate([]alpha.Source{base("rank(x, 2)"), base("rank(x, 4)")})

	want := []string{"rank(x, 4)", "rank(x, 6)", "rank(x, 8)", "rank(x, 10)", "rank(x, 2)"}
	if diff := cmp.Diff(want, codes(out)); diff != "" {
		t.Errorf("variants mismatch (-want +got):\n%s", diff)
	}

	seen := make(map[string]bool)
	for _, v := range out {
		require.False(t, seen[v.Key()], "duplicate variant %s", v.Key())
		seen[v.Key()] = true
	}
}

func TestGenerate_DistinctSettingsAreDistinctRecords(t *testing.T) {
	other := alpha.DefaultSettings()
	other.Decay = 4
	sources := []alpha.Source{
		base("rank(x, 2)"),
		alpha.Structured{Record: alpha.NewRecord(other, "rank(x, 2)")},
	}

	out := numericOnly.Generate(sources)
	assert.Len(t, out, 8)
}

func TestGenerate_PreservesTemplateFields(t *testing.T) {
	settings := alpha.DefaultSettings()
	settings.Neutralization = "MARKET"
	settings.Truncation = 0.08
	src := alpha.Structured{Record: alpha.NewRecord(settings, "rank(x, 3)")}

	for _, v := range numericOnly.Generate([]alpha.Source{src}) {
		rec, ok := alpha.Structure(v)
		require.True(t, ok)
		assert.Equal(t, settings, rec.Settings)
		assert.Equal(t, alpha.TypeRegular, rec.Type)
	}
	assert.Equal(t, "rank(x, 3)", src.Record.Regular)
}

func TestGenerate_KeepsUnknownRecordKeys(t *testing.T) {
	sources, err := alpha.DecodeSources([]byte(`[{"settings": {"region": "CHN", "testPeriod": "P2Y"}, "regular": "rank(x, 4)"}]`))
	require.NoError(t, err)

	out := numericOnly.Generate(sources)
	require.Len(t, out, 4)
	data, err := alpha.EncodeSources(out)
	require.NoError(t, err)

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(data, &docs))
	for i, doc := range docs {
		assert.Equal(t, map[string]any{"region": "CHN", "testPeriod": "P2Y"}, doc["settings"])
		assert.Equal(t, out[i].Code(), doc["regular"])
		assert.Len(t, doc, 2)
	}
}

func TestGenerate_SkipsSourcesWithoutVariation(t *testing.T) {
	out := New().Generate([]alpha.Source{
		base(""),
		base("rank(close)"),
		alpha.Raw{Text: "no expression here"},
	})
	assert.Empty(t, out)
}

func TestGenerate_RawTextSources(t *testing.T) {
	raw := alpha.Raw{Text: `{'type': 'REGULAR', 'regular': 'rank(x, 8)'}`}
	out := numericOnly.Generate([]alpha.Source{raw})

	require.Len(t, out, 4)
	assert.Equal(t, `{'type': 'REGULAR', 'regular': 'rank(x, 8)'}`, raw.Text)
	assert.Equal(t, `{'type': 'REGULAR', 'regular': 'rank(x, 2)'}`, out[0].Key())
	for _, v := range out {
		_, structured := alpha.Structure(v)
		assert.False(t, structured)
	}
}

func TestGenerateRecords(t *testing.T) {
	recs := New(GroupKeys).GenerateRecords([]alpha.Record{
		alpha.NewRecord(alpha.DefaultSettings(), "group_neutralize(x, country)"),
	})
	require.Len(t, recs, 5)
	assert.True(t, strings.HasPrefix(recs[0].Regular, "group_neutralize(x, subindustry"))
}

func TestNumericCandidates(t *testing.T) {
	assert.Equal(t, []string{"5", "2", "4", "6", "8", "10"}, NumericCandidates("5"))
	assert.Equal(t, []string{"4", "2", "6", "8", "10"}, NumericCandidates("4"))
	assert.Equal(t, []string{"20", "10", "15", "25", "30", "35", "40", "45"}, NumericCandidates("20"))
	assert.Equal(t, []string{"05", "10", "15", "20", "25", "30", "35", "40", "45"}, NumericCandidates("05"))
	assert.Equal(t, []string{"252"}, NumericCandidates("252"))
}

func TestRatios(t *testing.T) {
	tmpl := alpha.NewRecord(alpha.DefaultSettings(), "")
	out := Ratios([]string{"a", "b"}, []string{"c", "d"}, tmpl)

	got := make([]string, len(out))
	for i, r := range out {
		got[i] = r.Regular
	}
	assert.Equal(t, []string{"a/c", "a/d", "b/c", "b/d"}, got)
}

func TestLookup(t *testing.T) {
	all, err := Lookup()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	picked, err := Lookup("group_operators", "group_keys")
	require.NoError(t, err)
	assert.Equal(t, []Vocabulary{GroupOperators, GroupKeys}, picked)

	_, err = Lookup("vector_operators")
	assert.ErrorContains(t, err, "vector_operators")
}
