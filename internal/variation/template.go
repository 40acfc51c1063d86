package variation

import (
	"strconv"
	"strings"
	"unicode"
)

// AxisKind distinguishes vocabulary substitutions from literal substitutions.
type AxisKind int

const (
	TokenAxis AxisKind = iota
	NumericAxis
)

func (k AxisKind) String() string {
	switch k {
	case TokenAxis:
		return "token"
	case NumericAxis:
		return "numeric"
	default:
		return "unknown"
	}
}

// Axis is one independent substitution dimension. Candidates[0] is always Original.
type Axis struct {
	Kind       AxisKind
	Original   string
	Candidates []string
}

// segment is a piece of expression text. Word runs that belong to an axis carry
// the axis index in slot; everything else has slot -1 and is copied verbatim.
type segment struct {
	text string
	word bool
	slot int
}

// Template is an expression split into fixed text and axis slots. A token axis owns
// every occurrence of its token; a numeric axis owns exactly one literal.
type Template struct {
	segments []segment
	Axes     []Axis
}

// isWordRune mirrors the \w class: letters, digits and underscore.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// split cuts code into maximal word runs and the text between them. A vocabulary
// token or integer literal only ever matches a whole word run, so matching can
// never start or end inside a longer identifier or number.
func split(code string) []segment {
	var segs []segment
	start := 0
	inWord := false
	for i, r := range code {
		w := isWordRune(r)
		if i == 0 {
			inWord = w
			continue
		}
		if w != inWord {
			segs = append(segs, segment{text: code[start:i], word: inWord, slot: -1})
			start = i
			inWord = w
		}
	}
	if start < len(code) {
		segs = append(segs, segment{text: code[start:], word: inWord, slot: -1})
	}
	return segs
}

func isIntegerLiteral(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NumericCandidates derives the candidate list of an integer literal: one digit
// varies over 2..10 step 2, two digits over 10..45 step 5, longer literals stay fixed.
func NumericCandidates(literal string) []string {
	out := []string{literal}
	var lo, hi, step int
	switch len(literal) {
	case 1:
		lo, hi, step = 2, 10, 2
	case 2:
		lo, hi, step = 10, 45, 5
	default:
		return out
	}
	for v := lo; v <= hi; v += step {
		if s := strconv.Itoa(v); s != literal {
			out = append(out, s)
		}
	}
	return out
}

// Parse extracts the axes of code: token axes in vocabulary scan order first,
// then one numeric axis per integer literal in order of appearance.
func Parse(code string, vocabularies []Vocabulary) Template {
	t := Template{segments: split(code)}

	for _, vocab := range vocabularies {
		for _, token := range vocab.Tokens {
			axis := -1
			for i := range t.segments {
				seg := &t.segments[i]
				if !seg.word || seg.slot >= 0 || seg.text != token {
					continue
				}
				if axis < 0 {
					axis = len(t.Axes)
					t.Axes = append(t.Axes, Axis{
						Kind:       TokenAxis,
						Original:   token,
						Candidates: vocab.alternatives(token),
					})
				}
				seg.slot = axis
			}
		}
	}

	for i := range t.segments {
		seg := &t.segments[i]
		if !seg.word || seg.slot >= 0 || !isIntegerLiteral(seg.text) {
			continue
		}
		seg.slot = len(t.Axes)
		t.Axes = append(t.Axes, Axis{
			Kind:       NumericAxis,
			Original:   seg.text,
			Candidates: NumericCandidates(seg.text),
		})
	}
	return t
}

// Fill renders the template with choice[i] substituted for axis i. All slots are
// filled in one pass over the original segments, so a value written for one axis
// is never seen by another.
func (t Template) Fill(choice []string) string {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.slot >= 0 {
			b.WriteString(choice[seg.slot])
			continue
		}
		b.WriteString(seg.text)
	}
	return b.String()
}

// Size is the number of combinations in the variant space, identity included.
func (t Template) Size() int {
	if len(t.Axes) == 0 {
		return 0
	}
	n := 1
	for _, a := range t.Axes {
		n *= len(a.Candidates)
	}
	return n
}
