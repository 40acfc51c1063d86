package alpha

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Source is a generator input: either a structured Record or raw text that embeds
// a record somewhere inside it. The two variants share extraction and injection.
type Source interface {
	// Code extracts the expression text, or "" when none can be found.
	Code() string
	// WithCode returns a new Source with the expression replaced.
	WithCode(code string) Source
	// Key is the canonical form used for deduplication.
	Key() string
}

// Structured wraps a decoded record.
type Structured struct {
	Record Record
}

func (s Structured) Code() string { return s.Record.Regular }

func (s Structured) WithCode(code string) Source {
	return Structured{Record: s.Record.WithRegular(code)}
}

func (s Structured) Key() string { return s.Record.Key() }

// Raw wraps free text such as a dumped Python dict or a JSON fragment.
type Raw struct {
	Text string
}

var (
	singleQuotedRegular = regexp.MustCompile(`'regular'\s*:\s*'([^']*)'`)
	doubleQuotedRegular = regexp.MustCompile(`"regular"\s*:\s*"([^"]*)"`)
)

func (r Raw) Code() string {
	if m := singleQuotedRegular.FindStringSubmatch(r.Text); m != nil {
		return m[1]
	}
	if m := doubleQuotedRegular.FindStringSubmatch(r.Text); m != nil {
		return m[1]
	}
	return ""
}

// WithCode replaces the first occurrence of the current expression.
func (r Raw) WithCode(code string) Source {
	old := r.Code()
	if old == "" {
		return r
	}
	return Raw{Text: strings.Replace(r.Text, old, code, 1)}
}

func (r Raw) Key() string { return r.Text }

// Structure reports the record behind a source, if it has one.
func Structure(s Source) (Record, bool) {
	st, ok := s.(Structured)
	return st.Record, ok
}

// Sources wraps records as structured sources.
func Sources(records []Record) []Source {
	out := make([]Source, len(records))
	for i, r := range records {
		out[i] = Structured{Record: r}
	}
	return out
}

// Records returns the structured records among sources, dropping raw text.
func Records(sources []Source) []Record {
	out := make([]Record, 0, len(sources))
	for _, s := range sources {
		if r, ok := Structure(s); ok {
			out = append(out, r)
		}
	}
	return out
}

// DecodeSources parses a JSON array whose elements are record objects or strings.
func DecodeSources(data []byte) ([]Source, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}

	out := make([]Source, 0, len(items))
	for i, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 {
			continue
		}
		switch trimmed[0] {
		case '"':
			var text string
			if err := json.Unmarshal(trimmed, &text); err != nil {
				return nil, fmt.Errorf("decode source %d: %w", i, err)
			}
			out = append(out, Raw{Text: text})
		case '{':
			var rec Record
			if err := json.Unmarshal(trimmed, &rec); err != nil {
				return nil, fmt.Errorf("decode source %d: %w", i, err)
			}
			out = append(out, Structured{Record: rec})
		default:
			return nil, fmt.Errorf("decode source %d: expected object or string", i)
		}
	}
	return out, nil
}

// EncodeSources is the inverse of DecodeSources, indented for humans.
func EncodeSources(sources []Source) ([]byte, error) {
	items := make([]any, len(sources))
	for i, s := range sources {
		switch v := s.(type) {
		case Structured:
			items[i] = v.Record
		case Raw:
			items[i] = v.Text
		default:
			return nil, fmt.Errorf("encode source %d: unsupported type %T", i, s)
		}
	}
	return json.MarshalIndent(items, "", "  ")
}
