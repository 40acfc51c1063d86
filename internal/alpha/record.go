// Package alpha defines the expression records exchanged with the evaluation service:
// the simulation payload (Record), the inventory items returned by listings
// (Candidate), and the Source union the variant generator operates on.
package alpha

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
)

// TypeRegular is the only record type this module produces.
const TypeRegular = "REGULAR"

// Settings is the evaluation configuration block carried by every record.
// It is never modified by the variant generator.
type Settings struct {
	InstrumentType string  `json:"instrumentType" yaml:"instrument_type"`
	Region         string  `json:"region" yaml:"region"`
	Universe       string  `json:"universe" yaml:"universe"`
	Delay          int     `json:"delay" yaml:"delay"`
	Decay          int     `json:"decay" yaml:"decay"`
	Neutralization string  `json:"neutralization" yaml:"neutralization"`
	Truncation     float64 `json:"truncation" yaml:"truncation"`
	Pasteurization string  `json:"pasteurization" yaml:"pasteurization"`
	UnitHandling   string  `json:"unitHandling" yaml:"unit_handling"`
	NanHandling    string  `json:"nanHandling" yaml:"nan_handling"`
	Language       string  `json:"language" yaml:"language"`
	Visualization  bool    `json:"visualization" yaml:"visualization"`
}

// DefaultSettings returns the USA/TOP3000 equity template used for rendered alphas.
func DefaultSettings() Settings {
	return Settings{
		InstrumentType: "EQUITY",
		Region:         "USA",
		Universe:       "TOP3000",
		Delay:          1,
		Decay:          1,
		Neutralization: "SUBINDUSTRY",
		Truncation:     0.01,
		Pasteurization: "ON",
		UnitHandling:   "VERIFY",
		NanHandling:    "ON",
		Language:       "FASTEXPR",
		Visualization:  false,
	}
}

// Record is an expression record: a settings block plus the expression text in Regular.
// Records are compared structurally; there is no separate identity key.
//
// A record decoded from JSON keeps the whole document it came from, unknown keys
// included, and encodes back to that document with only "regular" rewritten.
// Type and Settings are a read-only view of such a record.
type Record struct {
	Type     string
	Settings Settings
	Regular  string

	doc map[string]any
}

// recordView is the typed JSON shape of a record built in code.
type recordView struct {
	Type     string   `json:"type"`
	Settings Settings `json:"settings"`
	Regular  string   `json:"regular"`
}

// NewRecord builds a REGULAR record with the given settings and expression.
func NewRecord(settings Settings, code string) Record {
	return Record{Type: TypeRegular, Settings: settings, Regular: code}
}

// WithRegular returns a copy of r carrying a different expression. The decoded
// document is shared but never written to.
func (r Record) WithRegular(code string) Record {
	r.Regular = code
	return r
}

func (r *Record) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return err
	}
	if doc == nil {
		return errors.New("alpha: record must be a JSON object")
	}
	var view recordView
	if err := json.Unmarshal(data, &view); err != nil {
		return err
	}
	*r = Record{Type: view.Type, Settings: view.Settings, Regular: view.Regular, doc: doc}
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.doc == nil {
		return json.Marshal(recordView{Type: r.Type, Settings: r.Settings, Regular: r.Regular})
	}
	return json.Marshal(r.document())
}

// document returns a fresh top-level map of the record with "regular" set.
func (r Record) document() map[string]any {
	src := r.doc
	if src == nil {
		data, err := json.Marshal(recordView{Type: r.Type, Settings: r.Settings, Regular: r.Regular})
		if err == nil {
			src, err = decodeDocument(data)
		}
		if err != nil {
			// recordView holds only strings, numbers and bools.
			panic("alpha: marshal record: " + err.Error())
		}
	}
	out := make(map[string]any, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	out["regular"] = r.Regular
	return out
}

// decodeDocument keeps number literals as written so re-encoding is lossless.
// A JSON value other than an object yields a nil map.
func decodeDocument(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	doc, _ := v.(map[string]any)
	return doc, nil
}

// Key is the canonical serialization of the full record: object keys sorted at
// every level, so equal records always produce equal keys whether they were
// decoded or built in code.
func (r Record) Key() string {
	data, err := json.Marshal(r.document())
	if err != nil {
		panic("alpha: marshal record: " + err.Error())
	}
	return string(data)
}

// Fingerprint returns a short stable identifier for a record, used to key outcomes
// of items the remote service never assigned an id to.
func Fingerprint(r Record) string {
	sum := sha256.Sum256([]byte(r.Key()))
	return hex.EncodeToString(sum[:8])
}

// Render places each expression onto a copy of the template.
func Render(template Record, codes []string) []Record {
	out := make([]Record, 0, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		out = append(out, template.WithRegular(code))
	}
	return out
}
