package alpha

import (
	"encoding/json"
	"strings"
)

// CheckFail is the result string the service uses for a failed check.
const CheckFail = "FAIL"

// Check is one named pass/fail validation rule applied by the service.
type Check struct {
	Name    string   `json:"name"`
	Result  string   `json:"result"`
	Limit   *float64 `json:"limit,omitempty"`
	Value   *float64 `json:"value,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Failed reports whether the check rejected the artifact.
func (c Check) Failed() bool {
	return strings.EqualFold(c.Result, CheckFail)
}

// FailingChecks returns the checks whose result is FAIL, in order.
func FailingChecks(checks []Check) []Check {
	var failed []Check
	for _, c := range checks {
		if c.Failed() {
			failed = append(failed, c)
		}
	}
	return failed
}

// Metrics is the in-sample quality block of an inventory item. Missing numbers
// decode as zero, which is how the threshold filter treats them. The return
// metric comes under two spellings; nil means the key was absent.
type Metrics struct {
	Sharpe  float64  `json:"sharpe"`
	Fitness float64  `json:"fitness"`
	Returns *float64 `json:"returns,omitempty"`
	Return  *float64 `json:"return,omitempty"`
	Checks  []Check  `json:"checks,omitempty"`
}

// ReturnValue reads the return metric, preferring "returns" whenever that key
// is present, even at zero.
func (m Metrics) ReturnValue() float64 {
	switch {
	case m.Returns != nil:
		return *m.Returns
	case m.Return != nil:
		return *m.Return
	}
	return 0
}

// Code is an expression that arrives either as a bare string or as {"code": "..."}.
type Code string

func (c *Code) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Code(s)
		return nil
	}
	var obj struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*c = Code(obj.Code)
	return nil
}

// Candidate is a previously simulated alpha as returned by the inventory listing.
type Candidate struct {
	ID          string   `json:"id"`
	AlphaID     string   `json:"alphaId,omitempty"`
	Alpha       string   `json:"alpha,omitempty"`
	Name        string   `json:"name,omitempty"`
	Status      string   `json:"status,omitempty"`
	DateCreated string   `json:"dateCreated,omitempty"`
	Regular     Code     `json:"regular"`
	IS          *Metrics `json:"is"`
}

// Identifier resolves the first non-empty of id, alphaId, alpha and name.
func (c Candidate) Identifier() string {
	for _, v := range []string{c.ID, c.AlphaID, c.Alpha, c.Name} {
		if v != "" {
			return v
		}
	}
	return ""
}

// Metrics never returns nil.
func (c Candidate) Metrics() Metrics {
	if c.IS == nil {
		return Metrics{}
	}
	return *c.IS
}

// HasFailingChecks reports whether any in-sample check failed.
func (c Candidate) HasFailingChecks() bool {
	return len(FailingChecks(c.Metrics().Checks)) > 0
}

// Thresholds is the quality gate applied to fetched candidates.
type Thresholds struct {
	MinSharpe  float64 `yaml:"min_sharpe" json:"min_sharpe"`
	MinFitness float64 `yaml:"min_fitness" json:"min_fitness"`
	MinReturn  float64 `yaml:"min_return" json:"min_return"`
}

// Allows reports whether c meets every threshold.
func (t Thresholds) Allows(c Candidate) bool {
	m := c.Metrics()
	return m.Sharpe >= t.MinSharpe &&
		m.Fitness >= t.MinFitness &&
		m.ReturnValue() >= t.MinReturn
}

// Codes extracts the non-empty expressions of candidates, preserving order.
func Codes(candidates []Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Regular != "" {
			out = append(out, string(c.Regular))
		}
	}
	return out
}
