package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"alphaforge/internal/alpha"

	"go.uber.org/zap"
)

// Terminal simulation statuses that mean the job itself failed.
const (
	StatusComplete = "COMPLETE"
	StatusErrored  = "ERROR"
	StatusFail     = "FAIL"
)

// SimulationCheck is the synthetic check name recorded when a simulation ends
// in ERROR or FAIL instead of producing an alpha.
const SimulationCheck = "SIMULATION"

// SimulationResult is the terminal payload of a simulation.
type SimulationResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Alpha   string `json:"alpha"`
	Message string `json:"message,omitempty"`

	// Details is the alpha the simulation produced, fetched separately.
	Details *alpha.Candidate `json:"details,omitempty"`
}

// Checks returns every check that applies to the result. A failed simulation
// contributes one failing SIMULATION check.
func (r *SimulationResult) Checks() []alpha.Check {
	var checks []alpha.Check
	switch strings.ToUpper(r.Status) {
	case StatusErrored, StatusFail:
		checks = append(checks, alpha.Check{
			Name:    SimulationCheck,
			Result:  alpha.CheckFail,
			Message: r.Message,
		})
	}
	if r.Details != nil {
		checks = append(checks, r.Details.Metrics().Checks...)
	}
	return checks
}

// Progress is one poll observation. A positive Wait means not ready yet.
type Progress struct {
	Wait   time.Duration
	Result *SimulationResult
}

// Done reports whether the terminal payload is available.
func (p Progress) Done() bool {
	return p.Wait <= 0 && p.Result != nil
}

// CreateSimulation submits rec and returns its progress handle. The handle is
// the Location header; its absence is an error whatever the status code.
func (c *Client) CreateSimulation(ctx context.Context, sess *Session, rec alpha.Record) (string, error) {
	resp, body, err := c.do(ctx, sess, http.MethodPost, "/simulations", nil, rec)
	if err != nil {
		return "", err
	}
	handle := resp.Header.Get("Location")
	if handle == "" {
		return "", newStatusError("create simulation", resp.StatusCode, body, ErrMissingHandle)
	}
	c.logger.Debug("simulation created", zap.String("handle", handle))
	return handle, nil
}

// PollSimulation fetches the progress handle once. When the service names the
// resulting alpha, its details are fetched so the checks can be classified.
func (c *Client) PollSimulation(ctx context.Context, sess *Session, handle string) (Progress, error) {
	resp, body, err := c.do(ctx, sess, http.MethodGet, handle, nil, nil)
	if err != nil {
		return Progress{}, err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Progress{}, newStatusError("poll simulation", resp.StatusCode, body, ErrUnexpectedStatus)
	}

	wait, err := retryAfter(resp.Header)
	if err != nil {
		return Progress{}, err
	}
	if wait > 0 {
		return Progress{Wait: wait}, nil
	}

	var result SimulationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return Progress{}, fmt.Errorf("failed to parse simulation result: %w", err)
	}

	if result.Alpha != "" {
		details, err := c.GetAlpha(ctx, sess, result.Alpha)
		if err != nil {
			return Progress{}, err
		}
		result.Details = &details
	}
	return Progress{Result: &result}, nil
}

// GetAlpha fetches one alpha with its in-sample metrics and checks.
func (c *Client) GetAlpha(ctx context.Context, sess *Session, id string) (alpha.Candidate, error) {
	resp, body, err := c.do(ctx, sess, http.MethodGet, "/alphas/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return alpha.Candidate{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return alpha.Candidate{}, newStatusError("get alpha", resp.StatusCode, body, ErrUnexpectedStatus)
	}
	var cand alpha.Candidate
	if err := json.Unmarshal(body, &cand); err != nil {
		return alpha.Candidate{}, fmt.Errorf("failed to parse alpha: %w", err)
	}
	return cand, nil
}
