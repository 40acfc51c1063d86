package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"alphaforge/internal/alpha"

	"go.uber.org/zap"
)

// Page selects one slice of the user's alpha inventory.
type Page struct {
	Limit  int
	Offset int
	Status string // e.g. UNSUBMITTED
	Order  string // e.g. -dateCreated
	Hidden bool
}

func (p Page) query() url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(p.Offset))
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Order != "" {
		q.Set("order", p.Order)
	}
	q.Set("hidden", strconv.FormatBool(p.Hidden))
	return q
}

type alphaPage struct {
	Count   int               `json:"count"`
	Results []alpha.Candidate `json:"results"`
}

// ListAlphas fetches one inventory page. A 429 is waited out (Retry-After,
// else the configured fallback) and the same page is requested again; those
// waits are not failures and are not counted.
func (c *Client) ListAlphas(ctx context.Context, sess *Session, page Page) ([]alpha.Candidate, error) {
	for {
		resp, body, err := c.do(ctx, sess, http.MethodGet, "/users/self/alphas", page.query(), nil)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait, err := retryAfter(resp.Header)
			if err != nil || wait <= 0 {
				wait = c.cfg.RateLimitWait
			}
			c.logger.Info("rate limited", zap.Duration("wait", wait), zap.Int("offset", page.Offset))
			if err := c.Sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, newStatusError("list alphas", resp.StatusCode, body, ErrUnexpectedStatus)
		}

		var data alphaPage
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("failed to parse alpha page: %w", err)
		}
		return data.Results, nil
	}
}

// SubmitAlpha requests production submission of an alpha. The service answers 201.
func (c *Client) SubmitAlpha(ctx context.Context, sess *Session, id string) error {
	resp, body, err := c.do(ctx, sess, http.MethodPost, submitPath(id), nil, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated {
		return newStatusError("submit alpha", resp.StatusCode, body, ErrUnexpectedStatus)
	}
	return nil
}

// SubmissionPoll is one observation of a production submission.
type SubmissionPoll struct {
	// Pending is set while the service answers with an empty body.
	Pending bool
	// Result is the terminal payload. A non-200 answer is reported as
	// {"status": "failed", "error": <body>}.
	Result map[string]any
}

// SubmissionStatus checks on a submission once.
func (c *Client) SubmissionStatus(ctx context.Context, sess *Session, id string) (SubmissionPoll, error) {
	resp, body, err := c.do(ctx, sess, http.MethodGet, submitPath(id), nil, nil)
	if err != nil {
		return SubmissionPoll{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return SubmissionPoll{Result: map[string]any{
			"status": "failed",
			"error":  string(body),
		}}, nil
	}

	if strings.TrimSpace(string(body)) == "" {
		return SubmissionPoll{Pending: true}, nil
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return SubmissionPoll{}, fmt.Errorf("failed to parse submission status: %w", err)
	}
	return SubmissionPoll{Result: result}, nil
}

func submitPath(id string) string {
	return "/alphas/" + url.PathEscape(id) + "/submit"
}
