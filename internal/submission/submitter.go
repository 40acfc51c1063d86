// Package submission promotes already-simulated alphas to production: it
// requests submission, monitors the service until it answers, records the
// answer in the ledger and classifies it.
package submission

import (
	"context"
	"time"

	"alphaforge/internal/alpha"
	"alphaforge/internal/brain"
	"alphaforge/internal/ledger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result values of a submission outcome.
const (
	Passed   = "PASSED"
	Failed   = "FAILED"
	TimedOut = "TIMED_OUT"
	Rejected = "REJECTED" // the submit request itself was refused
)

// Remote is the part of the service the submitter talks to.
type Remote interface {
	SubmitAlpha(ctx context.Context, sess *brain.Session, id string) error
	SubmissionStatus(ctx context.Context, sess *brain.Session, id string) (brain.SubmissionPoll, error)
}

// Pager walks the candidate inventory one page at a time.
type Pager interface {
	EachPage(ctx context.Context, sess *brain.Session, fn func(page []alpha.Candidate) bool) error
}

// Ledger receives the monitor result of every accepted submission.
type Ledger interface {
	Append(entry ledger.Entry) error
}

// Options tune the submitter.
type Options struct {
	MonitorAttempts int
	MonitorInterval time.Duration
	// BatchSize caps the submissions taken from each inventory page.
	BatchSize int

	Sleep  brain.Sleeper
	Logger *zap.Logger
	RunID  string
}

// DefaultOptions: 30 monitor polls 10s apart, 5 submissions per page.
func DefaultOptions() Options {
	return Options{MonitorAttempts: 30, MonitorInterval: 10 * time.Second, BatchSize: 5}
}

// Outcome is the result of submitting one alpha.
type Outcome struct {
	AlphaID string         `json:"alpha_id"`
	Result  string         `json:"result"`
	Payload map[string]any `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Passed reports whether the submission went through.
func (o Outcome) Passed() bool { return o.Result == Passed }

// Report summarises a filtered submission run.
type Report struct {
	RunID      string
	Considered int
	Outcomes   []Outcome
	Passed     int
}

// Submitter submits alphas one at a time.
type Submitter struct {
	remote Remote
	ledger Ledger
	opts   Options
	logger *zap.Logger
}

// New creates a submitter. A nil ledger records nothing.
func New(remote Remote, lg Ledger, opts Options) *Submitter {
	def := DefaultOptions()
	if opts.MonitorAttempts <= 0 {
		opts.MonitorAttempts = def.MonitorAttempts
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = def.MonitorInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Sleep == nil {
		opts.Sleep = brain.Sleep
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Submitter{
		remote: remote,
		ledger: lg,
		opts:   opts,
		logger: opts.Logger.With(zap.String("run_id", opts.RunID)),
	}
}

// SubmitOne submits id and waits for the service's verdict. Only a cancelled
// context is returned as an error; every other failure is an outcome.
func (s *Submitter) SubmitOne(ctx context.Context, sess *brain.Session, id string) (Outcome, error) {
	log := s.logger.With(zap.String("alpha_id", id))
	log.Info("submitting alpha")

	if err := s.remote.SubmitAlpha(ctx, sess, id); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		log.Error("submit request refused", zap.Error(err))
		return Outcome{AlphaID: id, Result: Rejected, Error: err.Error()}, nil
	}

	payload, err := s.Monitor(ctx, sess, id)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{AlphaID: id, Payload: payload, Result: Failed}
	switch {
	case payload["status"] == "timeout":
		out.Result = TimedOut
	case Accepted(payload):
		out.Result = Passed
	}
	if msg, ok := payload["error"].(string); ok {
		out.Error = msg
	}

	if s.ledger != nil {
		if err := s.ledger.Append(ledger.NewEntry(id, out.Result, s.opts.RunID, payload)); err != nil {
			log.Error("failed to record submission", zap.Error(err))
		}
	}
	if out.Passed() {
		log.Info("submission passed")
	} else {
		log.Warn("submission did not pass", zap.String("result", out.Result))
	}
	return out, nil
}

// Monitor polls the submission until the service answers or the attempts run
// out, in which case {"status": "timeout"} is returned. Poll errors only cost
// an attempt.
func (s *Submitter) Monitor(ctx context.Context, sess *brain.Session, id string) (map[string]any, error) {
	for attempt := 1; attempt <= s.opts.MonitorAttempts; attempt++ {
		poll, err := s.remote.SubmissionStatus(ctx, sess, id)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Warn("monitor attempt failed",
				zap.String("alpha_id", id), zap.Int("attempt", attempt), zap.Error(err))
		case !poll.Pending:
			return poll.Result, nil
		default:
			s.logger.Debug("submission still pending", zap.String("alpha_id", id), zap.Int("attempt", attempt))
		}
		if err := s.opts.Sleep(ctx, s.opts.MonitorInterval); err != nil {
			return nil, err
		}
	}
	s.logger.Error("submission monitor timed out", zap.String("alpha_id", id))
	return map[string]any{"status": "timeout", "error": "monitor timed out"}, nil
}

// SubmitFiltered walks the inventory and, per page, submits the first
// BatchSize candidates that th allows.
func (s *Submitter) SubmitFiltered(ctx context.Context, sess *brain.Session, pages Pager, th alpha.Thresholds) (*Report, error) {
	report := &Report{RunID: s.opts.RunID}
	var fatal error

	err := pages.EachPage(ctx, sess, func(page []alpha.Candidate) bool {
		var allowed []alpha.Candidate
		for _, c := range page {
			if th.Allows(c) {
				allowed = append(allowed, c)
			}
		}
		s.logger.Info("filtered alphas", zap.Int("kept", len(allowed)), zap.Int("candidates", len(page)))

		if len(allowed) > s.opts.BatchSize {
			allowed = allowed[:s.opts.BatchSize]
		}
		for _, c := range allowed {
			id := c.Identifier()
			if id == "" {
				continue
			}
			report.Considered++
			out, err := s.SubmitOne(ctx, sess, id)
			if err != nil {
				fatal = err
				return false
			}
			report.Outcomes = append(report.Outcomes, out)
			if out.Passed() {
				report.Passed++
			}
		}
		return true
	})
	if fatal == nil {
		fatal = err
	}

	s.logger.Info("finished submitting", zap.Int("passed", report.Passed), zap.Int("submitted", len(report.Outcomes)))
	return report, fatal
}

// Accepted reports whether a monitor payload means the submission went
// through: not marked failed or timed out, and no FAIL among its in-sample checks.
func Accepted(payload map[string]any) bool {
	if payload == nil {
		return false
	}
	switch payload["status"] {
	case "failed", "timeout":
		return false
	}
	is, _ := payload["is"].(map[string]any)
	checks, _ := is["checks"].([]any)
	for _, raw := range checks {
		check, _ := raw.(map[string]any)
		if result, _ := check["result"].(string); result == alpha.CheckFail {
			return false
		}
	}
	return true
}
