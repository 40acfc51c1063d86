// Package simulation submits expression records to the evaluation service one
// at a time, polls each to a terminal outcome and drives per-item retry and
// re-authentication.
//
// Per item the states run PENDING → SUBMITTED → POLLING → terminal. Any error
// while submitting or polling sends the item back to PENDING after a fixed
// delay and retries it from the submit step. When the failures reach the
// tolerance the session is re-authenticated once and the count starts over; a
// second exhaustion skips the item. A failed re-authentication aborts the batch.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alphaforge/internal/alpha"
	"alphaforge/internal/brain"
	"alphaforge/internal/ledger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrReauthentication wraps the sign-in failure that aborted a batch.
var ErrReauthentication = errors.New("re-authentication failed")

// errNoPayload marks a poll that reported ready without a terminal payload.
var errNoPayload = errors.New("poll returned no terminal payload")

// Remote is the evaluation service as seen by the pipeline.
type Remote interface {
	CreateSimulation(ctx context.Context, sess *brain.Session, rec alpha.Record) (string, error)
	PollSimulation(ctx context.Context, sess *brain.Session, handle string) (brain.Progress, error)
}

// Authenticator produces a fresh session.
type Authenticator interface {
	SignIn(ctx context.Context) (*brain.Session, error)
}

// Ledger receives one entry per terminal outcome.
type Ledger interface {
	Append(entry ledger.Entry) error
}

// Options tune the pipeline. Zero values take the defaults.
type Options struct {
	// Tolerance is the number of failed attempts before re-authenticating (3).
	Tolerance int
	// RetryDelay is the fixed pause after every failed attempt (5s).
	RetryDelay time.Duration
	// PollTimeout bounds the server-directed waiting per submission. Zero polls
	// until the service answers.
	PollTimeout time.Duration

	Sleep    brain.Sleeper
	Logger   *zap.Logger
	Observer func(Outcome)
	RunID    string
}

// DefaultOptions returns the default tolerance and retry delay.
func DefaultOptions() Options {
	return Options{Tolerance: 3, RetryDelay: 5 * time.Second}
}

// Pipeline owns the session handle and swaps it on re-authentication. It is
// not safe for concurrent use.
type Pipeline struct {
	remote  Remote
	auth    Authenticator
	ledger  Ledger
	session *brain.Session
	opts    Options
	logger  *zap.Logger
}

// New creates a pipeline. A nil session is obtained from auth on first use; a
// nil ledger records nothing.
func New(remote Remote, auth Authenticator, lg Ledger, session *brain.Session, opts Options) *Pipeline {
	def := DefaultOptions()
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
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
	return &Pipeline{
		remote:  remote,
		auth:    auth,
		ledger:  lg,
		session: session,
		opts:    opts,
		logger:  opts.Logger.With(zap.String("run_id", opts.RunID)),
	}
}

// Session returns the current session handle.
func (p *Pipeline) Session() *brain.Session {
	return p.session
}

// RunID returns the identifier stamped on every ledger entry of this pipeline.
func (p *Pipeline) RunID() string {
	return p.opts.RunID
}

// SubmitAll processes records in order. The report is always returned; on a
// fatal error it covers the items finished before the abort and the error is
// returned as well.
func (p *Pipeline) SubmitAll(ctx context.Context, records []alpha.Record) (*Report, error) {
	report := &Report{RunID: p.opts.RunID}
	p.logger.Info("batch started", zap.Int("items", len(records)))

	for i, rec := range records {
		out, err := p.Submit(ctx, i, rec)
		if err != nil {
			report.Aborted = err
			p.logger.Error("batch aborted",
				zap.Int("index", i), zap.Int("processed", report.Processed()), zap.Error(err))
			return report, err
		}
		report.add(out)
	}

	p.logger.Info("batch complete",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed_checks", report.FailedChecks),
		zap.Int("skipped", report.Skipped),
		zap.Int("timed_out", report.TimedOut))
	return report, nil
}

// Submit drives one record to a terminal outcome. The only errors returned are
// fatal ones: a failed re-authentication or a cancelled context.
func (p *Pipeline) Submit(ctx context.Context, index int, rec alpha.Record) (Outcome, error) {
	if p.session == nil {
		sess, err := p.auth.SignIn(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrReauthentication, err)
		}
		p.session = sess
	}

	start := time.Now()
	att := &Attempt{Index: index, State: Pending}
	log := p.logger.With(zap.Int("index", index))

	for {
		out, err := p.attempt(ctx, att, rec, log)
		if err == nil {
			out.Elapsed = time.Since(start)
			p.finish(rec, out, log)
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}

		att.Failures++
		att.LastErr = err
		att.State = Pending
		log.Warn("attempt failed",
			zap.Int("attempt", att.Failures), zap.Int("tolerance", p.opts.Tolerance), zap.Error(err))

		if err := p.opts.Sleep(ctx, p.opts.RetryDelay); err != nil {
			return Outcome{}, err
		}
		if att.Failures < p.opts.Tolerance {
			continue
		}

		if !att.Reauthenticated {
			log.Warn("retry limit reached, re-authenticating")
			sess, err := p.auth.SignIn(ctx)
			if err != nil {
				log.Error("re-authentication failed", zap.Error(err))
				return Outcome{}, fmt.Errorf("%w: %v", ErrReauthentication, err)
			}
			p.session = sess
			att.Reauthenticated = true
			att.Failures = 0
			att.State = Reauthenticated
			continue
		}

		att.State = Skipped
		out = p.outcome(att, rec, Skipped)
		out.Error = att.LastErr.Error()
		out.Elapsed = time.Since(start)
		log.Error("skipping item after re-authenticated retries", zap.String("regular", rec.Regular))
		p.finish(rec, out, log)
		return out, nil
	}
}

// attempt runs one submit-and-poll cycle. A nil error always comes with a
// terminal outcome.
func (p *Pipeline) attempt(ctx context.Context, att *Attempt, rec alpha.Record, log *zap.Logger) (Outcome, error) {
	att.State = Submitted
	att.Submits++
	handle, err := p.remote.CreateSimulation(ctx, p.session, rec)
	if err != nil {
		return Outcome{}, err
	}
	att.Handle = handle
	att.State = Polling
	log.Info("item submitted", zap.String("handle", handle), zap.Int("submit", att.Submits))

	var waited time.Duration
	for {
		progress, err := p.remote.PollSimulation(ctx, p.session, handle)
		if err != nil {
			return Outcome{}, err
		}
		if progress.Wait <= 0 {
			if progress.Result == nil {
				return Outcome{}, errNoPayload
			}
			return p.classify(att, rec, progress.Result, log), nil
		}

		if p.opts.PollTimeout > 0 && waited+progress.Wait > p.opts.PollTimeout {
			att.State = TimedOut
			log.Warn("poll timeout", zap.String("handle", handle), zap.Duration("waited", waited))
			out := p.outcome(att, rec, TimedOut)
			out.Error = fmt.Sprintf("no terminal payload within %s", p.opts.PollTimeout)
			return out, nil
		}

		log.Debug("not ready", zap.String("handle", handle), zap.Duration("wait", progress.Wait))
		if err := p.opts.Sleep(ctx, progress.Wait); err != nil {
			return Outcome{}, err
		}
		waited += progress.Wait
	}
}

func (p *Pipeline) classify(att *Attempt, rec alpha.Record, result *brain.SimulationResult, log *zap.Logger) Outcome {
	failed := alpha.FailingChecks(result.Checks())
	state := Succeeded
	if len(failed) > 0 {
		state = FailedChecks
	}
	att.State = state

	out := p.outcome(att, rec, state)
	out.AlphaID = result.Alpha
	out.FailedChecks = failed
	out.Result = result
	log.Info("simulation complete",
		zap.String("alpha_id", result.Alpha), zap.Stringer("state", state), zap.Int("failed_checks", len(failed)))
	return out
}

func (p *Pipeline) outcome(att *Attempt, rec alpha.Record, state State) Outcome {
	return Outcome{
		Index:           att.Index,
		State:           state,
		Handle:          att.Handle,
		Regular:         rec.Regular,
		Submits:         att.Submits,
		Reauthenticated: att.Reauthenticated,
	}
}

// finish logs the outcome durably and notifies the observer. A ledger write
// failure is reported but does not stop the batch.
func (p *Pipeline) finish(rec alpha.Record, out Outcome, log *zap.Logger) {
	if p.ledger != nil {
		entry := ledger.NewEntry(out.Key(rec), out.State.String(), p.opts.RunID, out)
		if err := p.ledger.Append(entry); err != nil {
			log.Error("failed to record outcome", zap.Error(err))
		}
	}
	if p.opts.Observer != nil {
		p.opts.Observer(out)
	}
}
