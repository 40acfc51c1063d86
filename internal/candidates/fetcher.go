// Package candidates pages through the user's alpha inventory and keeps the
// items that pass a quality predicate.
package candidates

import (
	"context"
	"time"

	"alphaforge/internal/alpha"
	"alphaforge/internal/brain"

	"go.uber.org/zap"
)

// Lister fetches one inventory page. Rate-limit waits happen inside it.
type Lister interface {
	ListAlphas(ctx context.Context, sess *brain.Session, page brain.Page) ([]alpha.Candidate, error)
}

// Options shape the paging.
type Options struct {
	MaxItems int
	PageSize int
	// MaxRetries bounds the attempts per page; when they are used up paging
	// stops with what was collected. Zero retries forever.
	MaxRetries int
	RetryDelay time.Duration
	Status     string
	Order      string

	Sleep  brain.Sleeper
	Logger *zap.Logger
}

// DefaultOptions mirrors the fetch defaults: 180 items in pages of 100,
// newest unsubmitted first, three tries per page a minute apart.
func DefaultOptions() Options {
	return Options{
		MaxItems:   180,
		PageSize:   100,
		MaxRetries: 3,
		RetryDelay: 60 * time.Second,
		Status:     "UNSUBMITTED",
		Order:      "-dateCreated",
	}
}

// Fetcher pages through the inventory.
type Fetcher struct {
	lister Lister
	opts   Options
	logger *zap.Logger
}

// New creates a fetcher.
func New(lister Lister, opts Options) *Fetcher {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultOptions().PageSize
	}
	if opts.Sleep == nil {
		opts.Sleep = brain.Sleep
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Fetcher{lister: lister, opts: opts, logger: opts.Logger}
}

// EachPage calls fn with every non-empty page in order until MaxItems are
// covered, the service returns an empty page, a page cannot be fetched within
// MaxRetries, or fn returns false. Only context errors are returned.
func (f *Fetcher) EachPage(ctx context.Context, sess *brain.Session, fn func(page []alpha.Candidate) bool) error {
	offset := 0
	for offset < f.opts.MaxItems {
		limit := min(f.opts.PageSize, f.opts.MaxItems-offset)
		req := brain.Page{
			Limit:  limit,
			Offset: offset,
			Status: f.opts.Status,
			Order:  f.opts.Order,
		}
		f.logger.Info("fetching alphas", zap.Int("limit", limit), zap.Int("offset", offset))

		results, ok, err := f.fetchPage(ctx, sess, req)
		if err != nil {
			return err
		}
		if !ok {
			f.logger.Warn("giving up on page", zap.Int("offset", offset))
			return nil
		}
		if len(results) == 0 {
			f.logger.Info("no more alphas returned by server")
			return nil
		}
		if !fn(results) {
			return nil
		}
		offset += limit
	}
	return nil
}

func (f *Fetcher) fetchPage(ctx context.Context, sess *brain.Session, req brain.Page) ([]alpha.Candidate, bool, error) {
	for attempt := 1; f.opts.MaxRetries <= 0 || attempt <= f.opts.MaxRetries; attempt++ {
		results, err := f.lister.ListAlphas(ctx, sess, req)
		if err == nil {
			return results, true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		f.logger.Warn("fetch failed",
			zap.Int("attempt", attempt), zap.Int("offset", req.Offset), zap.Error(err))
		if err := f.opts.Sleep(ctx, f.opts.RetryDelay); err != nil {
			return nil, false, err
		}
	}
	return nil, false, nil
}

// Fetch collects the items accepted by pred across all pages. A nil pred
// accepts everything.
func (f *Fetcher) Fetch(ctx context.Context, sess *brain.Session, pred func(alpha.Candidate) bool) ([]alpha.Candidate, error) {
	var collected []alpha.Candidate
	err := f.EachPage(ctx, sess, func(page []alpha.Candidate) bool {
		for _, c := range page {
			if pred == nil || pred(c) {
				collected = append(collected, c)
			}
		}
		return true
	})
	f.logger.Info("fetch complete", zap.Int("collected", len(collected)))
	return collected, err
}
