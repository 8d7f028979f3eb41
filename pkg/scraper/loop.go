package scraper

import (
	"context"
	"time"

	"ttscraper/pkg/checkpoint"
	"ttscraper/pkg/config"
	"ttscraper/pkg/dedup"
	errs "ttscraper/pkg/errors"
	"ttscraper/pkg/logger"
	"ttscraper/pkg/models"
	"ttscraper/pkg/retry"
)

type loopState int

const (
	stateResumeCheck loopState = iota
	stateFetching
	stateSuccess
	stateFailure
	stateRotating
	stateDone
)

// Loop drives one target from its first (or checkpointed) page to
// exhaustion, the item cap, or a fatal failure. A Loop is owned by a single
// worker and is not safe for concurrent use.
type Loop struct {
	WorkerID int
	Fetcher  BatchFetcher
	Tokens   TokenSource
	// Rotator may be nil when no proxy is configured
	Rotator ProxyRotator
	// Store may be nil to disable checkpointing
	Store  CheckpointStore
	Config config.FetchConfig
	Logger logger.Logger

	// sleep pauses between requests; retry.Wait unless replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// run holds the mutable state of one Run call
type run struct {
	target models.Target
	log    logger.Logger

	items       []models.Item
	seen        dedup.Set
	cursor      int64
	batchNumber int
	resumed     bool

	failures   int
	rotations  int
	duplicates int
	page       models.BatchResult

	fatal       error
	interrupted bool
}

// Run fetches every item of target. Failures are recovered locally; the
// outcome, including a fatal error marker, is reported in the result.
func (l *Loop) Run(ctx context.Context, target models.Target) models.TargetResult {
	start := time.Now()
	cfg := l.normalizedConfig()
	sleep := l.sleep
	if sleep == nil {
		sleep = retry.Wait
	}
	baseLog := l.Logger
	if baseLog == nil {
		baseLog = logger.NewNopLogger()
	}

	r := &run{
		target: target,
		log:    logger.ForWorker(baseLog, l.WorkerID, target.ID),
		seen:   dedup.NewSet(nil),
	}

	state := stateResumeCheck
	for state != stateDone {
		switch state {
		case stateResumeCheck:
			l.resume(r)
			state = stateFetching

		case stateFetching:
			if ctx.Err() != nil {
				r.interrupted = true
				state = stateDone
				continue
			}
			state = l.fetch(ctx, r, cfg, sleep)

		case stateSuccess:
			state = l.processSuccess(ctx, r, cfg, sleep)

		case stateFailure:
			state = l.processFailure(ctx, r, cfg, sleep)

		case stateRotating:
			state = l.rotate(ctx, r, cfg, sleep)
		}
	}

	return l.finish(r, cfg, start)
}

func (l *Loop) normalizedConfig() config.FetchConfig {
	cfg := l.Config
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = int(^uint(0) >> 1)
	}
	if cfg.SaveEveryNBatches <= 0 {
		cfg.SaveEveryNBatches = 1
	}
	return cfg
}

// resume restores items, seen ids, cursor and batch number from a
// non-complete checkpoint. Counters always start from zero.
func (l *Loop) resume(r *run) {
	if l.Store == nil {
		return
	}
	cp := l.Store.Load(l.WorkerID, r.target.ID)
	if cp == nil {
		return
	}
	if cp.IsComplete {
		r.log.Debug("Previous run completed, starting fresh")
		return
	}

	r.items = append([]models.Item(nil), cp.Items...)
	r.seen = dedup.NewSet(cp.SeenIDs)
	for _, it := range r.items {
		if id := it.ID(); id != "" {
			r.seen[id] = struct{}{}
		}
	}
	r.cursor = cp.Cursor
	r.batchNumber = cp.BatchNumber
	r.resumed = true

	r.log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
		"items":  len(r.items),
		"cursor": r.cursor,
		"batch":  r.batchNumber,
	})
}

func (l *Loop) fetch(ctx context.Context, r *run, cfg config.FetchConfig, sleep func(context.Context, time.Duration) error) loopState {
	// every iteration counts, including one that never got a token
	r.batchNumber++

	issued := l.Tokens.TokensIssued()
	token, err := l.Tokens.Get(ctx, false)
	if err != nil {
		if ctx.Err() != nil {
			r.interrupted = true
			return stateDone
		}
		r.failures++
		logger.LogTokenRefresh(r.log, r.batchNumber, "", err)
		if r.failures >= cfg.MaxRetries {
			r.fatal = errs.Wrap(errs.ErrorTypePerTargetFatal, "token acquisition failed repeatedly", err)
			return stateDone
		}
		if sleep(ctx, cfg.RetryDelay) != nil {
			r.interrupted = true
			return stateDone
		}
		return stateFetching
	}
	if l.Tokens.TokensIssued() > issued {
		logger.LogTokenRefresh(r.log, r.batchNumber, token.Short(), nil)
	}

	logger.LogBatch(r.log, r.batchNumber, r.cursor, token.Short(), len(r.items))

	r.page = l.Fetcher.Fetch(ctx, r.target.ID, r.cursor, token.Value)
	switch {
	case r.page.Success:
		return stateSuccess
	case ctx.Err() != nil:
		r.interrupted = true
		return stateDone
	case r.page.Exhausted:
		r.log.InfoWithFields("No more comments", map[string]interface{}{"batch": r.batchNumber})
		return stateDone
	default:
		return stateFailure
	}
}

func (l *Loop) processSuccess(ctx context.Context, r *run, cfg config.FetchConfig, sleep func(context.Context, time.Duration) error) loopState {
	fresh, dups := dedup.FilterNew(r.page.Items, r.seen)
	r.items = append(r.items, fresh...)
	r.duplicates += dups
	l.Tokens.MarkBatchServed()
	r.failures = 0

	if dups > 0 {
		r.log.DebugWithFields("Skipped duplicates", map[string]interface{}{
			"batch":      r.batchNumber,
			"duplicates": dups,
			"new":        len(fresh),
		})
	}

	if len(r.items) >= cfg.MaxItems {
		r.log.InfoWithFields("Item limit reached", map[string]interface{}{"limit": cfg.MaxItems})
		return stateDone
	}
	if !r.page.HasMore {
		r.log.InfoWithFields("No more comments", map[string]interface{}{"batch": r.batchNumber})
		return stateDone
	}

	// a regressing cursor would refetch pages already seen
	if r.page.NextCursor > r.cursor {
		r.cursor = r.page.NextCursor
	} else {
		r.cursor += int64(len(r.page.Items))
	}

	if r.batchNumber%cfg.SaveEveryNBatches == 0 {
		l.save(r, false)
	}

	if sleep(ctx, cfg.CourtesyDelay) != nil {
		r.interrupted = true
		return stateDone
	}
	return stateFetching
}

func (l *Loop) processFailure(ctx context.Context, r *run, cfg config.FetchConfig, sleep func(context.Context, time.Duration) error) loopState {
	r.failures++
	logger.LogBatchFailure(r.log, r.batchNumber, r.failures, cfg.MaxRetries, r.page.Err)

	if r.failures < cfg.MaxRetries {
		if sleep(ctx, cfg.RetryDelay) != nil {
			r.interrupted = true
			return stateDone
		}
		return stateFetching
	}

	if cfg.MaxRotations > 0 && r.rotations >= cfg.MaxRotations {
		cause := r.page.Err
		if cause == nil {
			cause = errs.New(errs.ErrorTypeBatchFetch, "batch fetch failed")
		}
		r.fatal = errs.Wrap(errs.ErrorTypePerTargetFatal, "retries and rotations exhausted", cause)
		return stateDone
	}
	return stateRotating
}

func (l *Loop) rotate(ctx context.Context, r *run, cfg config.FetchConfig, sleep func(context.Context, time.Duration) error) loopState {
	r.rotations++

	if l.Rotator != nil {
		ip, ok := l.Rotator.Rotate(ctx)
		logger.LogRotation(r.log, r.rotations, ip, ok)
	} else {
		r.log.DebugWithFields("No proxy configured, refreshing token only", map[string]interface{}{
			"rotation": r.rotations,
		})
	}

	l.Tokens.Invalidate()
	token, err := l.Tokens.Get(ctx, true)
	if err != nil {
		logger.LogTokenRefresh(r.log, r.batchNumber, "", err)
	} else {
		logger.LogTokenRefresh(r.log, r.batchNumber, token.Short(), nil)
	}

	r.failures = 0
	l.save(r, false)

	if sleep(ctx, cfg.RetryDelay) != nil {
		r.interrupted = true
		return stateDone
	}
	return stateFetching
}

func (l *Loop) finish(r *run, cfg config.FetchConfig, start time.Time) models.TargetResult {
	if len(r.items) > cfg.MaxItems {
		trimmed := r.items[cfg.MaxItems:]
		for _, it := range trimmed {
			r.seen.Remove(it.ID())
		}
		r.items = r.items[:cfg.MaxItems]
	}

	// fatal and interrupted runs stay resumable
	complete := r.fatal == nil && !r.interrupted
	l.save(r, complete)

	result := models.TargetResult{
		TargetID:          r.target.ID,
		Label:             r.target.Label,
		WorkerID:          l.WorkerID,
		TotalItems:        len(r.items),
		TotalBatches:      r.batchNumber,
		TokensIssued:      l.Tokens.TokensIssued(),
		ProxyRotations:    r.rotations,
		DuplicatesSkipped: r.duplicates,
		Resumed:           r.resumed,
		Interrupted:       r.interrupted,
		Elapsed:           time.Since(start),
		Items:             r.items,
	}
	if r.fatal != nil {
		result.Error = r.fatal.Error()
	} else if r.interrupted {
		r.log.Warn("Interrupted, progress saved for the next run")
	}

	logger.LogTargetSummary(r.log, result.TotalItems, result.DuplicatesSkipped, result.TokensIssued, result.ProxyRotations, result.Error)
	return result
}

func (l *Loop) save(r *run, final bool) {
	if l.Store == nil {
		return
	}
	cp := &checkpoint.Checkpoint{
		TargetID:    r.target.ID,
		WorkerID:    l.WorkerID,
		Label:       r.target.Label,
		BatchNumber: r.batchNumber,
		Cursor:      r.cursor,
		IsComplete:  final,
		SeenIDs:     r.seen.IDs(),
		Items:       r.items,
	}
	if err := l.Store.Save(cp); err != nil {
		r.log.WithError(err).Warn("Checkpoint save failed")
		return
	}
	logger.LogCheckpoint(r.log, len(r.items), r.batchNumber, final)
}
