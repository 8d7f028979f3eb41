package scraper

import (
	"context"
	"time"

	"ttscraper/internal/worker"
	"ttscraper/pkg/auth"
	"ttscraper/pkg/config"
	errs "ttscraper/pkg/errors"
	"ttscraper/pkg/logger"
	"ttscraper/pkg/models"
	"ttscraper/pkg/proxy"
	"ttscraper/pkg/ratelimit"
	"ttscraper/pkg/tiktok"
)

// LoopFactory builds the loop that runs one target on one worker
type LoopFactory func(workerID int, target models.Target) (*Loop, error)

// Scraper runs one Loop per target on a bounded worker pool
type Scraper struct {
	config   config.Config
	proxy    *auth.ProxyAccount
	store    CheckpointStore
	logger   logger.Logger
	factory  LoopFactory
	onResult func(models.TargetResult)
}

// New creates a Scraper from a snapshot of cfg and account; later changes
// to either do not reach a running scrape. account may be nil to dial
// directly; store may be nil to disable checkpointing.
func New(cfg *config.Config, account *auth.ProxyAccount, store CheckpointStore, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Scraper{
		config: *cfg,
		store:  store,
		logger: log,
	}
	s.config.Targets = append([]config.TargetConfig(nil), cfg.Targets...)
	if account != nil {
		a := *account
		s.proxy = &a
	}
	s.factory = s.buildLoop
	return s
}

// SetLoopFactory replaces how per-target loops are built
func (s *Scraper) SetLoopFactory(f LoopFactory) {
	s.factory = f
}

// OnResult registers a callback invoked, from the Run goroutine, as each
// target finishes
func (s *Scraper) OnResult(f func(models.TargetResult)) {
	s.onResult = f
}

// Run fetches every target and blocks until each one produced a result.
// Worker ids are assigned 1-based in target order so checkpoints of a
// rerun with the same target list line up. Results are in completion order.
func (s *Scraper) Run(ctx context.Context, targets []models.Target) []models.TargetResult {
	logger.LogComponentStart(s.logger, "scraper", map[string]interface{}{
		"targets": len(targets),
		"workers": s.config.Fetch.MaxWorkers,
		"proxy":   s.proxy.String(),
	})

	pool := worker.NewPool(ctx, s.config.Fetch.MaxWorkers, s.runJob, s.logger)
	pool.Start()

	var skipped []models.TargetResult
	go func() {
		for i, target := range targets {
			job := worker.Job{Target: target, WorkerID: i + 1}
			if err := pool.Submit(job); err != nil {
				skipped = append(skipped, notStarted(job))
			}
		}
		pool.Stop()
	}()

	results := make([]models.TargetResult, 0, len(targets))
	for res := range pool.Results() {
		s.notify(res)
		results = append(results, res)
	}
	for _, res := range skipped {
		s.notify(res)
	}
	results = append(results, skipped...)

	reason := "completed"
	if ctx.Err() != nil {
		reason = "interrupted"
	}
	logger.LogComponentStop(s.logger, "scraper", reason)
	return results
}

// notStarted is the result of a target the pool refused during shutdown.
// It counts as failed so the operator sees that nothing was fetched.
func notStarted(job worker.Job) models.TargetResult {
	return models.TargetResult{
		TargetID:    job.Target.ID,
		Label:       job.Target.Label,
		WorkerID:    job.WorkerID,
		Error:       "not started: interrupted",
		Interrupted: true,
	}
}

func (s *Scraper) notify(res models.TargetResult) {
	if s.onResult != nil {
		s.onResult(res)
	}
}

func (s *Scraper) runJob(ctx context.Context, job worker.Job) models.TargetResult {
	start := time.Now()
	loop, err := s.factory(job.WorkerID, job.Target)
	if err != nil {
		err = errs.Wrap(errs.ErrorTypePerTargetFatal, "failed to set up worker", err)
		logger.ForWorker(s.logger, job.WorkerID, job.Target.ID).WithError(err).Error("Target skipped")
		return models.TargetResult{
			TargetID: job.Target.ID,
			Label:    job.Target.Label,
			WorkerID: job.WorkerID,
			Error:    err.Error(),
			Elapsed:  time.Since(start),
		}
	}
	return loop.Run(ctx, job.Target)
}

// buildLoop wires a worker's private transport, limiter, client, token
// provider and rotator.
func (s *Scraper) buildLoop(workerID int, target models.Target) (*Loop, error) {
	transport, err := proxy.NewTransport(s.proxy, s.config.API.ConnectTimeout)
	if err != nil {
		return nil, err
	}

	client := tiktok.NewClient(s.config.API, transport, ratelimit.New(s.config.RateLimit), s.logger)

	loop := &Loop{
		WorkerID: workerID,
		Fetcher:  tiktok.NewFetcher(client, s.config.Fetch.BatchSize, s.logger),
		Tokens:   auth.NewTokenProvider(client, s.config.Fetch.BatchesBeforeRefresh, s.config.API.TokenTimeout),
		Config:   s.config.Fetch,
		Logger:   s.logger,
	}
	if s.proxy.Enabled() {
		loop.Rotator = proxy.NewRotator(s.proxy, s.config.Proxy, transport, s.logger)
	}
	if s.store != nil && s.config.Checkpoint.Enabled {
		loop.Store = s.store
	}
	return loop, nil
}

// InitialIP reports the exit IP a worker would start from
func (s *Scraper) InitialIP(ctx context.Context) (string, error) {
	transport, err := proxy.NewTransport(s.proxy, s.config.API.ConnectTimeout)
	if err != nil {
		return "", err
	}
	defer transport.CloseIdleConnections()
	return proxy.NewRotator(s.proxy, s.config.Proxy, transport, s.logger).CurrentIP(ctx)
}
