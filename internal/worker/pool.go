package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"ttscraper/pkg/logger"
	"ttscraper/pkg/models"
)

// Job is one target assigned to a stable worker id
type Job struct {
	Target   models.Target
	WorkerID int
}

// Handler runs one job to completion
type Handler func(ctx context.Context, job Job) models.TargetResult

// Pool runs jobs on a fixed number of goroutines. Every submitted job
// produces exactly one result, including jobs whose handler panics.
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan models.TargetResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	handler     Handler
	logger      logger.Logger
}

// NewPool creates a pool of numWorkers goroutines. ctx is handed to every
// handler call; cancelling it stops new submissions.
func NewPool(ctx context.Context, numWorkers int, handler Handler, log logger.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan models.TargetResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		handler:     handler,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (p *Pool) Start() {
	p.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i + 1)
	}
}

// Stop closes the job queue, waits for queued jobs to finish and closes
// the result channel. Submit must not be called after Stop.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()

	p.logger.Debug("Worker pool stopped")
}

// Submit queues a job, blocking while the queue is full
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel. It must be drained for the pool to
// make progress.
func (p *Pool) Results() <-chan models.TargetResult {
	return p.resultQueue
}

func (p *Pool) worker(slot int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		p.resultQueue <- p.process(slot, job)
	}
}

// process runs the handler, converting a panic into an error result
func (p *Pool) process(slot int, job Job) (result models.TargetResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorWithFields("Worker recovered from panic", map[string]interface{}{
				"slot":     slot,
				"worker":   fmt.Sprintf("W%d", job.WorkerID),
				"video_id": job.Target.ID,
				"panic":    fmt.Sprint(r),
				"stack":    string(debug.Stack()),
			})
			result = models.TargetResult{
				TargetID: job.Target.ID,
				Label:    job.Target.Label,
				WorkerID: job.WorkerID,
				Error:    fmt.Sprintf("panic: %v", r),
				Elapsed:  time.Since(start),
			}
		}
	}()

	return p.handler(p.ctx, job)
}
