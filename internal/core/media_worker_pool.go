package core

import (
	"context"
	"errors"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/nimda/waxmpp/internal/interfaces"
)

// MediaUploadJob is one outbound media send queued onto a MediaUploadPool:
// upload the file at Path, then send it to To as a message of MimeType.
type MediaUploadJob struct {
	To       string
	Path     string
	MimeType string
	Caption  string
}

// MediaUploadResult is the outcome of one MediaUploadJob.
type MediaUploadResult struct {
	Job          MediaUploadJob
	MessageID    string
	Success      bool
	Error        error
	TimeConsumed time.Duration
}

// mediaJobQueue is a simple drain-once queue; unlike SendQueue it is read by
// many worker goroutines concurrently rather than flushed by one.
type mediaJobQueue struct {
	mu   sync.Mutex
	jobs []MediaUploadJob
}

func newMediaJobQueue(jobs []MediaUploadJob) *mediaJobQueue {
	return &mediaJobQueue{jobs: jobs}
}

func (q *mediaJobQueue) next() (MediaUploadJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return MediaUploadJob{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

// mediaSender is the narrow surface MediaUploadPool needs from ApiSurface to
// avoid an api->core import (core must not depend on api).
type mediaSender interface {
	SendMediaJob(ctx context.Context, job MediaUploadJob) (string, error)
}

// MediaUploadPool runs a bounded set of workers draining a queue of media
// sends, rate-limited and with a circuit breaker on consecutive failures
// (e.g. the upload backend being unreachable) so a bad run doesn't spin
// every worker against a dead endpoint.
type MediaUploadPool struct {
	workers   int
	rateLimit time.Duration
	sender    mediaSender
	metrics   interfaces.Metrics

	maxConsecErrors int
	consecErrors    atomic32
	results         chan MediaUploadResult
	wg              sync.WaitGroup
}

// NewMediaUploadPool creates a pool of the given worker count, rate-limited
// to one upload per worker every rateLimit.
func NewMediaUploadPool(workers int, rateLimit time.Duration, sender mediaSender, metrics interfaces.Metrics) *MediaUploadPool {
	if metrics == nil {
		metrics = interfaces.NoopMetrics{}
	}
	return &MediaUploadPool{
		workers:         workers,
		rateLimit:       rateLimit,
		sender:          sender,
		metrics:         metrics,
		maxConsecErrors: 5,
		results:         make(chan MediaUploadResult, workers*2),
	}
}

// Results returns the channel every job's outcome is published to; closed
// once every worker has drained the queue.
func (p *MediaUploadPool) Results() <-chan MediaUploadResult {
	return p.results
}

// Run starts the worker pool against jobs and returns without waiting.
// Workers stop when the queue drains, ctx is cancelled, or the
// consecutive-error breaker trips; Results is closed once they all have.
func (p *MediaUploadPool) Run(ctx context.Context, jobs []MediaUploadJob) error {
	if len(jobs) == 0 {
		return errors.New("media upload pool: no jobs")
	}
	queue := newMediaJobQueue(jobs)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, queue)
	}
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
	return nil
}

// WaitForCompletion blocks until every worker has exited.
func (p *MediaUploadPool) WaitForCompletion() {
	p.wg.Wait()
}

func (p *MediaUploadPool) worker(ctx context.Context, queue *mediaJobQueue) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if p.consecErrors.load() >= p.maxConsecErrors {
			zlog.Warn().Int("consecutive_errors", p.maxConsecErrors).Msg("media upload pool: error breaker tripped")
			return
		}

		job, ok := queue.next()
		if !ok {
			return
		}
		time.Sleep(p.rateLimit)

		start := time.Now()
		id, err := p.sender.SendMediaJob(ctx, job)
		elapsed := time.Since(start)

		p.metrics.ObserveRequestLatency("media_upload", elapsed)
		if err != nil {
			p.consecErrors.inc()
			zlog.Warn().Err(err).Str("to", job.To).Str("path", job.Path).Msg("media upload failed")
		} else {
			p.consecErrors.reset()
		}

		select {
		case p.results <- MediaUploadResult{Job: job, MessageID: id, Success: err == nil, Error: err, TimeConsumed: elapsed}:
		case <-ctx.Done():
			return
		}
	}
}

// atomic32 is a tiny mutex-guarded counter; avoids pulling in sync/atomic
// semantics for what is a handful of increments per run.
type atomic32 struct {
	mu  sync.Mutex
	val int
}

func (a *atomic32) inc()       { a.mu.Lock(); a.val++; a.mu.Unlock() }
func (a *atomic32) reset()     { a.mu.Lock(); a.val = 0; a.mu.Unlock() }
func (a *atomic32) load() int  { a.mu.Lock(); defer a.mu.Unlock(); return a.val }
