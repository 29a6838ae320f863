// Package printqueue hands rendered artifacts to print stations with claim
// leases, bounded failure retries, and TTL-based eviction.
package printqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cardkiosk/printbroker/internal/config"
	"github.com/cardkiosk/printbroker/internal/domain"
	"github.com/cardkiosk/printbroker/internal/notify"
)

// Config controls job lifetimes.
type Config struct {
	JobTTL   time.Duration
	ClaimTTL time.Duration
	MaxFails int
}

// Queue is an in-memory FIFO of print jobs. All mutation goes through its
// methods; jobs handed out are copies.
type Queue struct {
	mu    sync.Mutex
	jobs  []*domain.PrintJob
	index map[string]*domain.PrintJob

	cfg       Config
	publisher notify.Publisher
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// New creates an empty queue. A nil publisher disables notifications.
func New(cfg Config, publisher notify.Publisher, logger *slog.Logger) *Queue {
	if cfg.MaxFails <= 0 {
		cfg.MaxFails = config.MaxJobFailures
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		index:     make(map[string]*domain.PrintJob),
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Enqueue appends a new unclaimed job and returns its id.
func (q *Queue) Enqueue(payload []byte, meta map[string]any) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("empty payload: %w", domain.ErrInvalidInput)
	}

	q.mu.Lock()
	id := q.newID()
	if _, exists := q.index[id]; exists {
		q.mu.Unlock()
		return "", fmt.Errorf("duplicate job id %s: %w", id, domain.ErrPrintQueueFailed)
	}
	job := &domain.PrintJob{
		ID:        id,
		Payload:   payload,
		Meta:      meta,
		CreatedAt: q.now(),
	}
	q.jobs = append(q.jobs, job)
	q.index[id] = job
	pending := q.pendingLocked()
	q.mu.Unlock()

	q.logger.Info("Print job enqueued", "job_id", id, "bytes", len(payload), "pending", pending)
	q.publish(notify.Event{Type: notify.EventNewJob, JobID: id, Pending: pending})
	q.publish(notify.Event{Type: notify.EventQueueDepth, Pending: pending})
	return id, nil
}

// ClaimNext sweeps the queue, then hands the oldest unclaimed job to
// clientID. It returns domain.ErrNoJobAvailable when every job is claimed or
// the queue is empty.
func (q *Queue) ClaimNext(clientID string) (*domain.PrintJob, error) {
	if clientID == "" {
		return nil, fmt.Errorf("empty client id: %w", domain.ErrInvalidInput)
	}

	q.mu.Lock()
	now := q.now()
	changed := q.sweepLocked(now)

	var job *domain.PrintJob
	for _, j := range q.jobs {
		if !j.Claimed() {
			job = j
			break
		}
	}
	if job == nil {
		pending := q.pendingLocked()
		q.mu.Unlock()
		if changed {
			q.publish(notify.Event{Type: notify.EventQueueDepth, Pending: pending})
		}
		return nil, domain.ErrNoJobAvailable
	}

	job.Claim = &domain.Claim{ClaimedAt: now, ClientID: clientID}
	claimed := job.Clone()
	pending := q.pendingLocked()
	q.mu.Unlock()

	q.logger.Info("Print job claimed", "job_id", claimed.ID, "client_id", clientID, "fail_count", claimed.FailCount)
	q.publish(notify.Event{Type: notify.EventQueueDepth, Pending: pending})
	return claimed, nil
}

// ReportOutcome applies a station's terminal report for jobID.
func (q *Queue) ReportOutcome(jobID string, outcome domain.Outcome, message string) error {
	if !outcome.Valid() {
		return fmt.Errorf("outcome %q: %w", outcome, domain.ErrInvalidStatus)
	}

	q.mu.Lock()
	job, ok := q.index[jobID]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}

	switch outcome {
	case domain.OutcomePrinted:
		q.removeLocked(jobID)
		q.logger.Info("Print job printed", "job_id", jobID)
	case domain.OutcomeFailed:
		job.FailCount++
		if job.FailCount >= q.cfg.MaxFails {
			q.removeLocked(jobID)
			q.logger.Warn("Print job dropped after repeated failures",
				"job_id", jobID, "fail_count", job.FailCount, "message", message)
		} else {
			job.Claim = nil
			q.logger.Warn("Print job failed, released for retry",
				"job_id", jobID, "fail_count", job.FailCount, "message", message)
		}
	}
	pending := q.pendingLocked()
	q.mu.Unlock()

	q.publish(notify.Event{Type: notify.EventQueueDepth, Pending: pending})
	return nil
}

// PendingCount returns the number of jobs without an active claim.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked()
}

// Len returns the number of jobs held, claimed or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Get returns a copy of the job with id.
func (q *Queue) Get(id string) (*domain.PrintJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.index[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return job.Clone(), nil
}

// Sweep releases stale claims and evicts expired or exhausted jobs. It
// reports whether anything changed.
func (q *Queue) Sweep() bool {
	q.mu.Lock()
	changed := q.sweepLocked(q.now())
	pending := q.pendingLocked()
	q.mu.Unlock()

	if changed {
		q.publish(notify.Event{Type: notify.EventQueueDepth, Pending: pending})
	}
	return changed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (q *Queue) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		q.logger.Info("Print queue sweeper started", "interval", interval,
			"job_ttl", q.cfg.JobTTL, "claim_ttl", q.cfg.ClaimTTL)

		for {
			select {
			case <-ticker.C:
				q.Sweep()
			case <-ctx.Done():
				q.logger.Info("Print queue sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// sweepLocked checks each job for a stale claim first, then for eviction.
func (q *Queue) sweepLocked(now time.Time) bool {
	changed := false
	kept := q.jobs[:0]
	for _, job := range q.jobs {
		if job.Claim != nil && now.Sub(job.Claim.ClaimedAt) > q.cfg.ClaimTTL {
			q.logger.Warn("Releasing stale claim",
				"job_id", job.ID, "client_id", job.Claim.ClientID, "claimed_at", job.Claim.ClaimedAt)
			job.Claim = nil
			changed = true
		}

		if now.Sub(job.CreatedAt) > q.cfg.JobTTL || job.FailCount >= q.cfg.MaxFails {
			q.logger.Info("Evicting print job",
				"job_id", job.ID, "age", now.Sub(job.CreatedAt), "fail_count", job.FailCount)
			delete(q.index, job.ID)
			changed = true
			continue
		}
		kept = append(kept, job)
	}
	for i := len(kept); i < len(q.jobs); i++ {
		q.jobs[i] = nil
	}
	q.jobs = kept
	return changed
}

func (q *Queue) removeLocked(id string) {
	delete(q.index, id)
	for i, job := range q.jobs {
		if job.ID == id {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return
		}
	}
}

func (q *Queue) pendingLocked() int {
	n := 0
	for _, job := range q.jobs {
		if !job.Claimed() {
			n++
		}
	}
	return n
}

func (q *Queue) publish(ev notify.Event) {
	if q.publisher != nil {
		q.publisher.Publish(ev)
	}
}
