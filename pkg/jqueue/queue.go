package jqueue

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/events"
	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/metrics"
	"github.com/sanyaade-teachings/ganeti/pkg/storage"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

var (
	ErrDrained  = errors.New("job queue is drained, refusing job")
	ErrFull     = errors.New("job queue is full")
	ErrNotFound = errors.New("job not found")
)

// DefaultMaxJobs is the hard limit on jobs kept in the queue
const DefaultMaxJobs = 5000

// Archive persists finished jobs once they leave the queue
type Archive interface {
	ArchiveJob(job *types.Job) error
	GetArchivedJob(id types.JobID) (*types.Job, error)
}

// Config configures a Queue
type Config struct {
	MaxJobs int         // Hard limit on active jobs
	LastID  types.JobID // Highest id handed out before, new ids follow it
}

// Queue holds submitted jobs until they are archived. Jobs are executed
// elsewhere; the queue only records their state and notifies waiters.
type Queue struct {
	mu      sync.RWMutex
	jobs    map[types.JobID]*types.Job
	lastID  types.JobID
	drained bool
	maxJobs int

	archive Archive
	broker  *events.Broker
	now     func() time.Time
}

// New creates a queue. The broker must be started by the caller.
func New(cfg Config, archive Archive, broker *events.Broker) *Queue {
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = DefaultMaxJobs
	}
	return &Queue{
		jobs:    make(map[types.JobID]*types.Job),
		lastID:  cfg.LastID,
		maxJobs: cfg.MaxJobs,
		archive: archive,
		broker:  broker,
		now:     time.Now,
	}
}

// SetDrained sets the drain flag. A drained queue refuses new jobs.
func (q *Queue) SetDrained(drained bool) {
	q.mu.Lock()
	q.drained = drained
	q.mu.Unlock()
	q.broker.Publish(&events.Event{Type: events.EventDrainFlag, Message: fmt.Sprintf("drained=%t", drained)})
}

// Drained reports the drain flag
func (q *Queue) Drained() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.drained
}

// Submit validates ops and enqueues them as one job
func (q *Queue) Submit(ops []types.OpCode) (types.JobID, error) {
	if len(ops) == 0 {
		return 0, fmt.Errorf("job has no opcodes")
	}
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return 0, fmt.Errorf("opcode %d: %w", i, err)
		}
	}

	q.mu.Lock()
	if q.drained {
		q.mu.Unlock()
		return 0, ErrDrained
	}
	if len(q.jobs) >= q.maxJobs {
		q.mu.Unlock()
		return 0, ErrFull
	}

	q.lastID++
	job := &types.Job{
		ID:         q.lastID,
		Ops:        ops,
		OpStatus:   make([]types.JobStatus, len(ops)),
		OpResult:   make([]interface{}, len(ops)),
		Status:     types.JobStatusQueued,
		ReceivedAt: q.now(),
	}
	for i := range job.OpStatus {
		job.OpStatus[i] = types.JobStatusQueued
	}
	q.jobs[job.ID] = job
	q.mu.Unlock()

	metrics.JobsSubmitted.Inc()
	logger := log.WithJobID(uint64(job.ID))
	logger.Info().Strs("ops", job.Summary()).Msg("Job submitted")
	q.broker.PublishJob(events.EventJobSubmitted, job.ID, "")
	return job.ID, nil
}

// SubmitResult is the outcome of one job of a batch
type SubmitResult struct {
	JobID types.JobID
	Err   error
}

// SubmitMany enqueues each job independently; a rejected job does not
// affect the others
func (q *Queue) SubmitMany(jobs [][]types.OpCode) []SubmitResult {
	out := make([]SubmitResult, len(jobs))
	for i, ops := range jobs {
		out[i].JobID, out[i].Err = q.Submit(ops)
	}
	return out
}

// Get returns a copy of the job, looking in the archive for jobs that
// already left the queue
func (q *Queue) Get(id types.JobID) (*types.Job, error) {
	q.mu.RLock()
	job, ok := q.jobs[id]
	if ok {
		job = job.Clone()
	}
	q.mu.RUnlock()
	if ok {
		return job, nil
	}

	if q.archive != nil {
		job, err := q.archive.GetArchivedJob(id)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// IDs returns the ids of all queued jobs in ascending order
func (q *Queue) IDs() []types.JobID {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.sortedIDs()
}

func (q *Queue) sortedIDs() []types.JobID {
	ids := make([]types.JobID, 0, len(q.jobs))
	for id := range q.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// JobCounts returns the number of queued jobs per status
func (q *Queue) JobCounts() map[types.JobStatus]int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	counts := make(map[types.JobStatus]int)
	for _, job := range q.jobs {
		counts[job.Status]++
	}
	return counts
}

// Cancel cancels a job that has not started running. The message
// describes the outcome either way.
func (q *Queue) Cancel(id types.JobID) (bool, string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return false, fmt.Sprintf("Job %s not found", id)
	}
	switch job.Status {
	case types.JobStatusQueued, types.JobStatusWaiting:
	default:
		q.mu.Unlock()
		return false, fmt.Sprintf("Job %s is no longer waiting in the queue", id)
	}

	now := q.now()
	job.Status = types.JobStatusCanceled
	for i := range job.OpStatus {
		job.OpStatus[i] = types.JobStatusCanceled
		job.OpResult[i] = "Job canceled by request"
	}
	job.EndedAt = &now
	q.mu.Unlock()

	logger := log.WithJobID(uint64(id))
	logger.Info().Msg("Job canceled")
	q.broker.PublishJob(events.EventJobChanged, id, string(types.JobStatusCanceled))
	return true, fmt.Sprintf("Job %s canceled", id)
}

// Archive moves a finished job to the archive. It returns false when the
// job is unknown or still pending.
func (q *Queue) Archive(id types.JobID) (bool, error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || !job.Status.IsFinalized() {
		q.mu.Unlock()
		return false, nil
	}
	if err := q.archiveLocked(job); err != nil {
		q.mu.Unlock()
		return false, err
	}
	q.mu.Unlock()

	q.broker.PublishJob(events.EventJobArchived, id, "")
	return true, nil
}

func (q *Queue) archiveLocked(job *types.Job) error {
	if q.archive != nil {
		if err := q.archive.ArchiveJob(job); err != nil {
			return fmt.Errorf("failed to archive job %s: %w", job.ID, err)
		}
	}
	delete(q.jobs, job.ID)
	metrics.JobsArchived.Inc()
	return nil
}

// AutoArchive archives finished jobs that ended more than age ago; a
// negative age archives every finished job. Work stops once timeout has
// passed, though at least one job is always examined. It returns the
// number of archived jobs and the number of jobs left unexamined.
func (q *Queue) AutoArchive(age, timeout time.Duration) (int, int, error) {
	start := q.now()
	q.mu.Lock()
	ids := q.sortedIDs()
	var archived []types.JobID
	left := 0
	for i, id := range ids {
		if i > 0 && q.now().Sub(start) > timeout {
			left = len(ids) - i
			break
		}
		job := q.jobs[id]
		if !job.Status.IsFinalized() {
			continue
		}
		ended := job.ReceivedAt
		if job.EndedAt != nil {
			ended = *job.EndedAt
		}
		if age >= 0 && start.Sub(ended) < age {
			continue
		}
		if err := q.archiveLocked(job); err != nil {
			q.mu.Unlock()
			return len(archived), len(ids) - i, err
		}
		archived = append(archived, id)
	}
	q.mu.Unlock()

	for _, id := range archived {
		q.broker.PublishJob(events.EventJobArchived, id, "")
	}
	logger := log.WithComponent("jqueue")
	logger.Info().Int("archived", len(archived)).Int("left", left).Msg("Auto-archived jobs")
	return len(archived), left, nil
}

// MarkRunning records that execution of the job started
func (q *Queue) MarkRunning(id types.JobID) error {
	return q.update(id, func(job *types.Job) error {
		if job.Status != types.JobStatusQueued && job.Status != types.JobStatusWaiting {
			return fmt.Errorf("job %s is %s, cannot start", id, job.Status)
		}
		now := q.now()
		job.Status = types.JobStatusRunning
		job.StartedAt = &now
		job.OpStatus[0] = types.JobStatusRunning
		return nil
	})
}

// AppendLog adds a log entry to the job
func (q *Queue) AppendLog(id types.JobID, logType string, message interface{}) error {
	return q.update(id, func(job *types.Job) error {
		ts := q.now()
		job.Log = append(job.Log, types.LogEntry{
			Serial:    job.LastLogSerial() + 1,
			Timestamp: float64(ts.UnixNano()) / 1e9,
			Type:      logType,
			Message:   message,
		})
		return nil
	})
}

// Finalize records the final status and per-opcode results
func (q *Queue) Finalize(id types.JobID, status types.JobStatus, results []interface{}) error {
	if !status.IsFinalized() {
		return fmt.Errorf("status %s is not final", status)
	}
	return q.update(id, func(job *types.Job) error {
		if job.Status.IsFinalized() {
			return fmt.Errorf("job %s already finished", id)
		}
		now := q.now()
		job.Status = status
		job.EndedAt = &now
		for i := range job.OpStatus {
			job.OpStatus[i] = status
			if i < len(results) {
				job.OpResult[i] = results[i]
			}
		}
		return nil
	})
}

func (q *Queue) update(id types.JobID, fn func(job *types.Job) error) error {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := fn(job); err != nil {
		q.mu.Unlock()
		return err
	}
	status := job.Status
	q.mu.Unlock()

	q.broker.PublishJob(events.EventJobChanged, id, string(status))
	return nil
}
