package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/events"
	"github.com/sanyaade-teachings/ganeti/pkg/jqueue"
	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/metrics"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// Feedback adds a message to the running job's log
type Feedback func(message interface{})

// Handler executes one opcode and returns its result
type Handler func(ctx context.Context, op types.OpCode, feedback Feedback) (interface{}, error)

// DefaultSyncInterval is how often the queue is scanned when no
// submission event arrives
const DefaultSyncInterval = 3 * time.Second

// Worker runs queued jobs one at a time, in job id order
type Worker struct {
	queue  *jqueue.Queue
	broker *events.Broker

	mu       sync.RWMutex
	handlers map[string]Handler

	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Config holds worker configuration
type Config struct {
	SyncInterval time.Duration
}

// NewWorker creates a worker draining q. The test opcodes are registered
// by default.
func NewWorker(q *jqueue.Queue, broker *events.Broker, cfg Config) *Worker {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		queue:    q,
		broker:   broker,
		handlers: make(map[string]Handler),
		interval: cfg.SyncInterval,
		ctx:      ctx,
		cancel:   cancel,
	}
	w.Register(OpTestDelay, testDelay)
	return w
}

// Register installs the handler for an OP_ID
func (w *Worker) Register(opID string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[opID] = h
}

func (w *Worker) handler(opID string) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[opID]
	return h, ok
}

// Start begins processing jobs
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop interrupts the running job and waits for the worker to exit
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()

	sub := w.broker.Subscribe()
	defer w.broker.Unsubscribe(sub)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sync()
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if ev.Type == events.EventJobSubmitted {
				w.sync()
			}
		case <-ticker.C:
			w.sync()
		case <-w.ctx.Done():
			return
		}
	}
}

// sync runs every job still waiting in the queue
func (w *Worker) sync() {
	for _, id := range w.queue.IDs() {
		if w.ctx.Err() != nil {
			return
		}
		job, err := w.queue.Get(id)
		if err != nil || job.Status != types.JobStatusQueued {
			continue
		}
		w.execute(job)
	}
}

// execute runs the opcodes of job in order, stopping at the first failure
func (w *Worker) execute(job *types.Job) {
	logger := log.WithJobID(uint64(job.ID))

	// Loses the race against a cancel request
	if err := w.queue.MarkRunning(job.ID); err != nil {
		logger.Debug().Err(err).Msg("Job not started")
		return
	}

	timer := metrics.NewTimer()
	logger.Info().Int("opcodes", len(job.Ops)).Msg("Job started")

	feedback := func(msg interface{}) {
		if err := w.queue.AppendLog(job.ID, types.LogTypeMessage, msg); err != nil {
			logger.Warn().Err(err).Msg("Failed to append job log")
		}
	}

	status := types.JobStatusSuccess
	results := make([]interface{}, 0, len(job.Ops))
	for i, op := range job.Ops {
		result, err := w.runOp(op, feedback)
		if err != nil {
			status = types.JobStatusError
			msg := fmt.Sprintf("opcode %d (%s): %v", i, op.OpID(), err)
			results = append(results, msg)
			if err := w.queue.AppendLog(job.ID, types.LogTypeError, msg); err != nil {
				logger.Warn().Err(err).Msg("Failed to append job log")
			}
			break
		}
		results = append(results, result)
	}

	if err := w.queue.Finalize(job.ID, status, results); err != nil {
		logger.Error().Err(err).Msg("Failed to finalize job")
		return
	}
	timer.ObserveDurationVec(metrics.JobDuration, string(status))
	logger.Info().
		Str("status", string(status)).
		Dur("duration", timer.Duration()).
		Msg("Job finished")
}

func (w *Worker) runOp(op types.OpCode, feedback Feedback) (interface{}, error) {
	h, ok := w.handler(op.OpID())
	if !ok {
		return nil, fmt.Errorf("unsupported opcode")
	}
	return h(w.ctx, op, feedback)
}
