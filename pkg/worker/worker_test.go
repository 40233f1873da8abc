package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/events"
	"github.com/sanyaade-teachings/ganeti/pkg/jqueue"
	"github.com/sanyaade-teachings/ganeti/pkg/storage"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memArchive struct {
	mu   sync.Mutex
	jobs map[types.JobID]*types.Job
}

func (a *memArchive) ArchiveJob(job *types.Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs[job.ID] = job
	return nil
}

func (a *memArchive) GetArchivedJob(id types.JobID) (*types.Job, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if job, ok := a.jobs[id]; ok {
		return job, nil
	}
	return nil, storage.ErrNotFound
}

func newTestWorker(t *testing.T) (*Worker, *jqueue.Queue) {
	t.Helper()
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	q := jqueue.New(jqueue.Config{}, &memArchive{jobs: make(map[types.JobID]*types.Job)}, broker)
	w := NewWorker(q, broker, Config{SyncInterval: 20 * time.Millisecond})
	t.Cleanup(w.Stop)
	return w, q
}

func waitStatus(t *testing.T, q *jqueue.Queue, id types.JobID, want types.JobStatus) *types.Job {
	t.Helper()
	var job *types.Job
	require.Eventually(t, func() bool {
		j, err := q.Get(id)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	}, 3*time.Second, 10*time.Millisecond)
	return job
}

func TestWorkerRunsDelayJob(t *testing.T) {
	w, q := newTestWorker(t)
	w.Start()

	id, err := q.Submit([]types.OpCode{{"OP_ID": OpTestDelay, "duration": 0.01}})
	require.NoError(t, err)

	job := waitStatus(t, q, id, types.JobStatusSuccess)
	assert.Equal(t, []interface{}{true}, job.OpResult)
	assert.Equal(t, []types.JobStatus{types.JobStatusSuccess}, job.OpStatus)
	require.NotEmpty(t, job.Log)
	assert.Equal(t, int64(1), job.Log[0].Serial)
	assert.Contains(t, job.Log[0].Message, "Sleeping for 10ms")
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.EndedAt)
}

func TestWorkerUnsupportedOpcode(t *testing.T) {
	w, q := newTestWorker(t)
	w.Start()

	id, err := q.Submit([]types.OpCode{{"OP_ID": "OP_INSTANCE_CREATE"}})
	require.NoError(t, err)

	job := waitStatus(t, q, id, types.JobStatusError)
	require.Len(t, job.OpResult, 1)
	assert.Contains(t, job.OpResult[0], "unsupported opcode")
	require.NotEmpty(t, job.Log)
	assert.Equal(t, types.LogTypeError, job.Log[len(job.Log)-1].Type)
}

func TestWorkerStopsAtFirstFailure(t *testing.T) {
	w, q := newTestWorker(t)

	var calls []string
	var mu sync.Mutex
	record := func(name string, err error) Handler {
		return func(ctx context.Context, op types.OpCode, feedback Feedback) (interface{}, error) {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
			feedback(name)
			return name, err
		}
	}
	w.Register("OP_A", record("a", nil))
	w.Register("OP_FAIL", record("fail", errors.New("boom")))
	w.Start()

	id, err := q.Submit([]types.OpCode{{"OP_ID": "OP_A"}, {"OP_ID": "OP_FAIL"}, {"OP_ID": "OP_A"}})
	require.NoError(t, err)

	job := waitStatus(t, q, id, types.JobStatusError)
	assert.Equal(t, "a", job.OpResult[0])
	assert.Contains(t, job.OpResult[1], "boom")
	assert.Nil(t, job.OpResult[2])

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "fail"}, calls)
}

func TestWorkerSkipsCanceledJobs(t *testing.T) {
	w, q := newTestWorker(t)

	id, err := q.Submit([]types.OpCode{{"OP_ID": OpTestDelay}})
	require.NoError(t, err)
	ok, _ := q.Cancel(id)
	require.True(t, ok)

	w.sync()

	job, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCanceled, job.Status)
	assert.Nil(t, job.StartedAt)
}

func TestWorkerStopInterruptsJob(t *testing.T) {
	w, q := newTestWorker(t)
	w.Start()

	id, err := q.Submit([]types.OpCode{{"OP_ID": OpTestDelay, "duration": 60}})
	require.NoError(t, err)
	waitStatus(t, q, id, types.JobStatusRunning)

	w.Stop()

	job, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusError, job.Status)
	assert.Contains(t, job.OpResult[0], "interrupted")
}

func TestTestDelayParams(t *testing.T) {
	tests := []struct {
		name    string
		op      types.OpCode
		wantErr bool
		logs    int
	}{
		{name: "defaults", op: types.OpCode{"OP_ID": OpTestDelay}, logs: 1},
		{name: "yaml integer", op: types.OpCode{"OP_ID": OpTestDelay, "duration": 0, "repeat": 3}, logs: 6},
		{name: "negative", op: types.OpCode{"OP_ID": OpTestDelay, "duration": -1.0}, wantErr: true},
		{name: "text", op: types.OpCode{"OP_ID": OpTestDelay, "duration": "soon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs []interface{}
			_, err := testDelay(context.Background(), tt.op, func(m interface{}) { logs = append(logs, m) })
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, logs, tt.logs)
		})
	}
}
