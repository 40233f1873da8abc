package jqueue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/events"
	"github.com/sanyaade-teachings/ganeti/pkg/storage"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memArchive is an in-memory Archive
type memArchive struct {
	jobs map[types.JobID]*types.Job
}

func (a *memArchive) ArchiveJob(job *types.Job) error {
	a.jobs[job.ID] = job.Clone()
	return nil
}

func (a *memArchive) GetArchivedJob(id types.JobID) (*types.Job, error) {
	job, ok := a.jobs[id]
	if !ok {
		return nil, fmt.Errorf("archived job %s: %w", id, storage.ErrNotFound)
	}
	return job.Clone(), nil
}

func newTestQueue(t *testing.T, cfg Config) (*Queue, *memArchive) {
	t.Helper()
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	archive := &memArchive{jobs: make(map[types.JobID]*types.Job)}
	return New(cfg, archive, broker), archive
}

func delayOp() types.OpCode {
	return types.OpCode{"OP_ID": "OP_TEST_DELAY", "duration": float64(1)}
}

func TestSubmit(t *testing.T) {
	q, _ := newTestQueue(t, Config{LastID: 41})

	id, err := q.Submit([]types.OpCode{delayOp(), {"OP_ID": "OP_CLUSTER_VERIFY"}})
	require.NoError(t, err)
	assert.Equal(t, types.JobID(42), id)

	job, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusQueued, job.Status)
	assert.Equal(t, []types.JobStatus{types.JobStatusQueued, types.JobStatusQueued}, job.OpStatus)
	assert.Equal(t, []string{"OP_TEST_DELAY", "OP_CLUSTER_VERIFY"}, job.Summary())
	assert.False(t, job.ReceivedAt.IsZero())

	id2, err := q.Submit([]types.OpCode{delayOp()})
	require.NoError(t, err)
	assert.Equal(t, types.JobID(43), id2)
}

func TestSubmitRejected(t *testing.T) {
	tests := []struct {
		name string
		ops  []types.OpCode
	}{
		{"no opcodes", nil},
		{"missing OP_ID", []types.OpCode{{"duration": float64(1)}}},
		{"null opcode", []types.OpCode{delayOp(), nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := newTestQueue(t, Config{})
			_, err := q.Submit(tt.ops)
			assert.Error(t, err)
			assert.Empty(t, q.IDs())
		})
	}
}

func TestSubmitDrained(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	q.SetDrained(true)
	assert.True(t, q.Drained())

	_, err := q.Submit([]types.OpCode{delayOp()})
	assert.ErrorIs(t, err, ErrDrained)

	q.SetDrained(false)
	_, err = q.Submit([]types.OpCode{delayOp()})
	assert.NoError(t, err)
}

func TestSubmitFull(t *testing.T) {
	q, _ := newTestQueue(t, Config{MaxJobs: 2})
	for i := 0; i < 2; i++ {
		_, err := q.Submit([]types.OpCode{delayOp()})
		require.NoError(t, err)
	}
	_, err := q.Submit([]types.OpCode{delayOp()})
	assert.ErrorIs(t, err, ErrFull)
}

func TestSubmitMany(t *testing.T) {
	q, _ := newTestQueue(t, Config{})

	results := q.SubmitMany([][]types.OpCode{
		{delayOp()},
		{{"duration": float64(1)}},
		{delayOp()},
	})
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, types.JobID(1), results[0].JobID)
	assert.Equal(t, types.JobID(2), results[2].JobID)
}

func TestCancel(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	queued, _ := q.Submit([]types.OpCode{delayOp()})
	running, _ := q.Submit([]types.OpCode{delayOp()})
	require.NoError(t, q.MarkRunning(running))

	tests := []struct {
		name   string
		id     types.JobID
		wantOK bool
		msg    string
	}{
		{"queued job", queued, true, "Job 1 canceled"},
		{"already canceled", queued, false, "Job 1 is no longer waiting in the queue"},
		{"running job", running, false, "Job 2 is no longer waiting in the queue"},
		{"unknown job", 99, false, "Job 99 not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := q.Cancel(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.msg, msg)
		})
	}

	job, err := q.Get(queued)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCanceled, job.Status)
	assert.NotNil(t, job.EndedAt)
}

func TestArchive(t *testing.T) {
	q, archive := newTestQueue(t, Config{})
	id, _ := q.Submit([]types.OpCode{delayOp()})

	ok, err := q.Archive(id)
	require.NoError(t, err)
	assert.False(t, ok, "pending jobs cannot be archived")

	require.NoError(t, q.MarkRunning(id))
	require.NoError(t, q.Finalize(id, types.JobStatusSuccess, []interface{}{"done"}))

	ok, err = q.Archive(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, q.IDs())
	assert.Contains(t, archive.jobs, id)

	// Archived jobs stay visible through the archive
	job, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusSuccess, job.Status)
	assert.Equal(t, []interface{}{"done"}, job.OpResult)

	ok, err = q.Archive(id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAutoArchive(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	base := time.Unix(1700000000, 0)
	clock := base
	q.now = func() time.Time { return clock }

	old, _ := q.Submit([]types.OpCode{delayOp()})
	require.NoError(t, q.MarkRunning(old))
	require.NoError(t, q.Finalize(old, types.JobStatusError, nil))

	clock = base.Add(2 * time.Hour)
	recent, _ := q.Submit([]types.OpCode{delayOp()})
	require.NoError(t, q.MarkRunning(recent))
	require.NoError(t, q.Finalize(recent, types.JobStatusSuccess, nil))
	pending, _ := q.Submit([]types.OpCode{delayOp()})

	archived, left, err := q.AutoArchive(time.Hour, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)
	assert.Equal(t, 0, left)
	assert.Equal(t, []types.JobID{recent, pending}, q.IDs())

	archived, left, err = q.AutoArchive(-1, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)
	assert.Equal(t, 0, left)
	assert.Equal(t, []types.JobID{pending}, q.IDs())
}

func TestAutoArchiveTimeout(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	for i := 0; i < 3; i++ {
		id, _ := q.Submit([]types.OpCode{delayOp()})
		q.Cancel(id)
	}

	// Each call to the clock advances it, so the budget runs out after
	// the first job
	clock := time.Unix(1700000000, 0)
	q.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	archived, left, err := q.AutoArchive(-1, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)
	assert.Equal(t, 2, left)
}

func TestJobCounts(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	a, _ := q.Submit([]types.OpCode{delayOp()})
	_, _ = q.Submit([]types.OpCode{delayOp()})
	require.NoError(t, q.MarkRunning(a))

	counts := q.JobCounts()
	assert.Equal(t, 1, counts[types.JobStatusRunning])
	assert.Equal(t, 1, counts[types.JobStatusQueued])
	assert.Zero(t, counts[types.JobStatusSuccess])
}

func TestFinalizeErrors(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	id, _ := q.Submit([]types.OpCode{delayOp()})

	assert.Error(t, q.Finalize(id, types.JobStatusRunning, nil))
	require.NoError(t, q.Finalize(id, types.JobStatusError, nil))
	assert.Error(t, q.Finalize(id, types.JobStatusSuccess, nil))
	assert.Error(t, q.MarkRunning(id))
	assert.ErrorIs(t, q.AppendLog(99, "message", "x"), ErrNotFound)
}

func TestQuery(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	id, _ := q.Submit([]types.OpCode{delayOp()})

	rows, err := q.Query([]types.JobID{id, 77}, []string{"id", "status", "summary", "end_ts"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []interface{}{id, types.JobStatusQueued, []string{"OP_TEST_DELAY"}, nil}, rows[0])
	assert.Nil(t, rows[1])

	rows, err = q.Query(nil, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{id}}, rows)

	_, err = q.Query(nil, []string{"id", "colour"})
	var fieldErr *UnknownFieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "colour", fieldErr.Field)
}

func TestJobFieldNamesSorted(t *testing.T) {
	names := JobFieldNames()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "opstatus")
}

func TestWaitForChangeImmediate(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	id, _ := q.Submit([]types.OpCode{delayOp()})
	require.NoError(t, q.AppendLog(id, "message", "hello"))

	change, err := q.WaitForChange(context.Background(), id, []string{"status"}, nil, nil, time.Second)
	require.NoError(t, err)
	assert.False(t, change.Unchanged)
	assert.Equal(t, []interface{}{"queued"}, change.Info)
	require.Len(t, change.Log, 1)
	assert.Equal(t, int64(1), change.Log[0].Serial)
	assert.Equal(t, "hello", change.Log[0].Message)
}

func TestWaitForChangeTimeout(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	id, _ := q.Submit([]types.OpCode{delayOp()})

	serial := int64(0)
	change, err := q.WaitForChange(context.Background(), id, []string{"status"}, []interface{}{"queued"}, &serial, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, change.Unchanged)
}

func TestWaitForChangeWakesOnUpdate(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	id, _ := q.Submit([]types.OpCode{delayOp()})

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = q.MarkRunning(id)
	}()

	serial := int64(0)
	change, err := q.WaitForChange(context.Background(), id, []string{"status"}, []interface{}{"queued"}, &serial, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, change.Unchanged)
	assert.Equal(t, []interface{}{"running"}, change.Info)
	assert.Empty(t, change.Log)
}

func TestWaitForChangeNewLogOnly(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	id, _ := q.Submit([]types.OpCode{delayOp()})
	require.NoError(t, q.AppendLog(id, "message", "first"))
	require.NoError(t, q.AppendLog(id, "message", "second"))

	serial := int64(1)
	change, err := q.WaitForChange(context.Background(), id, []string{"status"}, []interface{}{"queued"}, &serial, time.Second)
	require.NoError(t, err)
	require.Len(t, change.Log, 1)
	assert.Equal(t, "second", change.Log[0].Message)
}

func TestWaitForChangeFinishedJob(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	id, _ := q.Submit([]types.OpCode{delayOp()})
	q.Cancel(id)

	serial := int64(0)
	change, err := q.WaitForChange(context.Background(), id, []string{"status"}, []interface{}{"canceled"}, &serial, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, change.Unchanged)
	assert.Equal(t, []interface{}{"canceled"}, change.Info)
}

func TestWaitForChangeErrors(t *testing.T) {
	q, _ := newTestQueue(t, Config{})

	_, err := q.WaitForChange(context.Background(), 5, []string{"status"}, nil, nil, time.Second)
	assert.ErrorIs(t, err, ErrNotFound)

	id, _ := q.Submit([]types.OpCode{delayOp()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	serial := int64(0)
	_, err = q.WaitForChange(ctx, id, []string{"status"}, []interface{}{"queued"}, &serial, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
