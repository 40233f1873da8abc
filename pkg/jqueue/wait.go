package jqueue

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/events"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// pollInterval bounds how long a waiter sleeps when it missed an event
const pollInterval = time.Second

// Change is the result of WaitForChange. Unchanged is set when the
// timeout expired with nothing new to report.
type Change struct {
	Unchanged bool
	Info      []interface{}
	Log       []types.LogEntry
}

// WaitForChange blocks until the job's fields differ from prevInfo or
// it has log entries newer than prevSerial. A finished job is reported
// at once. A nil prevSerial asks for the whole log.
func (q *Queue) WaitForChange(ctx context.Context, id types.JobID, fields []string, prevInfo []interface{}, prevSerial *int64, timeout time.Duration) (*Change, error) {
	sub := q.broker.Subscribe()
	defer q.broker.Unsubscribe(sub)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		change, err := q.checkChange(id, fields, prevInfo, prevSerial)
		if err != nil || change != nil {
			return change, err
		}

		select {
		case ev, ok := <-sub:
			if !ok {
				return &Change{Unchanged: true}, nil
			}
			if ev.JobID != id || ev.Type == events.EventDrainFlag {
				continue
			}
		case <-ticker.C:
		case <-timer.C:
			return &Change{Unchanged: true}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// checkChange returns nil when the caller already has the current state
func (q *Queue) checkChange(id types.JobID, fields []string, prevInfo []interface{}, prevSerial *int64) (*Change, error) {
	job, err := q.Get(id)
	if err != nil {
		return nil, err
	}
	info, err := jobInfo(job, fields)
	if err != nil {
		return nil, err
	}
	info, err = normalize(info)
	if err != nil {
		return nil, err
	}

	var newLog []types.LogEntry
	for _, entry := range job.Log {
		if prevSerial == nil || entry.Serial > *prevSerial {
			newLog = append(newLog, entry)
		}
	}

	if len(newLog) > 0 || !reflect.DeepEqual(info, prevInfo) || job.Status.IsFinalized() {
		return &Change{Info: info, Log: newLog}, nil
	}
	return nil, nil
}

// normalize gives info the shape it has after a JSON round trip, so it
// compares equal to what a client sent back
func normalize(info []interface{}) ([]interface{}, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
