package jqueue

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// jobFields maps the field names accepted by QueryJobs to getters
var jobFields = map[string]func(job *types.Job) interface{}{
	"id":          func(job *types.Job) interface{} { return job.ID },
	"status":      func(job *types.Job) interface{} { return job.Status },
	"ops":         func(job *types.Job) interface{} { return job.Ops },
	"opstatus":    func(job *types.Job) interface{} { return job.OpStatus },
	"opresult":    func(job *types.Job) interface{} { return job.OpResult },
	"summary":     func(job *types.Job) interface{} { return job.Summary() },
	"received_ts": func(job *types.Job) interface{} { return types.TimestampPair(&job.ReceivedAt) },
	"start_ts":    func(job *types.Job) interface{} { return types.TimestampPair(job.StartedAt) },
	"end_ts":      func(job *types.Job) interface{} { return types.TimestampPair(job.EndedAt) },
}

// JobFieldNames lists the known job fields in sorted order
func JobFieldNames() []string {
	names := make([]string, 0, len(jobFields))
	for name := range jobFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownFieldError reports a job field that does not exist
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown job field %q", e.Field)
}

// jobInfo extracts the named fields of job, in order
func jobInfo(job *types.Job, fields []string) ([]interface{}, error) {
	row := make([]interface{}, len(fields))
	for i, name := range fields {
		getter, ok := jobFields[name]
		if !ok {
			return nil, &UnknownFieldError{Field: name}
		}
		row[i] = getter(job)
	}
	return row, nil
}

// Query returns the named fields of each job. Unknown jobs yield a nil
// row. With no ids every queued job is returned in id order.
func (q *Queue) Query(ids []types.JobID, fields []string) ([][]interface{}, error) {
	for _, name := range fields {
		if _, ok := jobFields[name]; !ok {
			return nil, &UnknownFieldError{Field: name}
		}
	}
	if len(ids) == 0 {
		ids = q.IDs()
	}

	rows := make([][]interface{}, len(ids))
	for i, id := range ids {
		job, err := q.Get(id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if rows[i], err = jobInfo(job, fields); err != nil {
			return nil, err
		}
	}
	return rows, nil
}
