package luxi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/query"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// ErrConnectionBroken is returned by calls on a client whose connection
// failed earlier. The caller has to dial a new client.
var ErrConnectionBroken = errors.New("connection closed after an earlier failure")

// Client issues LUXI calls over one connection. Calls are serialized;
// each one blocks until its response arrives or a timeout expires. After
// a transport failure the connection is closed, since a late reply would
// otherwise be read as the answer to the next call.
type Client struct {
	mu     sync.Mutex
	t      *Transport
	broken error
}

// Dial connects to the daemon socket at path
func Dial(path string, timeouts Timeouts) (*Client, error) {
	t, err := DialTransport(path, timeouts)
	if err != nil {
		return nil, err
	}
	return &Client{t: t}, nil
}

// NewClient creates a client over an established connection
func NewClient(conn net.Conn, timeouts Timeouts) *Client {
	return &Client{t: NewTransport(conn, timeouts)}
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil
	}
	c.broken = ErrConnectionBroken
	return c.t.Close()
}

// Call sends op and returns the raw result payload. A response with
// success set to false is returned as a *RemoteError.
func (c *Client) Call(op Op) (json.RawMessage, error) {
	msg, err := BuildCall(op)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil, &TransportError{Op: "send", Err: c.broken}
	}

	logger := log.WithMethod(op.Method())
	logger.Debug().Int("bytes", len(msg)).Msg("Sending LUXI call")

	if err := c.t.Send(msg); err != nil {
		return nil, c.fail(err)
	}
	reply, err := c.t.Receive()
	if err != nil {
		return nil, c.fail(err)
	}
	return ParseResponse(reply)
}

// fail closes the connection when err left the stream in an unknown
// state. Callers hold c.mu.
func (c *Client) fail(err error) error {
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		return err
	}
	c.broken = fmt.Errorf("%w: %v", ErrConnectionBroken, err)
	if cerr := c.t.Close(); cerr != nil {
		logger := log.WithComponent("luxi")
		logger.Debug().Err(cerr).Msg("Closing failed connection")
	}
	return err
}

// callInto calls op and decodes the result into out
func (c *Client) callInto(op Op, out interface{}) error {
	raw, err := c.Call(op)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("invalid %s result: %v", op.Method(), err)}
	}
	return nil
}

// SubmitJob submits one job and returns its id
func (c *Client) SubmitJob(ops []types.OpCode) (types.JobID, error) {
	var id types.JobID
	err := c.callInto(SubmitJob{Ops: ops}, &id)
	return id, err
}

// SubmitResult is the outcome of one job of a batch submission
type SubmitResult struct {
	JobID types.JobID
	Err   error
}

// SubmitManyJobs submits several jobs at once. The result has one entry
// per job; a job rejected by the daemon carries a *RemoteError while the
// others still get their ids. A row that cannot be parsed fails the
// whole call.
func (c *Client) SubmitManyJobs(jobs [][]types.OpCode) ([]SubmitResult, error) {
	var rows []json.RawMessage
	if err := c.callInto(SubmitManyJobs{Jobs: jobs}, &rows); err != nil {
		return nil, err
	}
	if len(rows) != len(jobs) {
		return nil, &ProtocolError{Reason: fmt.Sprintf("submitted %d jobs, got %d results", len(jobs), len(rows))}
	}

	results := make([]SubmitResult, len(rows))
	for i, row := range rows {
		var pair []json.RawMessage
		if err := json.Unmarshal(row, &pair); err != nil || len(pair) != 2 {
			return nil, &ProtocolError{Reason: fmt.Sprintf("invalid submission result %d: %s", i, string(row))}
		}
		var ok bool
		if err := json.Unmarshal(pair[0], &ok); err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("invalid submission status %d: %s", i, string(pair[0]))}
		}
		if !ok {
			results[i].Err = &RemoteError{Message: errorMessage(pair[1])}
			continue
		}
		if err := json.Unmarshal(pair[1], &results[i].JobID); err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("invalid job id in result %d: %v", i, err)}
		}
	}
	return results, nil
}

// QueryJobsStatus returns the status of each job. An unknown job fails
// the whole call with ErrJobNotFound.
func (c *Client) QueryJobsStatus(ids []types.JobID) ([]types.JobStatus, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []*[]types.JobStatus
	if err := c.callInto(QueryJobs{JobIDs: ids, Fields: []string{"status"}}, &rows); err != nil {
		return nil, err
	}
	if len(rows) != len(ids) {
		return nil, &ProtocolError{Reason: fmt.Sprintf("queried %d jobs, got %d rows", len(ids), len(rows))}
	}

	out := make([]types.JobStatus, len(ids))
	for i, row := range rows {
		if row == nil {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, ids[i])
		}
		if len(*row) != 1 {
			return nil, &ProtocolError{Reason: fmt.Sprintf("status row for job %s has %d fields", ids[i], len(*row))}
		}
		out[i] = (*row)[0]
	}
	return out, nil
}

// QueryJobs returns the requested fields of each job. Rows of unknown jobs
// are nil.
func (c *Client) QueryJobs(ids []types.JobID, fields []string) ([][]interface{}, error) {
	var rows [][]interface{}
	err := c.callInto(QueryJobs{JobIDs: ids, Fields: fields}, &rows)
	return rows, err
}

// JobChange is the outcome of WaitForJobChange. When Unchanged is set the
// timeout passed without any change.
type JobChange struct {
	Unchanged  bool
	JobInfo    []interface{}
	LogEntries []types.LogEntry
}

// JobUnchanged is sent instead of job data when a wait times out
const JobUnchanged = "nochange"

// WaitForJobChange waits until the job's fields or log differ from what
// the caller already has
func (c *Client) WaitForJobChange(op WaitForJobChange) (*JobChange, error) {
	raw, err := c.Call(op)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, op.JobID)
	}
	var marker string
	if json.Unmarshal(raw, &marker) == nil {
		if marker != JobUnchanged {
			return nil, &ProtocolError{Reason: fmt.Sprintf("unexpected job change result %q", marker)}
		}
		return &JobChange{Unchanged: true}, nil
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
		return nil, &ProtocolError{Reason: "job change result must be a pair"}
	}
	change := &JobChange{}
	if err := json.Unmarshal(pair[0], &change.JobInfo); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("invalid job info: %v", err)}
	}
	if err := json.Unmarshal(pair[1], &change.LogEntries); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("invalid log entries: %v", err)}
	}
	return change, nil
}

// Query runs a filtered query
func (c *Client) Query(what types.ItemType, fields []string, filter query.Filter) (*types.QueryResult, error) {
	var res types.QueryResult
	if err := c.callInto(Query{What: what, Fields: fields, Filter: filter}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// QueryFields describes the fields of a resource kind. Nil fields
// requests all of them.
func (c *Client) QueryFields(what types.ItemType, fields []string) (*types.QueryFieldsResult, error) {
	var res types.QueryFieldsResult
	if err := c.callInto(QueryFields{What: what, Fields: fields}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// QueryNodes runs an old-style node query
func (c *Client) QueryNodes(names, fields []string, useLocking bool) ([][]interface{}, error) {
	var rows [][]interface{}
	err := c.callInto(QueryNodes{Names: names, Fields: fields, UseLocking: useLocking}, &rows)
	return rows, err
}

// QueryGroups runs an old-style group query
func (c *Client) QueryGroups(names, fields []string, useLocking bool) ([][]interface{}, error) {
	var rows [][]interface{}
	err := c.callInto(QueryGroups{Names: names, Fields: fields, UseLocking: useLocking}, &rows)
	return rows, err
}

// QueryInstances runs an old-style instance query
func (c *Client) QueryInstances(names, fields []string, useLocking bool) ([][]interface{}, error) {
	var rows [][]interface{}
	err := c.callInto(QueryInstances{Names: names, Fields: fields, UseLocking: useLocking}, &rows)
	return rows, err
}

// QueryExports lists exports per node name. Nodes that could not be
// contacted map to false.
func (c *Client) QueryExports(nodes []string, useLocking bool) (map[string]interface{}, error) {
	var res map[string]interface{}
	err := c.callInto(QueryExports{Nodes: nodes, UseLocking: useLocking}, &res)
	return res, err
}

// QueryClusterInfo returns the cluster description
func (c *Client) QueryClusterInfo() (map[string]interface{}, error) {
	var res map[string]interface{}
	err := c.callInto(QueryClusterInfo{}, &res)
	return res, err
}

// QueryConfigValues returns the named configuration values in order
func (c *Client) QueryConfigValues(fields []string) ([]interface{}, error) {
	var res []interface{}
	err := c.callInto(QueryConfigValues{Fields: fields}, &res)
	return res, err
}

// QueryTags returns the tags of an object
func (c *Client) QueryTags(kind, name string) ([]string, error) {
	var res []string
	err := c.callInto(QueryTags{Kind: kind, Name: name}, &res)
	return res, err
}

// CancelJob cancels a pending job. The daemon answers with a success flag
// and a message.
func (c *Client) CancelJob(id types.JobID) (bool, string, error) {
	return c.statusCall(CancelJob{JobID: id})
}

// ArchiveJob archives a finished job
func (c *Client) ArchiveJob(id types.JobID) (bool, error) {
	var ok bool
	err := c.callInto(ArchiveJob{JobID: id}, &ok)
	return ok, err
}

// AutoArchiveJobs archives finished jobs older than age seconds and
// returns how many were archived and how many are left to examine
func (c *Client) AutoArchiveJobs(age, timeout int64) (int, int, error) {
	var res [2]int
	if err := c.callInto(AutoArchiveJobs{Age: age, Timeout: timeout}, &res); err != nil {
		return 0, 0, err
	}
	return res[0], res[1], nil
}

// SetDrainFlag sets or clears the queue drain flag
func (c *Client) SetDrainFlag(flag bool) error {
	_, err := c.Call(SetDrainFlag{Flag: flag})
	return err
}

// SetWatcherPause pauses the watcher until the given Unix time; nil
// unpauses it. The daemon returns the effective pause end, if any.
func (c *Client) SetWatcherPause(until *float64) (*float64, error) {
	var res *float64
	err := c.callInto(SetWatcherPause{Until: until}, &res)
	return res, err
}

func (c *Client) statusCall(op Op) (bool, string, error) {
	var pair []json.RawMessage
	if err := c.callInto(op, &pair); err != nil {
		return false, "", err
	}
	if len(pair) != 2 {
		return false, "", &ProtocolError{Reason: fmt.Sprintf("%s result must be a pair", op.Method())}
	}
	var ok bool
	var msg string
	if json.Unmarshal(pair[0], &ok) != nil || json.Unmarshal(pair[1], &msg) != nil {
		return false, "", &ProtocolError{Reason: fmt.Sprintf("invalid %s result", op.Method())}
	}
	return ok, msg, nil
}
