package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// JobID identifies a submitted job. It is never negative.
type JobID uint64

// NewJobID builds a JobID, rejecting negative values
func NewJobID(v int64) (JobID, error) {
	if v < 0 {
		return 0, fmt.Errorf("job id cannot be negative: %d", v)
	}
	return JobID(v), nil
}

// ParseJobID parses a JobID from its decimal string form
func ParseJobID(s string) (JobID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid job id %q: %w", s, err)
	}
	return NewJobID(v)
}

func (j JobID) String() string {
	return strconv.FormatUint(uint64(j), 10)
}

// MarshalJSON encodes the id as a JSON number
func (j JobID) MarshalJSON() ([]byte, error) {
	return []byte(j.String()), nil
}

// UnmarshalJSON accepts both a JSON number and a numeric string. Numbers
// are parsed from their text so large ids keep every digit.
func (j *JobID) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("invalid job id: %w", err)
	}
	var id JobID
	var err error
	switch v := raw.(type) {
	case json.Number:
		id, err = ParseJobID(v.String())
	case string:
		id, err = ParseJobID(v)
	default:
		return fmt.Errorf("invalid job id: %s", string(data))
	}
	if err != nil {
		return err
	}
	*j = id
	return nil
}

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusWaiting   JobStatus = "waiting"
	JobStatusCanceling JobStatus = "canceling"
	JobStatusRunning   JobStatus = "running"
	JobStatusCanceled  JobStatus = "canceled"
	JobStatusSuccess   JobStatus = "success"
	JobStatusError     JobStatus = "error"
)

// AllJobStatuses lists every valid job status
var AllJobStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusWaiting,
	JobStatusCanceling,
	JobStatusRunning,
	JobStatusCanceled,
	JobStatusSuccess,
	JobStatusError,
}

// IsFinalized reports whether no further transitions can happen
func (s JobStatus) IsFinalized() bool {
	switch s {
	case JobStatusCanceled, JobStatusSuccess, JobStatusError:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses
func (s JobStatus) Valid() bool {
	for _, v := range AllJobStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// UnmarshalJSON rejects unknown statuses
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid job status: %w", err)
	}
	if !JobStatus(v).Valid() {
		return fmt.Errorf("unknown job status %q", v)
	}
	*s = JobStatus(v)
	return nil
}

// OpCode is one opaque operation inside a job. The only key interpreted
// here is OP_ID.
type OpCode map[string]interface{}

// OpID returns the opcode identifier, e.g. "OP_INSTANCE_CREATE"
func (o OpCode) OpID() string {
	id, _ := o["OP_ID"].(string)
	return id
}

// Validate checks the opcode carries a non-empty OP_ID
func (o OpCode) Validate() error {
	if o == nil {
		return fmt.Errorf("opcode is null")
	}
	if o.OpID() == "" {
		return fmt.Errorf("opcode without OP_ID")
	}
	return nil
}

// Job log entry types
const (
	LogTypeMessage = "message"
	LogTypeError   = "error"
)

// LogEntry is one line of a job's execution log. On the wire it is the
// tuple [serial, timestamp, type, message].
type LogEntry struct {
	Serial    int64
	Timestamp float64 // Unix seconds
	Type      string
	Message   interface{}
}

// MarshalJSON encodes the entry as a four element list
func (e LogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Serial, e.Timestamp, e.Type, e.Message})
}

// UnmarshalJSON decodes the four element list. The timestamp may also be
// a [seconds, microseconds] pair.
func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid log entry: %w", err)
	}
	if len(raw) != 4 {
		return fmt.Errorf("invalid log entry: expected 4 elements, got %d", len(raw))
	}
	var out LogEntry
	if err := json.Unmarshal(raw[0], &out.Serial); err != nil {
		return fmt.Errorf("invalid log entry serial: %w", err)
	}
	if err := json.Unmarshal(raw[1], &out.Timestamp); err != nil {
		var pair [2]float64
		if err := json.Unmarshal(raw[1], &pair); err != nil {
			return fmt.Errorf("invalid log entry timestamp: %s", string(raw[1]))
		}
		out.Timestamp = pair[0] + pair[1]/1e6
	}
	if err := json.Unmarshal(raw[2], &out.Type); err != nil {
		return fmt.Errorf("invalid log entry type: %w", err)
	}
	if err := json.Unmarshal(raw[3], &out.Message); err != nil {
		return fmt.Errorf("invalid log entry message: %w", err)
	}
	*e = out
	return nil
}

// Job is a submitted list of opcodes and its execution state
type Job struct {
	ID         JobID         `json:"id"`
	Ops        []OpCode      `json:"ops"`
	OpStatus   []JobStatus   `json:"opstatus"`
	OpResult   []interface{} `json:"opresult"`
	Status     JobStatus     `json:"status"`
	Log        []LogEntry    `json:"log"`
	ReceivedAt time.Time     `json:"received_ts"`
	StartedAt  *time.Time    `json:"start_ts,omitempty"`
	EndedAt    *time.Time    `json:"end_ts,omitempty"`
}

// Summary lists the opcode ids of the job
func (j *Job) Summary() []string {
	out := make([]string, len(j.Ops))
	for i, op := range j.Ops {
		out[i] = op.OpID()
	}
	return out
}

// LastLogSerial returns the serial of the newest log entry, or 0
func (j *Job) LastLogSerial() int64 {
	if len(j.Log) == 0 {
		return 0
	}
	return j.Log[len(j.Log)-1].Serial
}

// Clone returns a copy that shares no slices with j
func (j *Job) Clone() *Job {
	c := *j
	c.Ops = append([]OpCode(nil), j.Ops...)
	c.OpStatus = append([]JobStatus(nil), j.OpStatus...)
	c.OpResult = append([]interface{}(nil), j.OpResult...)
	c.Log = append([]LogEntry(nil), j.Log...)
	return &c
}

// TimestampPair encodes t as the [seconds, microseconds] pair used on the
// wire. A nil time encodes as nil.
func TimestampPair(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return []int64{t.Unix(), int64(t.Nanosecond() / 1000)}
}
