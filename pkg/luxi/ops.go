package luxi

import (
	"github.com/sanyaade-teachings/ganeti/pkg/query"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// Method names as used on the wire
const (
	MethodQueryNodes        = "QueryNodes"
	MethodQueryGroups       = "QueryGroups"
	MethodQueryInstances    = "QueryInstances"
	MethodQueryJobs         = "QueryJobs"
	MethodQueryExports      = "QueryExports"
	MethodQueryConfigValues = "QueryConfigValues"
	MethodQueryClusterInfo  = "QueryClusterInfo"
	MethodQueryTags         = "QueryTags"
	MethodQuery             = "Query"
	MethodQueryFields       = "QueryFields"
	MethodSubmitJob         = "SubmitJob"
	MethodSubmitManyJobs    = "SubmitManyJobs"
	MethodWaitForJobChange  = "WaitForJobChange"
	MethodArchiveJob        = "ArchiveJob"
	MethodAutoArchiveJobs   = "AutoArchiveJobs"
	MethodCancelJob         = "CancelJob"
	MethodSetDrainFlag      = "SetDrainFlag"
	MethodSetWatcherPause   = "SetWatcherPause"
)

// Methods lists every supported method name
var Methods = []string{
	MethodQueryNodes,
	MethodQueryGroups,
	MethodQueryInstances,
	MethodQueryJobs,
	MethodQueryExports,
	MethodQueryConfigValues,
	MethodQueryClusterInfo,
	MethodQueryTags,
	MethodQuery,
	MethodQueryFields,
	MethodSubmitJob,
	MethodSubmitManyJobs,
	MethodWaitForJobChange,
	MethodArchiveJob,
	MethodAutoArchiveJobs,
	MethodCancelJob,
	MethodSetDrainFlag,
	MethodSetWatcherPause,
}

// Op is one LUXI operation with its arguments. The set of implementations
// is closed; see Methods.
type Op interface {
	Method() string
	luxiOp()
}

// QueryNodes lists nodes using the old-style field names
type QueryNodes struct {
	Names      []string
	Fields     []string
	UseLocking bool
}

// QueryGroups lists node groups
type QueryGroups struct {
	Names      []string
	Fields     []string
	UseLocking bool
}

// QueryInstances lists instances
type QueryInstances struct {
	Names      []string
	Fields     []string
	UseLocking bool
}

// QueryJobs returns the requested fields of the given jobs. An empty
// JobIDs list means all jobs.
type QueryJobs struct {
	JobIDs []types.JobID
	Fields []string
}

// QueryExports lists instance exports on the given nodes
type QueryExports struct {
	Nodes      []string
	UseLocking bool
}

// QueryConfigValues returns cluster configuration values
type QueryConfigValues struct {
	Fields []string
}

// QueryClusterInfo returns the cluster description
type QueryClusterInfo struct{}

// QueryTags returns the tags of one object
type QueryTags struct {
	Kind string
	Name string
}

// Query runs a filtered query over one resource kind. A nil Filter
// matches everything.
type Query struct {
	What   types.ItemType
	Fields []string
	Filter query.Filter
}

// QueryFields describes the fields of a resource kind. Nil Fields
// requests all fields.
type QueryFields struct {
	What   types.ItemType
	Fields []string
}

// SubmitJob submits one job made of Ops
type SubmitJob struct {
	Ops []types.OpCode
}

// SubmitManyJobs submits several jobs in one call
type SubmitManyJobs struct {
	Jobs [][]types.OpCode
}

// WaitForJobChange blocks until the job differs from the previous state
// the caller has seen, or Timeout seconds pass. A nil PrevJobInfo or
// PrevLogSerial means the caller has seen nothing yet.
type WaitForJobChange struct {
	JobID         types.JobID
	Fields        []string
	PrevJobInfo   []interface{}
	PrevLogSerial *int64
	Timeout       int64
}

// ArchiveJob moves a finished job to the archive
type ArchiveJob struct {
	JobID types.JobID
}

// AutoArchiveJobs archives finished jobs older than Age seconds, working
// for at most Timeout seconds
type AutoArchiveJobs struct {
	Age     int64
	Timeout int64
}

// CancelJob cancels a job that has not started yet
type CancelJob struct {
	JobID types.JobID
}

// SetDrainFlag sets the queue drain flag
type SetDrainFlag struct {
	Flag bool
}

// SetWatcherPause pauses the watcher until the given Unix time. Nil
// removes the pause.
type SetWatcherPause struct {
	Until *float64
}

func (QueryNodes) Method() string        { return MethodQueryNodes }
func (QueryGroups) Method() string       { return MethodQueryGroups }
func (QueryInstances) Method() string    { return MethodQueryInstances }
func (QueryJobs) Method() string         { return MethodQueryJobs }
func (QueryExports) Method() string      { return MethodQueryExports }
func (QueryConfigValues) Method() string { return MethodQueryConfigValues }
func (QueryClusterInfo) Method() string  { return MethodQueryClusterInfo }
func (QueryTags) Method() string         { return MethodQueryTags }
func (Query) Method() string             { return MethodQuery }
func (QueryFields) Method() string       { return MethodQueryFields }
func (SubmitJob) Method() string         { return MethodSubmitJob }
func (SubmitManyJobs) Method() string    { return MethodSubmitManyJobs }
func (WaitForJobChange) Method() string  { return MethodWaitForJobChange }
func (ArchiveJob) Method() string        { return MethodArchiveJob }
func (AutoArchiveJobs) Method() string   { return MethodAutoArchiveJobs }
func (CancelJob) Method() string         { return MethodCancelJob }
func (SetDrainFlag) Method() string      { return MethodSetDrainFlag }
func (SetWatcherPause) Method() string   { return MethodSetWatcherPause }

func (QueryNodes) luxiOp()        {}
func (QueryGroups) luxiOp()       {}
func (QueryInstances) luxiOp()    {}
func (QueryJobs) luxiOp()         {}
func (QueryExports) luxiOp()      {}
func (QueryConfigValues) luxiOp() {}
func (QueryClusterInfo) luxiOp()  {}
func (QueryTags) luxiOp()         {}
func (Query) luxiOp()             {}
func (QueryFields) luxiOp()       {}
func (SubmitJob) luxiOp()         {}
func (SubmitManyJobs) luxiOp()    {}
func (WaitForJobChange) luxiOp()  {}
func (ArchiveJob) luxiOp()        {}
func (AutoArchiveJobs) luxiOp()   {}
func (CancelJob) luxiOp()         {}
func (SetDrainFlag) luxiOp()      {}
func (SetWatcherPause) luxiOp()   {}
