package luxi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sanyaade-teachings/ganeti/pkg/query"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// Encode returns the wire method name and the positional argument list
// of op
func Encode(op Op) (string, []interface{}) {
	var args []interface{}
	switch o := op.(type) {
	case QueryNodes:
		args = []interface{}{stringList(o.Names), stringList(o.Fields), o.UseLocking}
	case QueryGroups:
		args = []interface{}{stringList(o.Names), stringList(o.Fields), o.UseLocking}
	case QueryInstances:
		args = []interface{}{stringList(o.Names), stringList(o.Fields), o.UseLocking}
	case QueryJobs:
		ids := o.JobIDs
		if ids == nil {
			ids = []types.JobID{}
		}
		args = []interface{}{ids, stringList(o.Fields)}
	case QueryExports:
		args = []interface{}{stringList(o.Nodes), o.UseLocking}
	case QueryConfigValues:
		args = []interface{}{stringList(o.Fields)}
	case QueryClusterInfo:
		args = []interface{}{}
	case QueryTags:
		args = []interface{}{o.Kind, o.Name}
	case Query:
		args = []interface{}{string(o.What), stringList(o.Fields), query.FilterToJSON(o.Filter)}
	case QueryFields:
		var fields interface{}
		if o.Fields != nil {
			fields = o.Fields
		}
		args = []interface{}{string(o.What), fields}
	case SubmitJob:
		args = opList(o.Ops)
	case SubmitManyJobs:
		args = make([]interface{}, 0, len(o.Jobs))
		for _, job := range o.Jobs {
			args = append(args, opList(job))
		}
	case WaitForJobChange:
		var prevInfo, prevSerial interface{}
		if o.PrevJobInfo != nil {
			prevInfo = o.PrevJobInfo
		}
		if o.PrevLogSerial != nil {
			prevSerial = *o.PrevLogSerial
		}
		args = []interface{}{o.JobID, stringList(o.Fields), prevInfo, prevSerial, o.Timeout}
	case ArchiveJob:
		args = []interface{}{o.JobID}
	case AutoArchiveJobs:
		args = []interface{}{o.Age, o.Timeout}
	case CancelJob:
		args = []interface{}{o.JobID}
	case SetDrainFlag:
		args = []interface{}{o.Flag}
	case SetWatcherPause:
		var until interface{}
		if o.Until != nil {
			until = *o.Until
		}
		args = []interface{}{until}
	default:
		panic(fmt.Sprintf("luxi: unhandled operation %T", op))
	}
	return op.Method(), args
}

func stringList(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}

func opList(ops []types.OpCode) []interface{} {
	out := make([]interface{}, 0, len(ops))
	for _, op := range ops {
		out = append(out, op)
	}
	return out
}

// Decode builds the operation for method from its JSON argument list.
// It fails with a *DecodeError on unknown methods, wrong arity or
// mistyped arguments, and never returns a partially filled operation.
//
// Decoded operations are in canonical form: empty name and field lists
// are nil, and opaque values (opcode bodies, previous job info) hold the
// generic encoding/json types, so numbers are float64. Decoding the
// encoding of a canonical operation returns an equal operation.
func Decode(method string, args json.RawMessage) (Op, error) {
	d := argDecoder{method: method}
	if len(bytes.TrimSpace(args)) > 0 && !isNull(args) {
		if err := json.Unmarshal(args, &d.args); err != nil {
			return nil, d.fail("arguments must be a list")
		}
	}

	switch method {
	case MethodQueryNodes, MethodQueryGroups, MethodQueryInstances:
		return d.resourceQuery()
	case MethodQueryJobs:
		if err := d.arity(2); err != nil {
			return nil, err
		}
		var ids []types.JobID
		if !isNull(d.args[0]) {
			if err := json.Unmarshal(d.args[0], &ids); err != nil {
				return nil, d.fail("job ids: %v", err)
			}
		}
		if len(ids) == 0 {
			ids = nil
		}
		fields, err := d.strings(1, "fields")
		if err != nil {
			return nil, err
		}
		return QueryJobs{JobIDs: ids, Fields: fields}, nil
	case MethodQueryExports:
		if err := d.arity(2); err != nil {
			return nil, err
		}
		nodes, err := d.strings(0, "nodes")
		if err != nil {
			return nil, err
		}
		locking, err := d.boolean(1, "use_locking")
		if err != nil {
			return nil, err
		}
		return QueryExports{Nodes: nodes, UseLocking: locking}, nil
	case MethodQueryConfigValues:
		if err := d.arity(1); err != nil {
			return nil, err
		}
		fields, err := d.strings(0, "fields")
		if err != nil {
			return nil, err
		}
		return QueryConfigValues{Fields: fields}, nil
	case MethodQueryClusterInfo:
		if err := d.arity(0); err != nil {
			return nil, err
		}
		return QueryClusterInfo{}, nil
	case MethodQueryTags:
		if err := d.arity(2); err != nil {
			return nil, err
		}
		kind, err := d.str(0, "kind")
		if err != nil {
			return nil, err
		}
		name, err := d.str(1, "name")
		if err != nil {
			return nil, err
		}
		return QueryTags{Kind: kind, Name: name}, nil
	case MethodQuery:
		return d.query()
	case MethodQueryFields:
		if err := d.arity(2); err != nil {
			return nil, err
		}
		what, err := d.str(0, "resource kind")
		if err != nil {
			return nil, err
		}
		fields, err := d.strings(1, "fields")
		if err != nil {
			return nil, err
		}
		return QueryFields{What: types.ItemType(what), Fields: fields}, nil
	case MethodSubmitJob:
		ops, err := d.job(d.args, "job")
		if err != nil {
			return nil, err
		}
		return SubmitJob{Ops: ops}, nil
	case MethodSubmitManyJobs:
		var jobs [][]types.OpCode
		for i, raw := range d.args {
			var list []json.RawMessage
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, d.fail("job %d: expected a list of opcodes", i)
			}
			ops, err := d.job(list, fmt.Sprintf("job %d", i))
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, ops)
		}
		return SubmitManyJobs{Jobs: jobs}, nil
	case MethodWaitForJobChange:
		return d.waitForJobChange()
	case MethodArchiveJob, MethodCancelJob:
		if err := d.arity(1); err != nil {
			return nil, err
		}
		id, err := d.jobID(0)
		if err != nil {
			return nil, err
		}
		if method == MethodArchiveJob {
			return ArchiveJob{JobID: id}, nil
		}
		return CancelJob{JobID: id}, nil
	case MethodAutoArchiveJobs:
		if err := d.arity(2); err != nil {
			return nil, err
		}
		age, err := d.integer(0, "age")
		if err != nil {
			return nil, err
		}
		timeout, err := d.integer(1, "timeout")
		if err != nil {
			return nil, err
		}
		return AutoArchiveJobs{Age: age, Timeout: timeout}, nil
	case MethodSetDrainFlag:
		if err := d.arity(1); err != nil {
			return nil, err
		}
		flag, err := d.boolean(0, "flag")
		if err != nil {
			return nil, err
		}
		return SetDrainFlag{Flag: flag}, nil
	case MethodSetWatcherPause:
		if len(d.args) > 1 {
			return nil, d.fail("expected at most 1 argument, got %d", len(d.args))
		}
		if len(d.args) == 0 || isNull(d.args[0]) {
			return SetWatcherPause{}, nil
		}
		var until float64
		if err := json.Unmarshal(d.args[0], &until); err != nil {
			return nil, d.fail("until: expected a timestamp")
		}
		return SetWatcherPause{Until: &until}, nil
	}
	return nil, &DecodeError{Method: method, Reason: "unknown method"}
}

type argDecoder struct {
	method string
	args   []json.RawMessage
}

func (d argDecoder) fail(format string, a ...interface{}) error {
	return &DecodeError{Method: d.method, Reason: fmt.Sprintf(format, a...)}
}

func (d argDecoder) arity(n int) error {
	if len(d.args) != n {
		return d.fail("expected %d arguments, got %d", n, len(d.args))
	}
	return nil
}

// strings decodes a list of names. Null and the empty list both decode
// to nil.
func (d argDecoder) strings(i int, what string) ([]string, error) {
	if isNull(d.args[i]) {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(d.args[i], &out); err != nil {
		return nil, d.fail("%s: expected a list of strings", what)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (d argDecoder) str(i int, what string) (string, error) {
	var s string
	if isNull(d.args[i]) || json.Unmarshal(d.args[i], &s) != nil {
		return "", d.fail("%s: expected a string", what)
	}
	return s, nil
}

func (d argDecoder) boolean(i int, what string) (bool, error) {
	var b bool
	if isNull(d.args[i]) || json.Unmarshal(d.args[i], &b) != nil {
		return false, d.fail("%s: expected a boolean", what)
	}
	return b, nil
}

func (d argDecoder) integer(i int, what string) (int64, error) {
	var n int64
	if isNull(d.args[i]) || json.Unmarshal(d.args[i], &n) != nil {
		return 0, d.fail("%s: expected an integer", what)
	}
	return n, nil
}

func (d argDecoder) jobID(i int) (types.JobID, error) {
	var id types.JobID
	if isNull(d.args[i]) {
		return 0, d.fail("job id: expected a job id")
	}
	if err := json.Unmarshal(d.args[i], &id); err != nil {
		return 0, d.fail("job id: %v", err)
	}
	return id, nil
}

func (d argDecoder) job(list []json.RawMessage, what string) ([]types.OpCode, error) {
	if len(list) == 0 {
		return nil, d.fail("%s: no opcodes", what)
	}
	ops := make([]types.OpCode, 0, len(list))
	for i, raw := range list {
		var op types.OpCode
		if err := json.Unmarshal(raw, &op); err != nil {
			return nil, d.fail("%s: opcode %d is not an object", what, i)
		}
		if err := op.Validate(); err != nil {
			return nil, d.fail("%s: opcode %d: %v", what, i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (d argDecoder) resourceQuery() (Op, error) {
	if err := d.arity(3); err != nil {
		return nil, err
	}
	names, err := d.strings(0, "names")
	if err != nil {
		return nil, err
	}
	fields, err := d.strings(1, "fields")
	if err != nil {
		return nil, err
	}
	locking, err := d.boolean(2, "use_locking")
	if err != nil {
		return nil, err
	}
	switch d.method {
	case MethodQueryNodes:
		return QueryNodes{Names: names, Fields: fields, UseLocking: locking}, nil
	case MethodQueryGroups:
		return QueryGroups{Names: names, Fields: fields, UseLocking: locking}, nil
	}
	return QueryInstances{Names: names, Fields: fields, UseLocking: locking}, nil
}

func (d argDecoder) query() (Op, error) {
	if err := d.arity(3); err != nil {
		return nil, err
	}
	what, err := d.str(0, "resource kind")
	if err != nil {
		return nil, err
	}
	fields, err := d.strings(1, "fields")
	if err != nil {
		return nil, err
	}
	filter, err := query.ParseFilter(d.args[2])
	if err != nil {
		return nil, d.fail("filter: %v", err)
	}
	return Query{What: types.ItemType(what), Fields: fields, Filter: filter}, nil
}

// waitForJobChange checks each position of the five-element tuple on its
// own
func (d argDecoder) waitForJobChange() (Op, error) {
	if err := d.arity(5); err != nil {
		return nil, err
	}
	id, err := d.jobID(0)
	if err != nil {
		return nil, err
	}
	fields, err := d.strings(1, "fields")
	if err != nil {
		return nil, err
	}
	op := WaitForJobChange{JobID: id, Fields: fields}

	if !isNull(d.args[2]) {
		if err := json.Unmarshal(d.args[2], &op.PrevJobInfo); err != nil {
			return nil, d.fail("previous job info: expected a list or null")
		}
	}
	if !isNull(d.args[3]) {
		serial, err := d.integer(3, "previous log serial")
		if err != nil {
			return nil, err
		}
		op.PrevLogSerial = &serial
	}
	if op.Timeout, err = d.integer(4, "timeout"); err != nil {
		return nil, err
	}
	return op, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
