// Package types defines the objects shared by every luxid package: the
// cluster configuration (Cluster, Node, NodeGroup, Instance), node runtime
// data, jobs with their opcodes and logs, and query results.
//
// Types that appear on the LUXI wire implement their own JSON encoding
// where the wire form is not a plain object: JobID accepts numeric
// strings, LogEntry is a four element list and ResultEntry is a
// [status, value] pair.
package types
