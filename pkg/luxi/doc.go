/*
Package luxi implements the LUXI protocol spoken between cluster clients and
the master daemon.

LUXI is a request/response protocol over a Unix stream socket. Every message
is a JSON document terminated by an ETX byte (0x03); the terminator never
appears inside a message because JSON strings escape control characters.

# Wire Format

A call names a method and carries a method-specific JSON array of
arguments:

	{"method": "QueryJobs", "args": [[1, 2], ["id", "status"]]}

The reply reports success and carries either the result or an error
message:

	{"success": true,  "result": [[1, "success"], [2, "running"]]}
	{"success": false, "result": "Job 3 not found"}

# Architecture

	┌──────────── client ────────────┐        ┌──────────── luxid ─────────────┐
	│                                 │        │                                 │
	│  typed call (luxi.SubmitJob)    │        │  Server.Serve (one goroutine    │
	│        │ Encode                 │        │  per connection)                │
	│        ▼                        │        │        │ ParseCall, Decode      │
	│  BuildCall ──► Transport.Send ──┼──ETX──►│        ▼                        │
	│                                 │        │  read-only check (IsReadOnly)   │
	│  ParseResponse ◄── Recv ◄───────┼◄──ETX──┤        │                        │
	│        │                        │        │  Handler.Handle(ctx, op)        │
	│        ▼                        │        │        │ BuildResponse          │
	│  decoded result                 │        │        ▼                        │
	└─────────────────────────────────┘        └─────────────────────────────────┘

Op is a closed set of typed calls, one struct per method. Encode and Decode
translate between an Op and the (method, args) pair; the set of methods is
fixed, so an unknown method name is rejected before it reaches the handler.

Requests on one connection are processed in order. A server bound to the
read-only socket refuses every method that is not a query.

# Errors

	ProtocolError   the message is not a valid envelope
	DecodeError     the arguments do not match the method
	RemoteError     the peer answered success=false
	TransportError  connect, send or receive failed; Timeout() tells
	                deadline expiry apart

A TransportError closes the client's connection; later calls fail with
ErrConnectionBroken until a new client is dialed.

# Usage

	c, err := luxi.Dial("/var/run/ganeti/socket/ganeti-master", luxi.DefaultTimeouts())
	if err != nil {
		return err
	}
	defer c.Close()

	id, err := c.SubmitJob([]types.OpCode{{"OP_ID": "OP_TEST_DELAY", "duration": 1}})
	if err != nil {
		return err
	}
	statuses, err := c.QueryJobsStatus([]types.JobID{id})
*/
package luxi
