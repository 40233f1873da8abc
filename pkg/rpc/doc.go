/*
Package rpc gathers live node data for queries over gRPC.

Every node runs an Agent answering NodeInfo with its runtime data encoded as
a protobuf Struct. The master side Collector fans requests out to all
requested nodes in parallel, bounded by a per-node timeout, and keeps one
client connection per node address.

	master                               node
	Collector.CollectNodes ──NodeInfo──► Agent ──► InfoFunc (FileInfo, static)
*/
package rpc
