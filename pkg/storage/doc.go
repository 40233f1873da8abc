/*
Package storage persists the cluster configuration and the job archive in
BoltDB.

# Layout

The database lives in <data-dir>/config.db and holds one bucket per object
kind. Objects are stored as JSON keyed by UUID; archived jobs are keyed by
their id in big-endian form so a cursor walks them in id order.

	cluster       "cluster" -> Cluster
	nodes         uuid      -> Node
	nodegroups    uuid      -> NodeGroup
	instances     uuid      -> Instance
	job_archive   id        -> Job

Snapshot reads all configuration buckets in one transaction. Replace swaps
them in one transaction, so readers never see a half-loaded configuration.

# Data Files

The configuration is loaded from two YAML files, nodes.yaml and
instances.yaml. Objects in the files may reference each other by name or
UUID; missing UUIDs are generated and references resolved before storing.

	groups:
	  - name: default
	nodes:
	  - name: node1
	    primary_ip: 192.0.2.1
	    group: default
*/
package storage
