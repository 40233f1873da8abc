package storage

import (
	"errors"

	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// ErrNotFound is returned when a looked-up object does not exist
var ErrNotFound = errors.New("not found")

// Store defines the interface for the cluster configuration store
type Store interface {
	// Cluster
	GetCluster() (*types.Cluster, error)
	SaveCluster(cluster *types.Cluster) error

	// Nodes
	CreateNode(node *types.Node) error
	GetNode(uuid string) (*types.Node, error)
	ListNodes() ([]*types.Node, error)
	UpdateNode(node *types.Node) error
	DeleteNode(uuid string) error

	// Node groups
	CreateGroup(group *types.NodeGroup) error
	GetGroup(uuid string) (*types.NodeGroup, error)
	ListGroups() ([]*types.NodeGroup, error)
	DeleteGroup(uuid string) error

	// Instances
	CreateInstance(inst *types.Instance) error
	GetInstance(uuid string) (*types.Instance, error)
	ListInstances() ([]*types.Instance, error)
	UpdateInstance(inst *types.Instance) error
	DeleteInstance(uuid string) error

	// Snapshot returns a consistent copy of the whole configuration
	Snapshot() (*types.ConfigData, error)
	// Replace swaps the whole configuration in one transaction
	Replace(cfg *types.ConfigData) error

	// Job archive
	ArchiveJob(job *types.Job) error
	GetArchivedJob(id types.JobID) (*types.Job, error)
	LastArchivedJobID() (types.JobID, error)

	// Utility
	Close() error
}
