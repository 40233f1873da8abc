package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/sanyaade-teachings/ganeti/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketCluster    = []byte("cluster")
	bucketNodes      = []byte("nodes")
	bucketGroups     = []byte("nodegroups")
	bucketInstances  = []byte("instances")
	bucketJobArchive = []byte("job_archive")

	keyCluster = []byte("cluster")

	configBuckets = [][]byte{bucketCluster, bucketNodes, bucketGroups, bucketInstances}
)

// DBFile is the name of the database file inside the data directory
const DBFile = "config.db"

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, DBFile)

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range append(configBuckets, bucketJobArchive) {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func put(tx *bolt.Tx, bucket []byte, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

func get[T any](db *bolt.DB, bucket []byte, key []byte, what string) (*T, error) {
	var out T
	err := db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get(key)
		if data == nil {
			return fmt.Errorf("%s %s: %w", what, key, ErrNotFound)
		}
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func list[T any](tx *bolt.Tx, bucket []byte) ([]*T, error) {
	var out []*T
	err := tx.Bucket(bucket).ForEach(func(k, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return fmt.Errorf("corrupt %s entry %s: %w", bucket, k, err)
		}
		out = append(out, &item)
		return nil
	})
	return out, err
}

func (s *BoltStore) putUpdate(bucket []byte, key string, v interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucket, key, v)
	})
}

func (s *BoltStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// Cluster operations
func (s *BoltStore) GetCluster() (*types.Cluster, error) {
	return get[types.Cluster](s.db, bucketCluster, keyCluster, "cluster")
}

func (s *BoltStore) SaveCluster(cluster *types.Cluster) error {
	return s.putUpdate(bucketCluster, string(keyCluster), cluster)
}

// Node operations
func (s *BoltStore) CreateNode(node *types.Node) error {
	return s.putUpdate(bucketNodes, node.UUID, node)
}

func (s *BoltStore) GetNode(uuid string) (*types.Node, error) {
	return get[types.Node](s.db, bucketNodes, []byte(uuid), "node")
}

func (s *BoltStore) ListNodes() ([]*types.Node, error) {
	var nodes []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		nodes, err = list[types.Node](tx, bucketNodes)
		return err
	})
	return nodes, err
}

func (s *BoltStore) UpdateNode(node *types.Node) error {
	return s.CreateNode(node) // Same as create (upsert)
}

func (s *BoltStore) DeleteNode(uuid string) error {
	return s.delete(bucketNodes, uuid)
}

// Node group operations
func (s *BoltStore) CreateGroup(group *types.NodeGroup) error {
	return s.putUpdate(bucketGroups, group.UUID, group)
}

func (s *BoltStore) GetGroup(uuid string) (*types.NodeGroup, error) {
	return get[types.NodeGroup](s.db, bucketGroups, []byte(uuid), "node group")
}

func (s *BoltStore) ListGroups() ([]*types.NodeGroup, error) {
	var groups []*types.NodeGroup
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		groups, err = list[types.NodeGroup](tx, bucketGroups)
		return err
	})
	return groups, err
}

func (s *BoltStore) DeleteGroup(uuid string) error {
	return s.delete(bucketGroups, uuid)
}

// Instance operations
func (s *BoltStore) CreateInstance(inst *types.Instance) error {
	return s.putUpdate(bucketInstances, inst.UUID, inst)
}

func (s *BoltStore) GetInstance(uuid string) (*types.Instance, error) {
	return get[types.Instance](s.db, bucketInstances, []byte(uuid), "instance")
}

func (s *BoltStore) ListInstances() ([]*types.Instance, error) {
	var instances []*types.Instance
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		instances, err = list[types.Instance](tx, bucketInstances)
		return err
	})
	return instances, err
}

func (s *BoltStore) UpdateInstance(inst *types.Instance) error {
	return s.CreateInstance(inst)
}

func (s *BoltStore) DeleteInstance(uuid string) error {
	return s.delete(bucketInstances, uuid)
}

// Snapshot reads the whole configuration in a single read transaction.
// A store that was never initialised yields an empty cluster.
func (s *BoltStore) Snapshot() (*types.ConfigData, error) {
	cfg := types.NewConfigData()
	err := s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketCluster).Get(keyCluster); data != nil {
			if err := json.Unmarshal(data, &cfg.Cluster); err != nil {
				return fmt.Errorf("corrupt cluster entry: %w", err)
			}
		}

		nodes, err := list[types.Node](tx, bucketNodes)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			cfg.Nodes[n.UUID] = n
		}

		groups, err := list[types.NodeGroup](tx, bucketGroups)
		if err != nil {
			return err
		}
		for _, g := range groups {
			cfg.Groups[g.UUID] = g
		}

		instances, err := list[types.Instance](tx, bucketInstances)
		if err != nil {
			return err
		}
		for _, inst := range instances {
			cfg.Instances[inst.UUID] = inst
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Replace drops every configuration bucket and writes cfg in their place.
// The job archive is kept.
func (s *BoltStore) Replace(cfg *types.ConfigData) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range configBuckets {
			if err := tx.DeleteBucket(bucket); err != nil {
				return fmt.Errorf("failed to drop bucket %s: %w", bucket, err)
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		if err := put(tx, bucketCluster, string(keyCluster), &cfg.Cluster); err != nil {
			return err
		}
		for id, n := range cfg.Nodes {
			if err := put(tx, bucketNodes, id, n); err != nil {
				return err
			}
		}
		for id, g := range cfg.Groups {
			if err := put(tx, bucketGroups, id, g); err != nil {
				return err
			}
		}
		for id, inst := range cfg.Instances {
			if err := put(tx, bucketInstances, id, inst); err != nil {
				return err
			}
		}
		return nil
	})
}

// Job archive operations. Keys are big-endian ids so the cursor walks
// them in job order.
func jobKey(id types.JobID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func (s *BoltStore) ArchiveJob(job *types.Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketJobArchive).Put(jobKey(job.ID), data)
	})
}

func (s *BoltStore) GetArchivedJob(id types.JobID) (*types.Job, error) {
	var job types.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketJobArchive).Get(jobKey(id))
		if data == nil {
			return fmt.Errorf("archived job %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// LastArchivedJobID returns the highest archived job id, or 0 when the
// archive is empty
func (s *BoltStore) LastArchivedJobID() (types.JobID, error) {
	var id types.JobID
	err := s.db.View(func(tx *bolt.Tx) error {
		k, _ := tx.Bucket(bucketJobArchive).Cursor().Last()
		if k != nil {
			id = types.JobID(binary.BigEndian.Uint64(k))
		}
		return nil
	})
	return id, err
}
