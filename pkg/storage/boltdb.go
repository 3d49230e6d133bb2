package storage

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/scontrol/pkg/types"
	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Bucket names
	bucketJobs       = []byte("jobs")
	bucketNodes      = []byte("nodes")
	bucketPartitions = []byte("partitions")
	bucketSteps      = []byte("steps")
	bucketClocks     = []byte("clocks")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "slurmctld.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketJobs, bucketNodes, bucketPartitions, bucketSteps, bucketClocks} {
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

// jobKey is big-endian so cursor order is job id order
func jobKey(id uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, id)
}

func stepKey(jobID, stepID uint32) []byte {
	return binary.BigEndian.AppendUint32(jobKey(jobID), stepID)
}

func put(db *bolt.DB, bucket, key []byte, v any) error {
	return db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put(key, data)
	})
}

func get[T any](db *bolt.DB, bucket, key []byte) (*T, error) {
	var rec T
	err := db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get(key)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func list[T any](db *bolt.DB, bucket []byte) ([]T, error) {
	var out []T
	err := db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var rec T
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode %s/%x: %w", bucket, k, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

func del(db *bolt.DB, bucket, key []byte) error {
	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}

// Job operations
func (s *BoltStore) SaveJob(job *types.Job) error {
	return put(s.db, bucketJobs, jobKey(job.JobID), job)
}

func (s *BoltStore) GetJob(id uint32) (*types.Job, error) {
	return get[types.Job](s.db, bucketJobs, jobKey(id))
}

func (s *BoltStore) ListJobs() ([]types.Job, error) {
	return list[types.Job](s.db, bucketJobs)
}

func (s *BoltStore) DeleteJob(id uint32) error {
	return del(s.db, bucketJobs, jobKey(id))
}

// Node operations
func (s *BoltStore) SaveNode(node *types.Node) error {
	return put(s.db, bucketNodes, []byte(node.Name), node)
}

func (s *BoltStore) GetNode(name string) (*types.Node, error) {
	return get[types.Node](s.db, bucketNodes, []byte(name))
}

func (s *BoltStore) ListNodes() ([]types.Node, error) {
	return list[types.Node](s.db, bucketNodes)
}

// Partition operations
func (s *BoltStore) SavePartition(part *types.Partition) error {
	return put(s.db, bucketPartitions, []byte(part.Name), part)
}

func (s *BoltStore) ListPartitions() ([]types.Partition, error) {
	return list[types.Partition](s.db, bucketPartitions)
}

// Step operations
func (s *BoltStore) SaveStep(step *types.Step) error {
	return put(s.db, bucketSteps, stepKey(step.JobID, step.StepID), step)
}

func (s *BoltStore) ListSteps() ([]types.Step, error) {
	return list[types.Step](s.db, bucketSteps)
}

func (s *BoltStore) DeleteStep(jobID, stepID uint32) error {
	return del(s.db, bucketSteps, stepKey(jobID, stepID))
}

// SaveClock records the last update time of a record kind
func (s *BoltStore) SaveClock(kind types.Kind, t time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := t.MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketClocks).Put([]byte(kind), data)
	})
}

// Clocks returns every stored last update time
func (s *BoltStore) Clocks() (map[types.Kind]time.Time, error) {
	clocks := make(map[types.Kind]time.Time)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClocks).ForEach(func(k, v []byte) error {
			var t time.Time
			if err := t.UnmarshalBinary(v); err != nil {
				return fmt.Errorf("decode clock %s: %w", k, err)
			}
			clocks[types.Kind(k)] = t
			return nil
		})
	})
	return clocks, err
}
