package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/semillacaramelo/ftba/pkg/log"
	"github.com/semillacaramelo/ftba/pkg/types"
)

var (
	// Bucket names
	bucketStrategies  = []byte("strategies")
	bucketPerformance = []byte("performance")
	bucketResults     = []byte("results")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "ftba.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketStrategies,
			bucketPerformance,
			bucketResults,
		}

		for _, bucket := range buckets {
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

// Strategy operations
func (s *BoltStore) SaveStrategy(record *StrategyRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStrategies)
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.Name), data)
	})
}

func (s *BoltStore) GetStrategy(name string) (*StrategyRecord, error) {
	var record *StrategyRecord
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStrategies)
		data := b.Get([]byte(name))
		if data == nil {
			return nil
		}
		var r StrategyRecord
		if err := json.Unmarshal(data, &r); err != nil {
			// Corrupt record: discard it so defaults take over.
			storageLogger := log.WithComponent("storage")
			storageLogger.Warn().
				Str("strategy", name).
				Err(err).
				Msg("Discarding corrupt strategy record")
			return b.Delete([]byte(name))
		}
		record = &r
		return nil
	})
	return record, err
}

func (s *BoltStore) ListStrategies() ([]*StrategyRecord, error) {
	var records []*StrategyRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStrategies)
		return b.ForEach(func(k, v []byte) error {
			var r StrategyRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return nil // skip corrupt record
			}
			records = append(records, &r)
			return nil
		})
	})
	return records, err
}

// Performance operations
func (s *BoltStore) SavePerformance(snapshot *PerformanceSnapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPerformance)
		data, err := json.Marshal(snapshot)
		if err != nil {
			return err
		}
		return b.Put([]byte(snapshot.Strategy), data)
	})
}

func (s *BoltStore) GetPerformance(strategy string) (*PerformanceSnapshot, error) {
	var snapshot *PerformanceSnapshot
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPerformance)
		data := b.Get([]byte(strategy))
		if data == nil {
			return nil
		}
		var p PerformanceSnapshot
		if err := json.Unmarshal(data, &p); err != nil {
			storageLogger := log.WithComponent("storage")
			storageLogger.Warn().
				Str("strategy", strategy).
				Err(err).
				Msg("Discarding corrupt performance record")
			return b.Delete([]byte(strategy))
		}
		snapshot = &p
		return nil
	})
	return snapshot, err
}

func (s *BoltStore) ListPerformance() ([]*PerformanceSnapshot, error) {
	var snapshots []*PerformanceSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPerformance)
		return b.ForEach(func(k, v []byte) error {
			var p PerformanceSnapshot
			if err := json.Unmarshal(v, &p); err != nil {
				return nil // skip corrupt record
			}
			snapshots = append(snapshots, &p)
			return nil
		})
	})
	return snapshots, err
}

// Result operations
func (s *BoltStore) SaveResult(result *types.TradeResult) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResults)
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		return b.Put([]byte(result.ExecutionID), data)
	})
}

func (s *BoltStore) ListResults() ([]*types.TradeResult, error) {
	var results []*types.TradeResult
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResults)
		return b.ForEach(func(k, v []byte) error {
			var r types.TradeResult
			if err := json.Unmarshal(v, &r); err != nil {
				return nil // skip corrupt record
			}
			results = append(results, &r)
			return nil
		})
	})
	return results, err
}
