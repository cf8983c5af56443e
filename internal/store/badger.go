package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/lexlab/tracer/internal/domain"
)

// Key layout: state:<tenant>:<learner> -> JSON(MasteryState).
const statePrefix = "state:"

// BadgerStore is the embedded KV implementation of the state store, for
// single-node deployments and tests. The version precondition is enforced
// inside a single read-modify-write transaction.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a persistent store in dataDir.
func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dataDir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewInMemoryBadgerStore opens a store that is not persisted to disk.
func NewInMemoryBadgerStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func stateKey(learnerID, tenantID uuid.UUID) []byte {
	return []byte(statePrefix + tenantID.String() + ":" + learnerID.String())
}

func (s *BadgerStore) Load(ctx context.Context, learnerID, tenantID uuid.UUID) (*domain.MasteryState, error) {
	var state *domain.MasteryState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey(learnerID, tenantID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			state = &domain.MasteryState{}
			return json.Unmarshal(val, state)
		})
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *BadgerStore) Save(ctx context.Context, state *domain.MasteryState, expectedVersion int64) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	key := stateKey(state.LearnerID, state.TenantID)

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if expectedVersion != 0 {
				return ErrVersionConflict
			}
		case err != nil:
			return err
		default:
			var stored struct {
				Version int64 `json:"version"`
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}
			if stored.Version != expectedVersion {
				return ErrVersionConflict
			}
		}
		return txn.Set(key, blob)
	})
}

func (s *BadgerStore) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(statePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			parts := strings.Split(strings.TrimPrefix(key, statePrefix), ":")
			if len(parts) != 2 {
				continue
			}
			id, err := uuid.Parse(parts[0])
			if err != nil {
				continue
			}
			seen[id] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tenants := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		tenants = append(tenants, id)
	}
	return tenants, nil
}

func (s *BadgerStore) ForEachByTenant(ctx context.Context, tenantID uuid.UUID, fn func(*domain.MasteryState) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(statePrefix + tenantID.String() + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			state := &domain.MasteryState{}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, state)
			}); err != nil {
				return err
			}
			if err := fn(state); err != nil {
				return err
			}
		}
		return nil
	})
}
