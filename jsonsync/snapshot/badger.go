package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "snapshot/"

// DefaultGCInterval is how often the value log is garbage collected.
const DefaultGCInterval = 5 * time.Minute

// BadgerAdapter stores snapshots in an embedded Badger database.
type BadgerAdapter struct {
	db   *badger.DB
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewBadgerAdapter opens (or creates) a database in dir. gcInterval <= 0
// means DefaultGCInterval.
func NewBadgerAdapter(dir string, gcInterval time.Duration) (*BadgerAdapter, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return openBadger(opts, gcInterval)
}

// NewInMemoryBadgerAdapter opens a database that lives only in memory.
func NewInMemoryBadgerAdapter() (*BadgerAdapter, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts, 0)
}

func openBadger(opts badger.Options, gcInterval time.Duration) (*BadgerAdapter, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	if gcInterval <= 0 {
		gcInterval = DefaultGCInterval
	}

	a := &BadgerAdapter{
		db:   db,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go a.runGC(gcInterval, !opts.InMemory)
	return a, nil
}

func (a *BadgerAdapter) runGC(interval time.Duration, enabled bool) {
	defer close(a.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			if !enabled {
				continue
			}
			// reclaim while at least half of a log file is garbage
			for a.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}

func badgerKey(docID string) []byte {
	return []byte(badgerKeyPrefix + docID)
}

func (a *BadgerAdapter) Save(ctx context.Context, docID string, data []byte) error {
	err := a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(docID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (a *BadgerAdapter) Load(ctx context.Context, docID string) ([]byte, error) {
	var data []byte
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(docID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return data, nil
}

func (a *BadgerAdapter) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(badgerKeyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return ids, nil
}

func (a *BadgerAdapter) Delete(ctx context.Context, docID string) error {
	err := a.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(docID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Close stops garbage collection and closes the database.
func (a *BadgerAdapter) Close() error {
	var err error
	a.once.Do(func() {
		close(a.stop)
		<-a.done
		err = a.db.Close()
	})
	return err
}
