// Package snapshot persists document snapshots. A snapshot is exactly the
// canonical serialization of the tree; replica identity is not stored.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
	"go.uber.org/zap"

	"jsonstore/jsonsync/store"
	"jsonstore/jsonsync/synclog"
	"jsonstore/jsonsync/tree"
)

// ErrSnapshotNotFound is returned by Load when no snapshot exists for a
// document id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Adapter stores snapshots by document id.
type Adapter interface {
	Save(ctx context.Context, docID string, data []byte) error
	// Load returns ErrSnapshotNotFound (possibly wrapped) when docID is unknown.
	Load(ctx context.Context, docID string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
	// Delete succeeds when docID is already gone.
	Delete(ctx context.Context, docID string) error
	Close() error
}

// Save writes the document of s under docID. s must not be mutated
// concurrently.
func Save(ctx context.Context, a Adapter, docID string, s *store.Store) error {
	if err := a.Save(ctx, docID, []byte(s.Dump())); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", docID, err)
	}
	return nil
}

// Restore creates a store from the snapshot saved under docID. A snapshot
// that does not parse yields common.ErrDeserialization.
func Restore(ctx context.Context, a Adapter, docID string, opts ...store.Option) (*store.Store, error) {
	data, err := a.Load(ctx, docID)
	if err != nil {
		return nil, err
	}
	return store.NewFromJSON(data, opts...)
}

// Load parses the snapshot saved under docID, for handing to ResetData.
func Load(ctx context.Context, a Adapter, docID string) (*tree.Node, error) {
	data, err := a.Load(ctx, docID)
	if err != nil {
		return nil, err
	}
	return tree.Parse(data)
}

// Diff returns the RFC 7386 merge patch turning snapshot a into snapshot b.
// Identical documents give {}.
func Diff(a, b []byte) ([]byte, error) {
	patch, err := jsonpatch.CreateMergePatch(a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to diff snapshots: %w", err)
	}
	return patch, nil
}

// Diverged reports whether two snapshots describe different documents.
func Diverged(a, b []byte) (bool, error) {
	patch, err := Diff(a, b)
	if err != nil {
		return false, err
	}
	return !bytes.Equal(bytes.TrimSpace(patch), []byte("{}")), nil
}

// Saver periodically writes a snapshot of a document, skipping unchanged
// ones.
type Saver struct {
	adapter  Adapter
	docID    string
	dump     func() string
	interval time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	last []byte
}

// NewSaver creates a Saver. dump must be safe to call from another goroutine,
// for example syncrelay.Replica.Dump.
func NewSaver(a Adapter, docID string, dump func() string, interval time.Duration) *Saver {
	return &Saver{
		adapter:  a,
		docID:    docID,
		dump:     dump,
		interval: interval,
		logger:   synclog.GetLogger().With(zap.String("doc_id", docID)),
	}
}

// SaveNow writes the current document if it changed since the last save. It
// reports whether anything was written.
func (s *Saver) SaveNow(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := []byte(s.dump())
	if s.last != nil {
		changed, err := Diverged(s.last, current)
		if err != nil {
			return false, err
		}
		if !changed {
			return false, nil
		}
	}

	if err := s.adapter.Save(ctx, s.docID, current); err != nil {
		return false, fmt.Errorf("failed to save snapshot %s: %w", s.docID, err)
	}
	s.logger.Debug("snapshot saved", zap.Int("size", len(current)))
	s.last = current
	return true, nil
}

// Run saves every interval until ctx is done, then saves once more.
func (s *Saver) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := s.SaveNow(final); err != nil {
				s.logger.Error("final snapshot failed", zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			if _, err := s.SaveNow(ctx); err != nil {
				s.logger.Error("snapshot failed", zap.Error(err))
			}
		}
	}
}
