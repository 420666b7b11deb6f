// Package journal keeps an append-only log of the events a replica emitted,
// so that a replica joining late, or one that dropped an event, can catch up
// by replaying what it missed.
package journal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"jsonstore/jsonsync/store"
	"jsonstore/jsonsync/synclog"
	"jsonstore/jsonsync/syncevent"
)

// Entry is one journaled event. Seq increases with every append.
type Entry struct {
	Seq   int64            `json:"seq"`
	Event *syncevent.Event `json:"event"`
}

// Journal is an ordered event log.
type Journal interface {
	// Append stores e and returns its entry.
	Append(ctx context.Context, e *syncevent.Event) (Entry, error)
	// Since returns the entries with Seq greater than seq, oldest first.
	// Since(ctx, 0) returns everything.
	Since(ctx context.Context, seq int64) ([]Entry, error)
	// Close releases the journal.
	Close() error
}

// sequencer hands out snowflake ids, which grow with time on one node.
type sequencer struct {
	node *snowflake.Node
	mu   sync.Mutex
	last int64
}

func newSequencer(nodeID int64) (*sequencer, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create sequence node: %w", err)
	}
	return &sequencer{node: node}, nil
}

func (s *sequencer) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.node.Generate().Int64()
	if seq <= s.last {
		seq = s.last + 1
	}
	s.last = seq
	return seq
}

// MemoryJournal keeps entries in process memory.
type MemoryJournal struct {
	seq     *sequencer
	mutex   sync.RWMutex
	entries []Entry
	closed  bool
}

// NewMemoryJournal creates an empty journal. nodeID distinguishes sequence
// generators and must be in [0, 1023].
func NewMemoryJournal(nodeID int64) (*MemoryJournal, error) {
	seq, err := newSequencer(nodeID)
	if err != nil {
		return nil, err
	}
	return &MemoryJournal{seq: seq}, nil
}

// Append implements Journal.
func (j *MemoryJournal) Append(_ context.Context, e *syncevent.Event) (Entry, error) {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	if j.closed {
		return Entry{}, fmt.Errorf("journal is closed")
	}
	entry := Entry{Seq: j.seq.next(), Event: e}
	j.entries = append(j.entries, entry)
	return entry, nil
}

// Since implements Journal.
func (j *MemoryJournal) Since(_ context.Context, seq int64) ([]Entry, error) {
	j.mutex.RLock()
	defer j.mutex.RUnlock()

	if j.closed {
		return nil, fmt.Errorf("journal is closed")
	}
	var out []Entry
	for _, entry := range j.entries {
		if entry.Seq > seq {
			out = append(out, entry)
		}
	}
	return out, nil
}

// Close implements Journal.
func (j *MemoryJournal) Close() error {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.closed = true
	j.entries = nil
	return nil
}

// CheckpointEvery is how many events may follow the newest checkpoint before
// the origin should write another one. It keeps a checkpoint inside a stream
// trimmed to DefaultMaxLen.
const CheckpointEvery = DefaultMaxLen / 2

// Checkpoint emits a reset of s to its own content. Journaled, it gives a
// replica that starts empty the full document to replay from.
func Checkpoint(s *store.Store) (*syncevent.Event, error) {
	return s.ResetData(s.AsTree())
}

func isCheckpoint(e *syncevent.Event) bool {
	return e != nil && e.Redo != nil && e.Redo.Type() == syncevent.OpReset
}

// Sink appends every event a store emits to a journal.
type Sink struct {
	journal Journal
	logger  *zap.Logger
	last    atomic.Int64
	pending atomic.Int64
}

// NewSink creates a Sink writing to j.
func NewSink(j Journal) *Sink {
	return &Sink{journal: j, logger: synclog.GetLogger()}
}

// OnEvent implements store.Sink. Failures are logged; the edit has already
// been applied.
func (s *Sink) OnEvent(e *syncevent.Event, _ bool) {
	entry, err := s.journal.Append(context.Background(), e)
	if err != nil {
		s.logger.Error("failed to journal event",
			zap.String("op", string(e.Redo.Type())),
			zap.Error(err))
		return
	}
	s.last.Store(entry.Seq)
	if isCheckpoint(e) {
		s.pending.Store(0)
	} else {
		s.pending.Add(1)
	}
}

// LastSeq returns the sequence number of the newest journaled event.
func (s *Sink) LastSeq() int64 {
	return s.last.Load()
}

// Pending returns how many events were journaled after the newest checkpoint.
func (s *Sink) Pending() int64 {
	return s.pending.Load()
}

// Replay applies the entries after since to s as remote redo events and
// returns the sequence number of the last entry seen. Replay starts at the
// newest checkpoint among those entries, since a reset discards everything
// before it. Entries that cannot be applied are logged and skipped.
func Replay(ctx context.Context, j Journal, s *store.Store, since int64) (int64, error) {
	entries, err := j.Since(ctx, since)
	if err != nil {
		return since, fmt.Errorf("failed to read journal: %w", err)
	}

	start := 0
	for i := len(entries) - 1; i >= 0; i-- {
		if isCheckpoint(entries[i].Event) {
			start = i
			break
		}
	}

	last := since
	for _, entry := range entries[start:] {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		if err := s.ProcessEvent(entry.Event, true, false, false); err != nil {
			synclog.Warn("skipped journal entry",
				zap.Int64("seq", entry.Seq),
				zap.Error(err))
		}
		last = entry.Seq
	}
	return last, nil
}
