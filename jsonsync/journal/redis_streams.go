package journal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"jsonstore/jsonsync/synclog"
	"jsonstore/jsonsync/syncevent"
	"jsonstore/jsonsync/syncpubsub"
)

// DefaultMaxLen bounds a stream when no other limit is given.
const DefaultMaxLen = 10000

// RedisStreamsJournal stores entries in a Redis stream. The stream is trimmed
// approximately to maxLen entries, so very old history may be gone.
type RedisStreamsJournal struct {
	client    *redis.Client
	streamKey string
	format    syncpubsub.EncodingFormat
	maxLen    int64
	seq       *sequencer
	logger    *zap.Logger
}

// NewRedisStreamsJournal journals to streamKey. maxLen <= 0 means
// DefaultMaxLen.
func NewRedisStreamsJournal(client *redis.Client, streamKey string, nodeID, maxLen int64) (*RedisStreamsJournal, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if streamKey == "" {
		return nil, fmt.Errorf("stream key cannot be empty")
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	seq, err := newSequencer(nodeID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStreamsJournal{
		client:    client,
		streamKey: streamKey,
		format:    syncpubsub.EncodingFormatJSON,
		maxLen:    maxLen,
		seq:       seq,
		logger:    synclog.GetLogger().With(zap.String("stream", streamKey)),
	}, nil
}

// Append implements Journal.
func (j *RedisStreamsJournal) Append(ctx context.Context, e *syncevent.Event) (Entry, error) {
	data, err := syncpubsub.EncodeEvent(e, j.format)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode event: %w", err)
	}

	entry := Entry{Seq: j.seq.next(), Event: e}
	values := map[string]interface{}{
		"seq":       strconv.FormatInt(entry.Seq, 10),
		"data":      data,
		"format":    string(j.format),
		"timestamp": time.Now().UnixNano(),
	}

	_, err = j.client.XAdd(ctx, &redis.XAddArgs{
		Stream: j.streamKey,
		MaxLen: j.maxLen,
		Approx: true,
		ID:     "*",
		Values: values,
	}).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to add event to stream: %w", err)
	}
	return entry, nil
}

// Since implements Journal. Stream messages that cannot be decoded are
// logged and skipped.
func (j *RedisStreamsJournal) Since(ctx context.Context, seq int64) ([]Entry, error) {
	messages, err := j.client.XRange(ctx, j.streamKey, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	var out []Entry
	for _, message := range messages {
		seqStr, ok := message.Values["seq"].(string)
		if !ok {
			continue
		}
		entrySeq, err := strconv.ParseInt(seqStr, 10, 64)
		if err != nil || entrySeq <= seq {
			continue
		}

		data, _ := message.Values["data"].(string)
		format, _ := message.Values["format"].(string)
		e, err := syncpubsub.DecodeEvent([]byte(data), syncpubsub.EncodingFormat(format))
		if err != nil {
			j.logger.Warn("skipped undecodable stream entry",
				zap.String("message_id", message.ID),
				zap.Error(err))
			continue
		}
		out = append(out, Entry{Seq: entrySeq, Event: e})
	}
	return out, nil
}

// Close implements Journal. The Redis client stays open.
func (j *RedisStreamsJournal) Close() error {
	return nil
}
