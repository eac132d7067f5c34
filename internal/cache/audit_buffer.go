package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"fz-pos-api/internal/logger"
	"fz-pos-api/internal/model"

	"github.com/redis/go-redis/v9"
)

// Audit buffer tuning.
const (
	MaxBatchSize = 200
	FlushTimeout = 30 * time.Second
)

// FlushFunc persists a batch of buffered audit entries.
type FlushFunc func(ctx context.Context, entries []model.AuditEntry) error

// claimScript returns the batch left in the processing list by a failed
// flush, or moves up to ARGV[1] entries from the pending list into it.
var claimScript = redis.NewScript(`
	local held = redis.call("LRANGE", KEYS[2], 0, -1)
	if #held > 0 then
		return held
	end
	local items = redis.call("LRANGE", KEYS[1], 0, tonumber(ARGV[1]) - 1)
	if #items > 0 then
		redis.call("LTRIM", KEYS[1], #items, -1)
		redis.call("RPUSH", KEYS[2], unpack(items))
	end
	return items
`)

// RedisAuditBuffer queues audit entries in Redis and writes them to the
// audit store in batches.
type RedisAuditBuffer struct {
	client      *redis.Client
	flushFunc   FlushFunc
	keyPrefix   string
	flushTicker *time.Ticker
	stopFlush   chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	owned       bool
}

// NewRedisAuditBuffer starts a buffer on client that flushes every interval.
// When owned is true Close also closes client.
func NewRedisAuditBuffer(client *redis.Client, keyPrefix string, interval time.Duration, owned bool, flushFunc FlushFunc) *RedisAuditBuffer {
	if keyPrefix == "" {
		keyPrefix = "fzpos"
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	b := &RedisAuditBuffer{
		client:      client,
		flushFunc:   flushFunc,
		keyPrefix:   keyPrefix + ":audit",
		flushTicker: time.NewTicker(interval),
		stopFlush:   make(chan struct{}),
		done:        make(chan struct{}),
		owned:       owned,
	}

	go b.backgroundFlush()

	logger.Log.Infof("[RedisAuditBuffer] Started - prefix:%s, flush:%v, batch:%d", b.keyPrefix, interval, MaxBatchSize)
	return b
}

func (b *RedisAuditBuffer) pendingKey() string {
	return b.keyPrefix + ":pending"
}

func (b *RedisAuditBuffer) processingKey() string {
	return b.keyPrefix + ":processing"
}

// Add queues one entry.
func (b *RedisAuditBuffer) Add(ctx context.Context, entry model.AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return b.client.RPush(ctx, b.pendingKey(), data).Err()
}

// Count returns the number of entries not yet persisted.
func (b *RedisAuditBuffer) Count(ctx context.Context) (int64, error) {
	pipe := b.client.Pipeline()
	pending := pipe.LLen(ctx, b.pendingKey())
	processing := pipe.LLen(ctx, b.processingKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return pending.Val() + processing.Val(), nil
}

// FlushBatch writes up to MaxBatchSize entries. A failed batch is retried
// first on the next call.
func (b *RedisAuditBuffer) FlushBatch(ctx context.Context) (int, error) {
	raw, err := claimScript.Run(ctx, b.client, []string{b.pendingKey(), b.processingKey()}, MaxBatchSize).StringSlice()
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}

	entries := make([]model.AuditEntry, 0, len(raw))
	for _, s := range raw {
		var e model.AuditEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			logger.Log.Warnf("[RedisAuditBuffer] Dropping malformed entry: %v", err)
			continue
		}
		entries = append(entries, e)
	}

	if len(entries) > 0 {
		if err := b.flushFunc(ctx, entries); err != nil {
			logger.Log.Errorf("[RedisAuditBuffer] Flush error: %v", err)
			return 0, err
		}
	}

	if err := b.client.Del(ctx, b.processingKey()).Err(); err != nil {
		logger.Log.Errorf("[RedisAuditBuffer] Error clearing processing list: %v", err)
	}

	logger.Log.Debugf("[RedisAuditBuffer] Flushed %d entries", len(entries))
	return len(raw), nil
}

// Flush drains the buffer.
func (b *RedisAuditBuffer) Flush(ctx context.Context) error {
	for {
		n, err := b.FlushBatch(ctx)
		if err != nil || n == 0 {
			return err
		}
	}
}

func (b *RedisAuditBuffer) backgroundFlush() {
	defer close(b.done)
	for {
		select {
		case <-b.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			if err := b.Flush(ctx); err != nil {
				logger.Log.Warnf("[RedisAuditBuffer] Background flush error: %v", err)
			}
			cancel()
		case <-b.stopFlush:
			logger.Log.Info("[RedisAuditBuffer] Shutdown: flushing remaining entries...")
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			if err := b.Flush(ctx); err != nil {
				logger.Log.Errorf("[RedisAuditBuffer] Shutdown flush error: %v", err)
			}
			cancel()
			return
		}
	}
}

// Close performs a final flush and stops the buffer.
func (b *RedisAuditBuffer) Close() error {
	b.stopOnce.Do(func() {
		b.flushTicker.Stop()
		close(b.stopFlush)
		<-b.done
	})
	if b.owned {
		return b.client.Close()
	}
	return nil
}
