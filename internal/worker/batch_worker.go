package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// Sink persists decoded queue items. BulkInsert is the fast path; Insert is
// used row by row when the bulk path fails.
type Sink[T any] interface {
	BulkInsert(ctx context.Context, items []*T) error
	Insert(ctx context.Context, item *T) error
}

// BatchWorker drains a Redis list into a Sink in batches: bulk insert first,
// then row by row, then requeue what still failed.
type BatchWorker[T any] struct {
	queue string
	rdb   *redis.Client
	sink  Sink[T]
	log   zerolog.Logger

	// validate rejects payloads that can never be stored. Rejected items are
	// logged and dropped instead of requeued.
	validate func(*T) error

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
	requeuePause time.Duration
	errorPause   time.Duration
}

func newBatchWorker[T any](name, queue string, rdb *redis.Client, sink Sink[T], validate func(*T) error, log zerolog.Logger) *BatchWorker[T] {
	return &BatchWorker[T]{
		queue:        queue,
		rdb:          rdb,
		sink:         sink,
		log:          log.With().Str("component", name).Logger(),
		validate:     validate,
		batchSize:    BatchSize,
		batchTimeout: BatchTimeout,
		pollTimeout:  PollTimeout,
		requeuePause: 2 * time.Second,
		errorPause:   3 * time.Second,
	}
}

// Start runs until ctx is cancelled, then flushes what is buffered.
func (w *BatchWorker[T]) Start(ctx context.Context) {
	w.log.Info().Str("queue", w.queue).Msg("Worker started")

	buffer := make([]*T, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 && (len(buffer) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		// 2. Graceful shutdown
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch; BLPop returns early when data exists
		result, err := w.rdb.BLPop(ctx, w.pollTimeout, w.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, pausing")
			sleep(ctx, w.errorPause)
			continue
		}
		if len(result) < 2 {
			continue
		}

		// 4. Decode; malformed payloads cannot be retried
		item := new(T)
		if err := json.Unmarshal([]byte(result[1]), item); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		if w.validate != nil {
			if err := w.validate(item); err != nil {
				w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding invalid payload")
				continue
			}
		}
		buffer = append(buffer, item)
	}
}

// flushSafe attempts bulk insert, then row-by-row insert, then requeue.
func (w *BatchWorker[T]) flushSafe(ctx context.Context, batch []*T) {
	if len(batch) == 0 {
		return
	}
	if err := w.sink.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
		return
	}
	w.log.Debug().Int("count", len(batch)).Msg("Batch stored")
}

func (w *BatchWorker[T]) fallbackInsert(ctx context.Context, batch []*T) {
	var requeue []*T
	for _, item := range batch {
		if err := w.sink.Insert(ctx, item); err != nil {
			w.log.Error().Err(err).Msg("Insert failed, requeueing")
			requeue = append(requeue, item)
		}
	}
	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *BatchWorker[T]) requeue(ctx context.Context, items []*T) {
	pipe := w.rdb.Pipeline()
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, w.queue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// avoid thrashing while the database is down
	sleep(ctx, w.requeuePause)
}

func (w *BatchWorker[T]) shutdown(buffer []*T) {
	w.log.Info().Int("buffered", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.flushSafe(shutdownCtx, buffer)
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
