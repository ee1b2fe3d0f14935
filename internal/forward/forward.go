// Package forward publishes completed-exam artefacts to Redis queues that
// the persistence workers drain into Postgres. Every publish is best effort:
// failures are logged and never reach the session.
package forward

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Forwarder receives everything a finished session hands off.
type Forwarder interface {
	Submission(ctx context.Context, s *model.Submission) error
	Result(ctx context.Context, r *model.Result) error
	ProctorEvents(ctx context.Context, events []*model.ProctorEvent) error
}

// Queue pushes JSON payloads onto the worker queues.
type Queue struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewQueue creates a Queue forwarder.
func NewQueue(rdb *redis.Client, log zerolog.Logger) *Queue {
	return &Queue{
		rdb: rdb,
		log: log.With().Str("component", "forwarder").Logger(),
	}
}

// Submission implements Forwarder.
func (q *Queue) Submission(ctx context.Context, s *model.Submission) error {
	return q.push(ctx, config.WorkerKey.PersistSubmissionsQueue, s)
}

// Result implements Forwarder.
func (q *Queue) Result(ctx context.Context, r *model.Result) error {
	return q.push(ctx, config.WorkerKey.PersistResultsQueue, r)
}

// ProctorEvents implements Forwarder.
func (q *Queue) ProctorEvents(ctx context.Context, events []*model.ProctorEvent) error {
	if len(events) == 0 {
		return nil
	}
	items := make([]interface{}, 0, len(events))
	for _, e := range events {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal proctor event: %w", err)
		}
		items = append(items, raw)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistProctorEventsQueue, items...).Err(); err != nil {
		return fmt.Errorf("enqueue proctor events: %w", err)
	}
	return nil
}

func (q *Queue) push(ctx context.Context, queue string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", queue, err)
	}
	if err := q.rdb.RPush(ctx, queue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", queue, err)
	}
	return nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Submission(context.Context, *model.Submission) error        { return nil }
func (Nop) Result(context.Context, *model.Result) error                { return nil }
func (Nop) ProctorEvents(context.Context, []*model.ProctorEvent) error { return nil }
