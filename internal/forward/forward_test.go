package forward

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

func TestQueuePublishesPayloads(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := NewQueue(rdb, zerolog.Nop())
	ctx := context.Background()

	sub := &model.Submission{TestID: "tcs-core-1", SessionID: "s-1", Answers: map[string]string{"q": "b"}}
	require.NoError(t, q.Submission(ctx, sub))

	items, err := mr.List(config.WorkerKey.PersistSubmissionsQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var wire map[string]any
	require.NoError(t, json.Unmarshal([]byte(items[0]), &wire))
	assert.Equal(t, "tcs-core-1", wire["test_id"])
	assert.Equal(t, "s-1", wire["session_id"])
	assert.Equal(t, map[string]any{"q": "b"}, wire["answers"])

	now := time.Now()
	require.NoError(t, q.ProctorEvents(ctx, []*model.ProctorEvent{
		{SessionID: "s-1", Type: model.ViolationNoFace, OccurredAt: now},
		{SessionID: "s-1", Type: model.ViolationTabSwitch, OccurredAt: now},
	}))
	events, err := mr.List(config.WorkerKey.PersistProctorEventsQueue)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	require.NoError(t, q.ProctorEvents(ctx, nil))
	require.NoError(t, q.Result(ctx, &model.Result{SessionID: "s-1"}))
	results, err := mr.List(config.WorkerKey.PersistResultsQueue)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestQueueReportsRedisFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	q := NewQueue(rdb, zerolog.Nop())
	mr.Close()

	err := q.Submission(context.Background(), &model.Submission{SessionID: "s-1"})
	assert.Error(t, err)
}
