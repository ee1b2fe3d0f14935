package worker

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// NewResultWorker archives results into exam_results.
func NewResultWorker(sink Sink[model.Result], rdb *redis.Client, log zerolog.Logger) *BatchWorker[model.Result] {
	return newBatchWorker("result_worker", config.WorkerKey.PersistResultsQueue, rdb, sink,
		func(r *model.Result) error {
			if r.TestID == "" {
				return fmt.Errorf("result for session %s has no test", r.SessionID)
			}
			return checkSessionID(r.SessionID)
		}, log)
}

// NewSubmissionWorker stores forwarded answer submissions.
func NewSubmissionWorker(sink Sink[model.Submission], rdb *redis.Client, log zerolog.Logger) *BatchWorker[model.Submission] {
	return newBatchWorker("submission_worker", config.WorkerKey.PersistSubmissionsQueue, rdb, sink,
		func(s *model.Submission) error {
			return checkSessionID(s.SessionID)
		}, log)
}

// NewProctorEventWorker stores the violation log of finished sessions.
func NewProctorEventWorker(sink Sink[model.ProctorEvent], rdb *redis.Client, log zerolog.Logger) *BatchWorker[model.ProctorEvent] {
	return newBatchWorker("proctor_event_worker", config.WorkerKey.PersistProctorEventsQueue, rdb, sink,
		func(e *model.ProctorEvent) error {
			if e.Type == "" {
				return fmt.Errorf("proctor event for session %s has no type", e.SessionID)
			}
			return checkSessionID(e.SessionID)
		}, log)
}

func checkSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid session id %q: %w", id, err)
	}
	return nil
}
