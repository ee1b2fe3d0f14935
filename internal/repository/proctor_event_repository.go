package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ProctorEventRepository archives violations.
type ProctorEventRepository struct {
	pool *pgxpool.Pool
}

// NewProctorEventRepository creates a new ProctorEventRepository.
func NewProctorEventRepository(pool *pgxpool.Pool) *ProctorEventRepository {
	return &ProctorEventRepository{pool: pool}
}

// BulkInsert streams events with COPY.
func (r *ProctorEventRepository) BulkInsert(ctx context.Context, events []*model.ProctorEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(events))
	for _, e := range events {
		sid, err := uuid.Parse(e.SessionID)
		if err != nil {
			return fmt.Errorf("session id %q: %w", e.SessionID, err)
		}
		rows = append(rows, []interface{}{
			sid, e.UserID, e.TestID, string(e.Type), e.Message, e.Warned, e.OccurredAt,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"proctor_events"},
		[]string{"session_id", "user_id", "test_id", "violation_type", "message", "warned", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert archives one event.
func (r *ProctorEventRepository) Insert(ctx context.Context, e *model.ProctorEvent) error {
	sid, err := uuid.Parse(e.SessionID)
	if err != nil {
		return fmt.Errorf("session id %q: %w", e.SessionID, err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO proctor_events (session_id, user_id, test_id, violation_type, message, warned, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sid, e.UserID, e.TestID, string(e.Type), e.Message, e.Warned, e.OccurredAt,
	)
	return err
}

// ListBySession returns a session's archived events in order.
func (r *ProctorEventRepository) ListBySession(ctx context.Context, sessionID string) ([]model.ProctorEvent, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, ErrNotFound
	}
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, test_id, violation_type, message, warned, occurred_at
		 FROM proctor_events WHERE session_id = $1
		 ORDER BY occurred_at, id`, sid,
	)
	if err != nil {
		return nil, fmt.Errorf("query proctor events: %w", err)
	}
	defer rows.Close()

	var out []model.ProctorEvent
	for rows.Next() {
		e := model.ProctorEvent{SessionID: sessionID}
		var vt string
		if err := rows.Scan(&e.UserID, &e.TestID, &vt, &e.Message, &e.Warned, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan proctor event: %w", err)
		}
		e.Type = model.ViolationType(vt)
		out = append(out, e)
	}
	return out, rows.Err()
}
