package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// SubmissionRepository stores forwarded answer sheets.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// BulkInsert stores submissions with one UNNEST insert. A session is stored
// at most once.
func (r *SubmissionRepository) BulkInsert(ctx context.Context, subs []*model.Submission) error {
	n := len(subs)
	if n == 0 {
		return nil
	}

	sessionIDs := make([]uuid.UUID, 0, n)
	userIDs := make([]string, 0, n)
	testIDs := make([]string, 0, n)
	answers := make([]string, 0, n)
	submitted := make([]time.Time, 0, n)

	for _, s := range subs {
		sid, err := uuid.Parse(s.SessionID)
		if err != nil {
			return fmt.Errorf("session id %q: %w", s.SessionID, err)
		}
		raw, err := json.Marshal(s.Answers)
		if err != nil {
			return fmt.Errorf("marshal answers: %w", err)
		}
		sessionIDs = append(sessionIDs, sid)
		userIDs = append(userIDs, s.UserID)
		testIDs = append(testIDs, s.TestID)
		answers = append(answers, string(raw))
		submitted = append(submitted, s.SubmittedAt)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO submissions (session_id, user_id, test_id, answers, submitted_at)
		SELECT * FROM UNNEST($1::uuid[], $2::text[], $3::text[], $4::jsonb[], $5::timestamptz[])
		ON CONFLICT (session_id) DO NOTHING
	`, sessionIDs, userIDs, testIDs, answers, submitted)
	return err
}

// Insert stores one submission.
func (r *SubmissionRepository) Insert(ctx context.Context, s *model.Submission) error {
	sid, err := uuid.Parse(s.SessionID)
	if err != nil {
		return fmt.Errorf("session id %q: %w", s.SessionID, err)
	}
	raw, err := json.Marshal(s.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO submissions (session_id, user_id, test_id, answers, submitted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id) DO NOTHING`,
		sid, s.UserID, s.TestID, raw, s.SubmittedAt,
	)
	return err
}
