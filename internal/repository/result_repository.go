package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ResultSummary is a row of a user's result history.
type ResultSummary struct {
	SessionID    string             `json:"session_id"`
	TestID       string             `json:"test_id"`
	Reason       model.SubmitReason `json:"reason"`
	OverallScore int                `json:"overall_score"`
	MCQPercent   float64            `json:"mcq_percent"`
	SubmittedAt  time.Time          `json:"submitted_at"`
}

// ResultRepository archives exam results.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// BulkInsert archives results with one UNNEST insert. Duplicates are ignored.
func (r *ResultRepository) BulkInsert(ctx context.Context, results []*model.Result) error {
	n := len(results)
	if n == 0 {
		return nil
	}

	sessionIDs := make([]uuid.UUID, 0, n)
	userIDs := make([]string, 0, n)
	testIDs := make([]string, 0, n)
	reasons := make([]string, 0, n)
	degraded := make([]bool, 0, n)
	overall := make([]int32, 0, n)
	mcq := make([]float64, 0, n)
	subj := make([]float64, 0, n)
	answered := make([]int32, 0, n)
	total := make([]int32, 0, n)
	spent := make([]int32, 0, n)
	payloads := make([]string, 0, n)
	submitted := make([]time.Time, 0, n)

	for _, res := range results {
		sid, err := uuid.Parse(res.SessionID)
		if err != nil {
			return fmt.Errorf("session id %q: %w", res.SessionID, err)
		}
		raw, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		sessionIDs = append(sessionIDs, sid)
		userIDs = append(userIDs, res.UserID)
		testIDs = append(testIDs, res.TestID)
		reasons = append(reasons, string(res.Reason))
		degraded = append(degraded, res.Degraded)
		overall = append(overall, int32(res.OverallScore))
		mcq = append(mcq, res.MCQ.Percent)
		subj = append(subj, res.SubjectiveAvg)
		answered = append(answered, int32(res.AnsweredQuestions))
		total = append(total, int32(res.TotalQuestions))
		spent = append(spent, int32(res.TimeSpentSeconds))
		payloads = append(payloads, string(raw))
		submitted = append(submitted, res.SubmittedAt)
	}

	query := `
		INSERT INTO exam_results (
			session_id, user_id, test_id, reason, degraded, overall_score,
			mcq_percent, subjective_avg, answered_questions, total_questions,
			time_spent_seconds, payload, submitted_at
		)
		SELECT * FROM UNNEST(
			$1::uuid[], $2::text[], $3::text[], $4::text[], $5::bool[], $6::int[],
			$7::float8[], $8::float8[], $9::int[], $10::int[],
			$11::int[], $12::jsonb[], $13::timestamptz[]
		)
		ON CONFLICT (session_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		sessionIDs, userIDs, testIDs, reasons, degraded, overall,
		mcq, subj, answered, total, spent, payloads, submitted,
	)
	return err
}

// Insert archives one result.
func (r *ResultRepository) Insert(ctx context.Context, res *model.Result) error {
	sid, err := uuid.Parse(res.SessionID)
	if err != nil {
		return fmt.Errorf("session id %q: %w", res.SessionID, err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO exam_results (
			session_id, user_id, test_id, reason, degraded, overall_score,
			mcq_percent, subjective_avg, answered_questions, total_questions,
			time_spent_seconds, payload, submitted_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (session_id) DO NOTHING`,
		sid, res.UserID, res.TestID, string(res.Reason), res.Degraded, res.OverallScore,
		res.MCQ.Percent, res.SubjectiveAvg, res.AnsweredQuestions, res.TotalQuestions,
		res.TimeSpentSeconds, raw, res.SubmittedAt,
	)
	return err
}

// GetBySession returns the archived result of a session owned by userID.
func (r *ResultRepository) GetBySession(ctx context.Context, sessionID, userID string) (*model.Result, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, ErrNotFound
	}

	var raw []byte
	err = r.pool.QueryRow(ctx,
		`SELECT payload FROM exam_results WHERE session_id = $1 AND user_id = $2`,
		sid, userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	var res model.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}

// ListByUser returns a user's most recent results.
func (r *ResultRepository) ListByUser(ctx context.Context, userID string, limit int) ([]ResultSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, test_id, reason, overall_score, mcq_percent, submitted_at
		 FROM exam_results WHERE user_id = $1
		 ORDER BY submitted_at DESC
		 LIMIT $2`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []ResultSummary
	for rows.Next() {
		var (
			s   ResultSummary
			sid uuid.UUID
		)
		if err := rows.Scan(&sid, &s.TestID, &s.Reason, &s.OverallScore, &s.MCQPercent, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		s.SessionID = sid.String()
		out = append(out, s)
	}
	return out, rows.Err()
}
