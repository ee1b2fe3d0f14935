package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// TestRepository handles remotely defined tests.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// ListCompanies returns every company with its tests. Questions are not
// loaded.
func (r *TestRepository) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.name, t.id, t.title, t.description, t.duration_minutes, t.is_premium
		 FROM companies c
		 JOIN tests t ON t.company_id = c.id
		 ORDER BY c.name, t.title`,
	)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var companies []model.Company
	index := make(map[string]int)
	for rows.Next() {
		var (
			companyID, companyName string
			t                      model.Test
		)
		if err := rows.Scan(&companyID, &companyName, &t.ID, &t.Title, &t.Description, &t.DurationMinutes, &t.IsPremium); err != nil {
			return nil, fmt.Errorf("scan company test: %w", err)
		}
		t.CompanyID = companyID
		t.Remote = true

		i, ok := index[companyID]
		if !ok {
			i = len(companies)
			index[companyID] = i
			companies = append(companies, model.Company{ID: companyID, Name: companyName})
		}
		companies[i].Tests = append(companies[i].Tests, t)
	}
	return companies, rows.Err()
}

// GetTest loads a test with its questions and options in order.
func (r *TestRepository) GetTest(ctx context.Context, id string) (*model.Test, error) {
	t := &model.Test{Remote: true}
	err := r.pool.QueryRow(ctx,
		`SELECT id, company_id, title, description, duration_minutes, is_premium
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.CompanyID, &t.Title, &t.Description, &t.DurationMinutes, &t.IsPremium)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, prompt, reference_answers
		 FROM questions WHERE test_id = $1
		 ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]int)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Kind, &q.Prompt, &q.ReferenceAnswers); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		byID[q.ID] = len(t.Questions)
		t.Questions = append(t.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	optRows, err := r.pool.Query(ctx,
		`SELECT question_id, id, text, is_correct
		 FROM question_options WHERE test_id = $1
		 ORDER BY question_id, position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var (
			qid string
			o   model.Option
		)
		if err := optRows.Scan(&qid, &o.ID, &o.Text, &o.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		if i, ok := byID[qid]; ok {
			t.Questions[i].Options = append(t.Questions[i].Options, o)
		}
	}
	return t, optRows.Err()
}

// UpsertCompany writes a company and replaces the questions of each of its
// tests in one transaction.
func (r *TestRepository) UpsertCompany(ctx context.Context, c model.Company) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO companies (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		c.ID, c.Name,
	); err != nil {
		return fmt.Errorf("upsert company %s: %w", c.ID, err)
	}

	for _, t := range c.Tests {
		if err := upsertTest(ctx, tx, c.ID, t); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func upsertTest(ctx context.Context, tx pgx.Tx, companyID string, t model.Test) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO tests (id, company_id, title, description, duration_minutes, is_premium)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		     company_id = EXCLUDED.company_id,
		     title = EXCLUDED.title,
		     description = EXCLUDED.description,
		     duration_minutes = EXCLUDED.duration_minutes,
		     is_premium = EXCLUDED.is_premium,
		     updated_at = NOW()`,
		t.ID, companyID, t.Title, t.Description, t.DurationMinutes, t.IsPremium,
	); err != nil {
		return fmt.Errorf("upsert test %s: %w", t.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE test_id = $1`, t.ID); err != nil {
		return fmt.Errorf("clear questions of %s: %w", t.ID, err)
	}

	questions := make([][]interface{}, 0, len(t.Questions))
	var options [][]interface{}
	for i, q := range t.Questions {
		refs := q.ReferenceAnswers
		if refs == nil {
			refs = []string{}
		}
		questions = append(questions, []interface{}{t.ID, q.ID, i, string(q.Kind), q.Prompt, refs})
		for j, o := range q.Options {
			options = append(options, []interface{}{t.ID, q.ID, o.ID, j, o.Text, o.IsCorrect})
		}
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"test_id", "id", "position", "kind", "prompt", "reference_answers"},
		pgx.CopyFromRows(questions),
	); err != nil {
		return fmt.Errorf("copy questions of %s: %w", t.ID, err)
	}
	if len(options) == 0 {
		return nil
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"question_options"},
		[]string{"test_id", "question_id", "id", "position", "text", "is_correct"},
		pgx.CopyFromRows(options),
	); err != nil {
		return fmt.Errorf("copy options of %s: %w", t.ID, err)
	}
	return nil
}
