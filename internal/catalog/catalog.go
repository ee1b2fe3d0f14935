// Package catalog supplies test definitions. Built-in tests live in memory;
// tests whose id contains Separator are defined remotely and loaded from
// Postgres on demand.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Separator marks a remotely defined test id: "<company>:<test>".
const Separator = ":"

// ErrTestNotFound is returned when no source knows a test id.
var ErrTestNotFound = errors.New("test not found")

// Source supplies tests.
type Source interface {
	// List returns companies with test metadata; questions are omitted.
	List(ctx context.Context) ([]model.Company, error)
	// Get returns the full test.
	Get(ctx context.Context, id string) (*model.Test, error)
}

// IsRemoteID reports whether id names a remotely defined test.
func IsRemoteID(id string) bool {
	return strings.Contains(id, Separator)
}

// Validate checks the structural invariants of a test.
func Validate(t *model.Test) error {
	if t.ID == "" {
		return errors.New("test id is empty")
	}
	if t.DurationMinutes <= 0 {
		return fmt.Errorf("test %s: duration must be positive", t.ID)
	}
	if len(t.Questions) == 0 {
		return fmt.Errorf("test %s: no questions", t.ID)
	}

	seen := make(map[string]bool, len(t.Questions))
	for i := range t.Questions {
		q := &t.Questions[i]
		if q.ID == "" {
			return fmt.Errorf("test %s: question %d has no id", t.ID, i)
		}
		if seen[q.ID] {
			return fmt.Errorf("test %s: duplicate question id %s", t.ID, q.ID)
		}
		seen[q.ID] = true

		switch q.Kind {
		case model.QuestionKindMCQ:
			correct := 0
			for _, o := range q.Options {
				if o.IsCorrect {
					correct++
				}
			}
			if correct != 1 {
				return fmt.Errorf("test %s: question %s has %d correct options, want 1", t.ID, q.ID, correct)
			}
		case model.QuestionKindSubjective:
			if len(q.ReferenceAnswers) == 0 {
				return fmt.Errorf("test %s: question %s has no reference answers", t.ID, q.ID)
			}
		default:
			return fmt.Errorf("test %s: question %s has unknown kind %q", t.ID, q.ID, q.Kind)
		}
	}
	return nil
}

// metadata copies companies without question bodies.
func metadata(companies []model.Company) []model.Company {
	out := make([]model.Company, len(companies))
	for i, c := range companies {
		out[i] = model.Company{ID: c.ID, Name: c.Name, Tests: make([]model.Test, len(c.Tests))}
		for j, t := range c.Tests {
			t.Questions = nil
			out[i].Tests[j] = t
		}
	}
	return out
}
