package catalog

import (
	"context"
	"fmt"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Static serves an in-memory catalog.
type Static struct {
	companies []model.Company
	tests     map[string]*model.Test
}

// NewStatic indexes companies. Later duplicates of a test id are ignored.
func NewStatic(companies ...model.Company) *Static {
	s := &Static{tests: make(map[string]*model.Test)}
	for _, c := range companies {
		for j := range c.Tests {
			t := &c.Tests[j]
			t.CompanyID = c.ID
			if _, dup := s.tests[t.ID]; !dup {
				s.tests[t.ID] = t
			}
		}
		s.companies = append(s.companies, c)
	}
	return s
}

// List implements Source.
func (s *Static) List(context.Context) ([]model.Company, error) {
	return metadata(s.companies), nil
}

// Get implements Source.
func (s *Static) Get(_ context.Context, id string) (*model.Test, error) {
	t, ok := s.tests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTestNotFound, id)
	}
	out := *t
	return &out, nil
}

type companyMeta struct {
	id, name string
}

var builtInCompanies = []companyMeta{
	{"tcs", "TCS"},
	{"google", "Google"},
	{"wipro", "Wipro"},
	{"infosys", "Infosys"},
	{"microsoft", "Microsoft"},
	{"amazon", "Amazon"},
	{"facebook", "Meta"},
	{"oracle", "Oracle"},
	{"apple", "Apple"},
	{"ibm", "IBM"},
}

// Free tests; everything else is premium.
var freeTests = map[string]bool{
	"tcs-core-1":     true,
	"google-core-1":  true,
	"wipro-core-1":   true,
	"infosys-core-1": true,
	"oracle-core-1":  true,
	"ibm-core-1":     true,
}

// BuiltInQuestionCount is the number of questions in every built-in test.
const BuiltInQuestionCount = 35

// BuiltIn returns the generated practice catalog: a core and an advanced
// mock per company, every fifth question subjective.
func BuiltIn() []model.Company {
	companies := make([]model.Company, 0, len(builtInCompanies))
	for _, c := range builtInCompanies {
		core := model.Test{
			ID:              c.id + "-core-1",
			Title:           c.name + " Core Mock",
			Description:     fmt.Sprintf("Core mock test for %s. Practice fundamental concepts and commonly asked questions.", c.name),
			DurationMinutes: 30,
		}
		adv := model.Test{
			ID:              c.id + "-adv-1",
			Title:           c.name + " Advanced Mock",
			Description:     fmt.Sprintf("Advanced mock test for %s. In-depth questions covering complex topics and scenarios.", c.name),
			DurationMinutes: 40,
		}
		tests := []model.Test{core, adv}
		for i := range tests {
			t := &tests[i]
			t.CompanyID = c.id
			t.IsPremium = !freeTests[t.ID]
			t.Questions = generateQuestions(t.ID)
		}
		companies = append(companies, model.Company{ID: c.id, Name: c.name, Tests: tests})
	}
	return companies
}

func generateQuestions(testID string) []model.Question {
	qs := make([]model.Question, 0, BuiltInQuestionCount)
	for i := 1; i <= BuiltInQuestionCount; i++ {
		if i%5 == 0 {
			qs = append(qs, model.Question{
				ID:     fmt.Sprintf("%s-sub-%d", testID, i),
				Kind:   model.QuestionKindSubjective,
				Prompt: fmt.Sprintf("Explain concept %d related to %s in brief.", i, testID),
				ReferenceAnswers: []string{
					fmt.Sprintf("Concept %d for %s is about principles and core ideas.", i, testID),
					fmt.Sprintf("In short, concept %d explains main usage and examples.", i),
				},
			})
			continue
		}
		qs = append(qs, model.Question{
			ID:     fmt.Sprintf("%s-mcq-%d", testID, i),
			Kind:   model.QuestionKindMCQ,
			Prompt: fmt.Sprintf("Sample MCQ %d for %s: compute %d + %d", i, testID, i, i),
			Options: []model.Option{
				{ID: "a", Text: fmt.Sprint(i)},
				{ID: "b", Text: fmt.Sprint(i + i), IsCorrect: true},
				{ID: "c", Text: fmt.Sprint(i + i + 1)},
				{ID: "d", Text: fmt.Sprint(i + 1)},
			},
		})
	}
	return qs
}
