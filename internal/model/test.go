package model

// QuestionKind enumerates the supported question formats.
type QuestionKind string

const (
	QuestionKindMCQ        QuestionKind = "mcq"
	QuestionKindSubjective QuestionKind = "subjective"
)

// Option is a single choice of an MCQ question. Exactly one option per
// question carries IsCorrect.
type Option struct {
	ID        string `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	IsCorrect bool   `json:"is_correct,omitempty" yaml:"correct"`
}

// Question is one item of a Test.
type Question struct {
	ID               string       `json:"id" yaml:"id"`
	Kind             QuestionKind `json:"kind" yaml:"kind"`
	Prompt           string       `json:"prompt" yaml:"prompt"`
	Options          []Option     `json:"options,omitempty" yaml:"options,omitempty"`
	ReferenceAnswers []string     `json:"reference_answers,omitempty" yaml:"reference_answers,omitempty"`
}

// CorrectOption returns the option flagged correct, or nil when the question
// is malformed or not an MCQ.
func (q *Question) CorrectOption() *Option {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

// Test is an immutable exam definition.
type Test struct {
	ID              string     `json:"id" yaml:"id"`
	CompanyID       string     `json:"company_id" yaml:"-"`
	Title           string     `json:"title" yaml:"title"`
	Description     string     `json:"description,omitempty" yaml:"description,omitempty"`
	DurationMinutes int        `json:"duration_minutes" yaml:"duration_minutes"`
	IsPremium       bool       `json:"is_premium" yaml:"premium,omitempty"`
	Remote          bool       `json:"remote" yaml:"-"`
	Questions       []Question `json:"questions" yaml:"questions"`
}

// DurationSeconds returns the total exam time in seconds.
func (t *Test) DurationSeconds() int {
	return t.DurationMinutes * 60
}

// Question looks up a question by id.
func (t *Test) Question(id string) (*Question, bool) {
	for i := range t.Questions {
		if t.Questions[i].ID == id {
			return &t.Questions[i], true
		}
	}
	return nil, false
}

// ForCandidate returns a copy of the test with answer keys and reference
// answers stripped, safe to send to a browser.
func (t *Test) ForCandidate() *Test {
	out := *t
	out.Questions = make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		cq := Question{ID: q.ID, Kind: q.Kind, Prompt: q.Prompt}
		if len(q.Options) > 0 {
			cq.Options = make([]Option, len(q.Options))
			for j, o := range q.Options {
				cq.Options[j] = Option{ID: o.ID, Text: o.Text}
			}
		}
		out.Questions[i] = cq
	}
	return &out
}

// Company groups tests offered for one employer.
type Company struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Tests []Test `json:"tests" yaml:"tests"`
}
