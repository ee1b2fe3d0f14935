package grader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

func mcq(id, correct string) model.Question {
	return model.Question{
		ID:   id,
		Kind: model.QuestionKindMCQ,
		Options: []model.Option{
			{ID: "a", Text: "one", IsCorrect: correct == "a"},
			{ID: "b", Text: "two", IsCorrect: correct == "b"},
			{ID: "c", Text: "three", IsCorrect: correct == "c"},
		},
	}
}

func subjective(id string, refs ...string) model.Question {
	return model.Question{ID: id, Kind: model.QuestionKindSubjective, ReferenceAnswers: refs}
}

func TestScoreMCQ(t *testing.T) {
	questions := []model.Question{
		mcq("q1", "b"),
		mcq("q2", "a"),
		mcq("q3", "c"),
		subjective("q4", "anything"),
	}

	tests := []struct {
		name    string
		answers map[string]string
		want    model.MCQScore
	}{
		{"no answers", map[string]string{}, model.MCQScore{Total: 3, Correct: 0, Percent: 0}},
		{"one correct", map[string]string{"q1": "b", "q2": "c"}, model.MCQScore{Total: 3, Correct: 1, Percent: 33.33}},
		{"two correct", map[string]string{"q1": "b", "q2": "a"}, model.MCQScore{Total: 3, Correct: 2, Percent: 66.67}},
		{"all correct", map[string]string{"q1": "b", "q2": "a", "q3": "c", "q4": "b"}, model.MCQScore{Total: 3, Correct: 3, Percent: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreMCQ(questions, tt.answers))
		})
	}
}

func TestScoreMCQWithoutMCQQuestions(t *testing.T) {
	got := ScoreMCQ([]model.Question{subjective("s1", "ref")}, map[string]string{"s1": "ref"})
	assert.Equal(t, model.MCQScore{Total: 0, Correct: 0, Percent: 0}, got)

	got = ScoreMCQ(nil, nil)
	assert.Equal(t, model.MCQScore{}, got)
}

func TestScoreMCQMissingCorrectOption(t *testing.T) {
	q := model.Question{ID: "broken", Kind: model.QuestionKindMCQ, Options: []model.Option{{ID: "a"}}}
	got := ScoreMCQ([]model.Question{q}, map[string]string{"broken": "a"})
	assert.Equal(t, 1, got.Total)
	assert.Equal(t, 0, got.Correct)
}

func TestScoreSubjectiveTooShort(t *testing.T) {
	q := subjective("s1", "Concept is about principles and core ideas")
	for _, text := range []string{"", "  ", "ab", " a b ", "\tok\n"} {
		got := ScoreSubjective(&q, text)
		assert.Equal(t, 0.0, got.Score, "text %q", text)
		assert.Nil(t, got.Details, "text %q", text)
	}
}

func TestScoreSubjectiveParaphrase(t *testing.T) {
	q := subjective("s1", "Concept is about principles and core ideas")
	got := ScoreSubjective(&q, "It is about core principles")
	require.NotNil(t, got.Details)
	assert.InDelta(t, 51.94, got.Score, 0.001)
	assert.Greater(t, got.Score, 0.0)
	assert.LessOrEqual(t, got.Score, 100.0)
}

func TestScoreSubjectiveTakesBestReference(t *testing.T) {
	q := subjective("s1",
		"Concept 5 for x is about principles and core ideas.",
		"In short, concept 5 explains main usage and examples.",
	)
	got := ScoreSubjective(&q, "concept 5 explains main usage and examples")
	assert.InDelta(t, 79.18, got.Score, 0.001)
}

func TestScoreSubjectiveBounds(t *testing.T) {
	tests := []struct {
		name string
		refs []string
		text string
		want float64
	}{
		{"identical", []string{"alpha beta"}, "alpha beta", 100},
		{"disjoint", []string{"alpha beta"}, "gamma delta", 0},
		{"no references", nil, "some answer text", 0},
		{"punctuation only reference", []string{"!!! ???"}, "some answer", 0},
		{"symbols only answer", []string{"alpha"}, "#$%^&", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := subjective("s", tt.refs...)
			got := ScoreSubjective(&q, tt.text)
			assert.InDelta(t, tt.want, got.Score, 0.001)
			assert.GreaterOrEqual(t, got.Score, 0.0)
			assert.LessOrEqual(t, got.Score, 100.0)
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"it", "s", "a", "b2b", "world"}, Tokenize("It's a B2B-world!"))
	assert.Empty(t, Tokenize("  ... "))
}
