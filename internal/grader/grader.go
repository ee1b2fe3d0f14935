// Package grader scores candidate answers. MCQ answers are graded by exact
// option id; free-text answers by tf-idf cosine similarity against the
// question's reference answers.
package grader

import (
	"math"
	"strings"
	"unicode"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// MinSubjectiveLength is the shortest trimmed answer that is graded at all.
const MinSubjectiveLength = 3

// ScoreMCQ counts correct MCQ answers. Non-MCQ questions are ignored and a
// test without MCQ questions scores 0 percent.
func ScoreMCQ(questions []model.Question, answers map[string]string) model.MCQScore {
	var score model.MCQScore
	for i := range questions {
		q := &questions[i]
		if q.Kind != model.QuestionKindMCQ {
			continue
		}
		score.Total++

		correct := q.CorrectOption()
		if correct == nil {
			continue
		}
		if ans, ok := answers[q.ID]; ok && ans != "" && ans == correct.ID {
			score.Correct++
		}
	}
	if score.Total > 0 {
		score.Percent = round2(float64(score.Correct) / float64(score.Total) * 100)
	}
	return score
}

// ScoreSubjective grades text against the question's reference answers.
func ScoreSubjective(q *model.Question, text string) model.SubjectiveScore {
	if len([]rune(strings.TrimSpace(text))) < MinSubjectiveLength {
		return model.SubjectiveScore{Score: 0, Details: nil}
	}

	refs := make([][]string, len(q.ReferenceAnswers))
	for i, r := range q.ReferenceAnswers {
		refs[i] = Tokenize(r)
	}
	candidate := Tokenize(text)

	docs := make([][]string, 0, len(refs)+1)
	docs = append(docs, refs...)
	docs = append(docs, candidate)
	idf := inverseDocFreq(docs)

	cv := weigh(termFreq(candidate), idf)
	best := 0.0
	for _, ref := range refs {
		s := cosine(weigh(termFreq(ref), idf), cv)
		if math.IsNaN(s) {
			continue
		}
		if s > best {
			best = s
		}
	}

	score := round2(best * 100)
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return model.SubjectiveScore{
		Score:   score,
		Details: &model.SubjectiveDetails{Similarity: best},
	}
}

// Tokenize lowercases text, replaces everything but ASCII letters and digits
// with spaces and splits on whitespace.
func Tokenize(text string) []string {
	mapped := strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, text)
	return strings.Fields(mapped)
}

type vector map[string]float64

func termFreq(tokens []string) vector {
	tf := make(vector, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	n := float64(len(tokens))
	if n == 0 {
		n = 1
	}
	for k := range tf {
		tf[k] /= n
	}
	return tf
}

// inverseDocFreq uses ln((N+1)/(df+1)) + 1, which is never below 1.
func inverseDocFreq(docs [][]string) vector {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{}, len(doc))
		for _, t := range doc {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	n := float64(len(docs))
	idf := make(vector, len(df))
	for t, c := range df {
		idf[t] = math.Log((n+1)/(float64(c)+1)) + 1
	}
	return idf
}

func weigh(tf, idf vector) vector {
	out := make(vector, len(tf))
	for t, f := range tf {
		w, ok := idf[t]
		if !ok {
			w = 1
		}
		out[t] = f * w
	}
	return out
}

func cosine(a, b vector) float64 {
	dot := 0.0
	for t, av := range a {
		if bv, ok := b[t]; ok {
			dot += av * bv
		}
	}
	return dot / (floorOne(norm(a)) * floorOne(norm(b)))
}

func norm(v vector) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

func floorOne(x float64) float64 {
	if x == 0 {
		return 1
	}
	return x
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
