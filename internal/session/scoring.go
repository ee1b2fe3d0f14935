package session

import (
	"fmt"
	"math"
	"time"

	"github.com/stemsi/exstem-proctor/internal/grader"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Fixed weighting of the overall score.
const (
	MCQWeight        = 0.7
	SubjectiveWeight = 0.3
)

// scoreInput is everything the scoring pipeline reads. It is a snapshot;
// the pipeline never touches live session state.
type scoreInput struct {
	SessionID string
	UserID    string
	Reason    model.SubmitReason
	Test      *model.Test
	Answers   map[string]string
	Remaining int
	Proctor   model.ProctorState
	Log       []model.LogEntry
	Now       time.Time
}

// scoreSafely runs the pipeline and replaces any failure with the fallback
// result, so a submission always completes.
func scoreSafely(in scoreInput) (res *model.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scoring panicked: %v", r)
			res = fallbackResult(in)
		}
	}()
	if in.Test == nil {
		return fallbackResult(in), ErrNoTest
	}
	return score(in), nil
}

func score(in scoreInput) *model.Result {
	t := in.Test
	mcq := grader.ScoreMCQ(t.Questions, in.Answers)

	subjective := make(map[string]model.SubjectiveScore)
	var subjTotal float64
	for i := range t.Questions {
		q := &t.Questions[i]
		if q.Kind != model.QuestionKindSubjective {
			continue
		}
		s := grader.ScoreSubjective(q, in.Answers[q.ID])
		subjective[q.ID] = s
		subjTotal += s.Score
	}
	var subjMean float64
	if len(subjective) > 0 {
		subjMean = subjTotal / float64(len(subjective))
	}
	subjAvg := math.Round(subjMean)

	total := t.DurationSeconds()
	timeSpent := total - in.Remaining
	if timeSpent < 0 {
		timeSpent = 0
	}
	answered := len(in.Answers)
	avgPerQuestion := 0
	if answered > 0 {
		avgPerQuestion = int(math.Round(float64(timeSpent) / float64(answered)))
	}

	return &model.Result{
		SessionID:           in.SessionID,
		UserID:              in.UserID,
		TestID:              t.ID,
		TestTitle:           t.Title,
		Reason:              in.Reason,
		MCQ:                 mcq,
		SubjectiveResults:   subjective,
		SubjectiveAvg:       subjAvg,
		OverallScore:        int(math.Round(mcq.Percent*MCQWeight + subjAvg*SubjectiveWeight)),
		TotalQuestions:      len(t.Questions),
		AnsweredQuestions:   answered,
		UnansweredQuestions: len(t.Questions) - answered,
		TimeSpentSeconds:    timeSpent,
		AvgTimePerQuestion:  avgPerQuestion,
		TotalTimeSeconds:    total,
		ProctorSummary:      summarize(in.Proctor),
		Suggestions:         suggest(mcq, subjMean, timeSpent, total, in.Proctor),
		SessionLog:          in.Log,
		SubmittedAt:         in.Now,
	}
}

func summarize(p model.ProctorState) model.ProctorSummary {
	s := model.ProctorSummary{
		TabSwitches:    p.TabSwitchCount,
		Violations:     len(p.Violations),
		Warnings:       p.WarningCount,
		SnapshotsTaken: len(p.Snapshots),
	}
	for _, v := range p.Violations {
		switch v.Type {
		case model.ViolationNoFace:
			s.NoFaceAlerts++
		case model.ViolationMultipleFaces:
			s.MultipleFaceAlerts++
		case model.ViolationHighNoise:
			s.NoiseAlerts++
		}
	}
	return s
}

// fallbackResult is shown when scoring cannot complete.
func fallbackResult(in scoreInput) *model.Result {
	res := &model.Result{
		SessionID:         in.SessionID,
		UserID:            in.UserID,
		Reason:            in.Reason,
		Degraded:          true,
		SubjectiveResults: map[string]model.SubjectiveScore{},
		AnsweredQuestions: len(in.Answers),
		TotalTimeSeconds:  30 * 60,
		TestTitle:         "Exam",
		Suggestions: []model.Suggestion{{
			Type:    model.SuggestionTip,
			Title:   "Submission Complete",
			Message: "Your exam has been submitted.",
		}},
		SessionLog:  []model.LogEntry{},
		SubmittedAt: in.Now,
	}
	if t := in.Test; t != nil {
		res.TestID = t.ID
		res.TestTitle = t.Title
		res.TotalQuestions = len(t.Questions)
		res.UnansweredQuestions = len(t.Questions) - len(in.Answers)
		if t.DurationMinutes > 0 {
			res.TotalTimeSeconds = t.DurationSeconds()
		}
	}
	return res
}
