package session

import (
	"fmt"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// suggest evaluates every rule independently; several may fire at once.
func suggest(mcq model.MCQScore, subjectiveAvg float64, timeSpent, totalTime int, p model.ProctorState) []model.Suggestion {
	var out []model.Suggestion

	switch {
	case mcq.Percent < 40:
		out = append(out, model.Suggestion{
			Type:    model.SuggestionCritical,
			Title:   "Focus on Fundamentals",
			Message: "Your MCQ score indicates gaps in core concepts. Review basic theory and practice more questions.",
		})
	case mcq.Percent < 70:
		out = append(out, model.Suggestion{
			Type:    model.SuggestionImprovement,
			Title:   "Good Progress, Room for Improvement",
			Message: "You have a decent understanding. Focus on problem-solving techniques and practice timed tests.",
		})
	default:
		out = append(out, model.Suggestion{
			Type:    model.SuggestionPositive,
			Title:   "Excellent MCQ Performance!",
			Message: "Great job on multiple choice questions. Keep practicing to maintain this level.",
		})
	}

	if subjectiveAvg < 50 {
		out = append(out, model.Suggestion{
			Type:    model.SuggestionImprovement,
			Title:   "Improve Written Answers",
			Message: "Practice writing detailed explanations. Include examples and key terminology in your answers.",
		})
	}

	if totalTime > 0 {
		used := float64(timeSpent) / float64(totalTime) * 100
		switch {
		case used < 50:
			out = append(out, model.Suggestion{
				Type:    model.SuggestionWarning,
				Title:   "Time Management",
				Message: "You finished very quickly. Take more time to review your answers before submitting.",
			})
		case used > 95:
			out = append(out, model.Suggestion{
				Type:    model.SuggestionInfo,
				Title:   "Practice Speed",
				Message: "You used almost all the time. Practice solving questions faster to have time for review.",
			})
		}
	}

	if p.TabSwitchCount > 2 {
		out = append(out, model.Suggestion{
			Type:    model.SuggestionWarning,
			Title:   "Stay Focused",
			Message: fmt.Sprintf("You switched tabs %d times. In real exams, this could lead to disqualification.", p.TabSwitchCount),
		})
	}

	if len(p.Violations) > 0 {
		out = append(out, model.Suggestion{
			Type:    model.SuggestionWarning,
			Title:   "Exam Integrity",
			Message: "Some activities were flagged during the exam. Maintain focus and avoid suspicious behavior.",
		})
	}

	return append(out, model.Suggestion{
		Type:    model.SuggestionTip,
		Title:   "Next Steps",
		Message: "Review incorrect answers, identify weak areas, and create a study plan for improvement.",
	})
}
