package model

import "time"

// MCQScore summarises multiple-choice grading.
type MCQScore struct {
	Total   int     `json:"total"`
	Correct int     `json:"correct"`
	Percent float64 `json:"percent"`
}

// SubjectiveDetails explains a subjective score.
type SubjectiveDetails struct {
	Similarity float64 `json:"similarity"`
}

// SubjectiveScore is the grade of one free-text answer. Details is nil when
// the answer was too short to grade.
type SubjectiveScore struct {
	Score   float64            `json:"score"`
	Details *SubjectiveDetails `json:"details"`
}

// ProctorSummary condenses the proctoring counters into the result.
type ProctorSummary struct {
	TabSwitches        int `json:"tab_switches"`
	Violations         int `json:"violations"`
	Warnings           int `json:"warnings"`
	SnapshotsTaken     int `json:"snapshots_taken"`
	NoFaceAlerts       int `json:"no_face_alerts"`
	MultipleFaceAlerts int `json:"multiple_face_alerts"`
	NoiseAlerts        int `json:"noise_alerts"`
}

// SuggestionType classifies a suggestion for presentation.
type SuggestionType string

const (
	SuggestionCritical    SuggestionType = "critical"
	SuggestionImprovement SuggestionType = "improvement"
	SuggestionPositive    SuggestionType = "positive"
	SuggestionWarning     SuggestionType = "warning"
	SuggestionInfo        SuggestionType = "info"
	SuggestionTip         SuggestionType = "tip"
)

// Suggestion is one piece of post-exam feedback.
type Suggestion struct {
	Type    SuggestionType `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
}

// SubmitReason records what triggered the submission.
type SubmitReason string

const (
	SubmitManual     SubmitReason = "manual"
	SubmitTimeout    SubmitReason = "timeout"
	SubmitViolations SubmitReason = "violations"
	SubmitReaped     SubmitReason = "reaped"
)

// Result is the immutable outcome of a submission.
type Result struct {
	SessionID           string                     `json:"session_id"`
	UserID              string                     `json:"user_id"`
	TestID              string                     `json:"test_id"`
	TestTitle           string                     `json:"test_title"`
	Reason              SubmitReason               `json:"reason"`
	Degraded            bool                       `json:"degraded"`
	MCQ                 MCQScore                   `json:"mcq"`
	SubjectiveResults   map[string]SubjectiveScore `json:"subjective_results"`
	SubjectiveAvg       float64                    `json:"subjective_avg"`
	OverallScore        int                        `json:"overall_score"`
	TotalQuestions      int                        `json:"total_questions"`
	AnsweredQuestions   int                        `json:"answered_questions"`
	UnansweredQuestions int                        `json:"unanswered_questions"`
	TimeSpentSeconds    int                        `json:"time_spent_seconds"`
	AvgTimePerQuestion  int                        `json:"avg_time_per_question"`
	TotalTimeSeconds    int                        `json:"total_time_seconds"`
	ProctorSummary      ProctorSummary             `json:"proctor_summary"`
	Suggestions         []Suggestion               `json:"suggestions"`
	SessionLog          []LogEntry                 `json:"session_log"`
	SubmittedAt         time.Time                  `json:"submitted_at"`
}
