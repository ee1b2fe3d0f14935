package model

import "time"

// Submission is the remote echo of a completed exam.
type Submission struct {
	TestID      string            `json:"test_id"`
	Answers     map[string]string `json:"answers"`
	SessionID   string            `json:"session_id"`
	UserID      string            `json:"user_id,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// ProctorEvent is one violation archived for review.
type ProctorEvent struct {
	SessionID  string        `json:"session_id"`
	UserID     string        `json:"user_id"`
	TestID     string        `json:"test_id"`
	Type       ViolationType `json:"type"`
	Message    string        `json:"message"`
	Warned     bool          `json:"warned"`
	OccurredAt time.Time     `json:"occurred_at"`
}
