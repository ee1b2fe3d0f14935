package model

import "time"

// SessionStatus enumerates the states of the session controller.
type SessionStatus string

const (
	SessionStatusIdle       SessionStatus = "IDLE"
	SessionStatusPreflight  SessionStatus = "PREFLIGHT_CHECK"
	SessionStatusRunning    SessionStatus = "RUNNING"
	SessionStatusSubmitting SessionStatus = "SUBMITTING"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// FaceStatus is the latest face-presence reading.
type FaceStatus string

const (
	FaceStatusUnknown  FaceStatus = "unknown"
	FaceStatusOK       FaceStatus = "ok"
	FaceStatusNoFace   FaceStatus = "no-face"
	FaceStatusMultiple FaceStatus = "multiple-faces"
)

// ViolationType identifies the integrity signal that produced a violation.
type ViolationType string

const (
	ViolationNoFace          ViolationType = "no-face"
	ViolationMultipleFaces   ViolationType = "multiple-faces"
	ViolationHighNoise       ViolationType = "high-noise"
	ViolationTabSwitch       ViolationType = "tab-switch"
	ViolationFullscreenExit  ViolationType = "fullscreen-exit"
	ViolationRightClick      ViolationType = "right-click"
	ViolationCopyAttempt     ViolationType = "copy-attempt"
	ViolationDevtoolsAttempt ViolationType = "devtools-attempt"

	// ViolationCameraUnavailable marks a session that started without a
	// camera. It is recorded for review and never escalates.
	ViolationCameraUnavailable ViolationType = "camera-unavailable"
)

// Violation is one entry of the violation log.
type Violation struct {
	Type      ViolationType `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Message   string        `json:"message"`
}

// Snapshot records a face sample.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	FaceCount int       `json:"face_count"`
}

// ProctorState is the proctoring half of a session. Pointer booleans encode
// the unknown/true/false tri-state.
type ProctorState struct {
	CameraAllowed      *bool       `json:"camera_allowed"`
	AudioAllowed       *bool       `json:"audio_allowed"`
	FaceStatus         FaceStatus  `json:"face_status"`
	NoFaceStreak       int         `json:"no_face_streak"`
	MultipleFaceStreak int         `json:"multiple_face_streak"`
	FaceMissingTotal   int         `json:"face_missing_total"`
	NoiseLevel         int         `json:"noise_level"`
	NoiseAlertStreak   int         `json:"noise_alert_streak"`
	TabSwitchCount     int         `json:"tab_switch_count"`
	IsFullscreen       bool        `json:"is_fullscreen"`
	Violations         []Violation `json:"violations"`
	WarningCount       int         `json:"warning_count"`
	Snapshots          []Snapshot  `json:"snapshots"`
}

// NewProctorState returns the initial proctoring state.
func NewProctorState() ProctorState {
	return ProctorState{
		FaceStatus: FaceStatusUnknown,
		Violations: []Violation{},
		Snapshots:  []Snapshot{},
	}
}

// Clone returns a deep copy safe to hand to readers outside the loop.
func (p ProctorState) Clone() ProctorState {
	out := p
	out.CameraAllowed = cloneBool(p.CameraAllowed)
	out.AudioAllowed = cloneBool(p.AudioAllowed)
	out.Violations = append([]Violation(nil), p.Violations...)
	out.Snapshots = append([]Snapshot(nil), p.Snapshots...)
	return out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// LogEntry is an immutable audit record of the session log.
type LogEntry struct {
	Timestamp  time.Time `json:"t"`
	Type       string    `json:"type"`
	QuestionID string    `json:"qid,omitempty"`
	Faces      *int      `json:"faces,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Draft is the persisted in-progress state used to recover after a reload.
type Draft struct {
	TestID           string            `json:"test_id"`
	Answers          map[string]string `json:"answers"`
	MarksForReview   map[string]bool   `json:"marks_for_review"`
	RemainingSeconds int               `json:"remaining_seconds"`
	Timestamp        time.Time         `json:"timestamp"`
}

// SessionView is a read-only snapshot of a session for rendering.
type SessionView struct {
	SessionID        string            `json:"session_id"`
	UserID           string            `json:"user_id"`
	Status           SessionStatus     `json:"status"`
	Test             *Test             `json:"test,omitempty"`
	CurrentIndex     int               `json:"current_index"`
	Answers          map[string]string `json:"answers"`
	MarksForReview   map[string]bool   `json:"marks_for_review"`
	RemainingSeconds int               `json:"remaining_seconds"`
	Running          bool              `json:"running"`
	Proctor          ProctorState      `json:"proctor"`
	LogSize          int               `json:"log_size"`
}
