// Package ledger turns proctoring readings and browser events into a
// violation log with warning escalation. A Ledger is not safe for concurrent
// use; the session controller drives it from its scheduler loop.
package ledger

import (
	"fmt"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Policy holds the escalation tunables.
type Policy struct {
	// NoFaceEvery warns on the first no-face reading and then on every
	// NoFaceEvery-th consecutive one.
	NoFaceEvery int
	// NoiseEvery does the same for readings above NoiseAlertLevel.
	NoiseEvery      int
	NoiseAlertLevel int
	// NoiseResetLevel is the level the noise streak must drop below to reset.
	NoiseResetLevel  int
	MaxWarnings      int
	SnapshotCapacity int
}

// DefaultPolicy returns the legacy tuning.
func DefaultPolicy() Policy {
	return Policy{
		NoFaceEvery:      2,
		NoiseEvery:       3,
		NoiseAlertLevel:  60,
		NoiseResetLevel:  50,
		MaxWarnings:      5,
		SnapshotCapacity: 200,
	}
}

// Outcome describes what one event did to the ledger.
type Outcome struct {
	// Violation is nil when the event was recorded without a violation.
	Violation *model.Violation
	Warned    bool
	// Terminate is true only for the event that first brought the warning
	// count to MaxWarnings.
	Terminate bool
}

// Ledger accumulates violations over a ProctorState it does not own.
type Ledger struct {
	policy  Policy
	state   *model.ProctorState
	now     func() time.Time
	tripped bool
}

// New creates a ledger writing into state.
func New(policy Policy, state *model.ProctorState, now func() time.Time) *Ledger {
	if policy.NoFaceEvery <= 0 {
		policy.NoFaceEvery = 1
	}
	if policy.NoiseEvery <= 0 {
		policy.NoiseEvery = 1
	}
	return &Ledger{policy: policy, state: state, now: now}
}

// Policy returns the active tuning.
func (l *Ledger) Policy() Policy { return l.policy }

// Tripped reports whether the termination threshold has been reached.
func (l *Ledger) Tripped() bool { return l.tripped }

// Face records a face-presence reading.
func (l *Ledger) Face(status model.FaceStatus, count int) Outcome {
	s := l.state
	s.FaceStatus = status

	switch status {
	case model.FaceStatusNoFace:
		s.NoFaceStreak++
		s.FaceMissingTotal++
		if escalates(s.NoFaceStreak, l.policy.NoFaceEvery) {
			return l.warn(model.ViolationNoFace, "No face detected - Please stay visible to camera")
		}
	case model.FaceStatusMultiple:
		s.MultipleFaceStreak++
		return l.warn(model.ViolationMultipleFaces,
			fmt.Sprintf("Multiple faces detected (%d people) - Only candidate should be visible", count))
	case model.FaceStatusOK:
		s.NoFaceStreak = 0
		s.MultipleFaceStreak = 0
	}
	return Outcome{}
}

// Snapshot appends a face sample, dropping the oldest beyond capacity.
func (l *Ledger) Snapshot(faceCount int) {
	s := l.state
	s.Snapshots = append(s.Snapshots, model.Snapshot{Timestamp: l.now(), FaceCount: faceCount})
	if c := l.policy.SnapshotCapacity; c > 0 && len(s.Snapshots) > c {
		s.Snapshots = append(s.Snapshots[:0:0], s.Snapshots[len(s.Snapshots)-c:]...)
	}
}

// Noise records a 0-100 noise reading.
func (l *Ledger) Noise(level int) Outcome {
	s := l.state
	s.NoiseLevel = level

	if level > l.policy.NoiseAlertLevel {
		s.NoiseAlertStreak++
		if escalates(s.NoiseAlertStreak, l.policy.NoiseEvery) {
			return l.warn(model.ViolationHighNoise,
				fmt.Sprintf("High background noise detected (Level: %d) - Please reduce background noise", level))
		}
		return Outcome{}
	}
	if s.NoiseAlertStreak > 0 && level < l.policy.NoiseResetLevel {
		s.NoiseAlertStreak = 0
	}
	return Outcome{}
}

// TabHidden records the exam tab losing visibility.
func (l *Ledger) TabHidden() Outcome {
	l.state.TabSwitchCount++
	return l.warn(model.ViolationTabSwitch, "Switched away from exam tab")
}

// FullscreenExit records leaving fullscreen.
func (l *Ledger) FullscreenExit() Outcome {
	l.state.IsFullscreen = false
	return l.warn(model.ViolationFullscreenExit, "Exited fullscreen mode")
}

// Nuisance records a blocked action. It never warns.
func (l *Ledger) Nuisance(t model.ViolationType, message string) Outcome {
	if message == "" {
		message = nuisanceMessages[t]
	}
	v := l.record(t, message)
	return Outcome{Violation: &v}
}

// Manual records a violation raised by the UI. Nuisance types are logged
// without a warning, tab-switch counts as a tab switch, and anything else
// warns.
func (l *Ledger) Manual(t model.ViolationType, message string) Outcome {
	switch {
	case IsNuisance(t):
		return l.Nuisance(t, message)
	case t == model.ViolationTabSwitch:
		l.state.TabSwitchCount++
	case t == model.ViolationFullscreenExit:
		l.state.IsFullscreen = false
	}
	if message == "" {
		message = "Violation reported: " + string(t)
	}
	return l.warn(t, message)
}

// IsNuisance reports whether t is logged without escalation.
func IsNuisance(t model.ViolationType) bool {
	_, ok := nuisanceMessages[t]
	return ok
}

var nuisanceMessages = map[model.ViolationType]string{
	model.ViolationRightClick:        "Right-click attempted",
	model.ViolationCopyAttempt:       "Copy attempt blocked",
	model.ViolationDevtoolsAttempt:   "Developer tools attempt",
	model.ViolationCameraUnavailable: "Camera unavailable - proctoring degraded",
}

func (l *Ledger) warn(t model.ViolationType, message string) Outcome {
	v := l.record(t, message)
	l.state.WarningCount++

	out := Outcome{Violation: &v, Warned: true}
	if !l.tripped && l.state.WarningCount >= l.policy.MaxWarnings {
		l.tripped = true
		out.Terminate = true
	}
	return out
}

func (l *Ledger) record(t model.ViolationType, message string) model.Violation {
	v := model.Violation{Type: t, Timestamp: l.now(), Message: message}
	l.state.Violations = append(l.state.Violations, v)
	return v
}

// escalates is the "first, then every n-th" rule.
func escalates(streak, every int) bool {
	return streak == 1 || streak%every == 0
}
