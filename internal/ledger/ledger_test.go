package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

func newLedger(p Policy) (*Ledger, *model.ProctorState) {
	state := model.NewProctorState()
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return New(p, &state, func() time.Time { return clock }), &state
}

func TestNoFaceEscalatesOnFirstThenEverySecond(t *testing.T) {
	l, state := newLedger(Policy{NoFaceEvery: 2, NoiseEvery: 3, NoiseAlertLevel: 60, NoiseResetLevel: 50, MaxWarnings: 100})

	want := map[int]bool{1: true, 2: true, 3: false, 4: true, 5: false, 6: true}
	for n := 1; n <= 6; n++ {
		out := l.Face(model.FaceStatusNoFace, 0)
		assert.Equal(t, want[n], out.Warned, "occurrence %d", n)
		assert.Equal(t, n, state.NoFaceStreak)
	}
	assert.Equal(t, 4, state.WarningCount)
	assert.Len(t, state.Violations, 4)
	assert.Equal(t, 6, state.FaceMissingTotal)
}

func TestThreeConsecutiveNoFaceWarnTwice(t *testing.T) {
	l, state := newLedger(DefaultPolicy())
	for i := 0; i < 3; i++ {
		l.Face(model.FaceStatusNoFace, 0)
	}
	assert.Equal(t, 2, state.WarningCount)
}

func TestFaceOKResetsStreaks(t *testing.T) {
	l, state := newLedger(DefaultPolicy())
	l.Face(model.FaceStatusNoFace, 0)
	l.Face(model.FaceStatusMultiple, 2)
	l.Face(model.FaceStatusOK, 1)
	assert.Zero(t, state.NoFaceStreak)
	assert.Zero(t, state.MultipleFaceStreak)
	assert.Equal(t, model.FaceStatusOK, state.FaceStatus)

	// A new streak warns on its first occurrence again.
	out := l.Face(model.FaceStatusNoFace, 0)
	assert.True(t, out.Warned)
	assert.Equal(t, 2, state.FaceMissingTotal)
}

func TestUnknownFaceStatusLeavesStreaks(t *testing.T) {
	l, state := newLedger(DefaultPolicy())
	l.Face(model.FaceStatusNoFace, 0)
	out := l.Face(model.FaceStatusUnknown, 0)
	assert.Nil(t, out.Violation)
	assert.Equal(t, 1, state.NoFaceStreak)
}

func TestMultipleFacesWarnEveryTime(t *testing.T) {
	l, state := newLedger(Policy{NoFaceEvery: 2, NoiseEvery: 3, NoiseAlertLevel: 60, NoiseResetLevel: 50, MaxWarnings: 100})
	for i := 1; i <= 4; i++ {
		out := l.Face(model.FaceStatusMultiple, 2)
		require.True(t, out.Warned)
		assert.Equal(t, model.ViolationMultipleFaces, out.Violation.Type)
		assert.Contains(t, out.Violation.Message, "(2 people)")
	}
	assert.Equal(t, 4, state.MultipleFaceStreak)
	assert.Equal(t, 4, state.WarningCount)
}

func TestNoiseHysteresis(t *testing.T) {
	l, state := newLedger(Policy{NoFaceEvery: 2, NoiseEvery: 3, NoiseAlertLevel: 60, NoiseResetLevel: 50, MaxWarnings: 100})

	steps := []struct {
		level  int
		warned bool
		streak int
	}{
		{70, true, 1},
		{61, false, 2},
		{90, true, 3},
		{60, false, 3}, // not above the alert level, not below reset
		{55, false, 3},
		{75, false, 4},
		{50, false, 4},
		{49, false, 0},
		{80, true, 1},
	}
	for i, s := range steps {
		out := l.Noise(s.level)
		assert.Equal(t, s.warned, out.Warned, "step %d level %d", i, s.level)
		assert.Equal(t, s.streak, state.NoiseAlertStreak, "step %d level %d", i, s.level)
		assert.Equal(t, s.level, state.NoiseLevel)
	}
	assert.Equal(t, 3, state.WarningCount)
}

func TestTabAndFullscreenAlwaysWarn(t *testing.T) {
	l, state := newLedger(Policy{NoFaceEvery: 2, NoiseEvery: 3, MaxWarnings: 100})
	state.IsFullscreen = true

	assert.True(t, l.TabHidden().Warned)
	assert.True(t, l.TabHidden().Warned)
	assert.True(t, l.FullscreenExit().Warned)

	assert.Equal(t, 2, state.TabSwitchCount)
	assert.False(t, state.IsFullscreen)
	assert.Equal(t, 3, state.WarningCount)
	assert.Equal(t, model.ViolationTabSwitch, state.Violations[0].Type)
	assert.Equal(t, model.ViolationFullscreenExit, state.Violations[2].Type)
}

func TestNuisanceEventsDoNotWarn(t *testing.T) {
	l, state := newLedger(DefaultPolicy())
	for _, v := range []model.ViolationType{model.ViolationRightClick, model.ViolationCopyAttempt, model.ViolationDevtoolsAttempt} {
		out := l.Nuisance(v, "")
		assert.False(t, out.Warned)
		require.NotNil(t, out.Violation)
		assert.NotEmpty(t, out.Violation.Message)
	}
	assert.Len(t, state.Violations, 3)
	assert.Zero(t, state.WarningCount)
}

func TestManualViolations(t *testing.T) {
	l, state := newLedger(Policy{NoFaceEvery: 2, NoiseEvery: 3, MaxWarnings: 100})

	assert.False(t, l.Manual(model.ViolationCopyAttempt, "blocked").Warned)
	assert.True(t, l.Manual("screen-share", "").Warned)
	assert.True(t, l.Manual(model.ViolationTabSwitch, "").Warned)

	assert.Equal(t, 2, state.WarningCount)
	assert.Equal(t, 1, state.TabSwitchCount)
	assert.Equal(t, "blocked", state.Violations[0].Message)
	assert.Equal(t, "Violation reported: screen-share", state.Violations[1].Message)
}

func TestTerminatesExactlyOnce(t *testing.T) {
	l, state := newLedger(DefaultPolicy())

	var terminations, last int
	for i := 0; i < 9; i++ {
		out := l.TabHidden()
		if out.Terminate {
			terminations++
			assert.Equal(t, 5, state.WarningCount)
		}
		assert.GreaterOrEqual(t, state.WarningCount, last)
		last = state.WarningCount
	}
	assert.Equal(t, 1, terminations)
	assert.True(t, l.Tripped())
	assert.Equal(t, 9, state.WarningCount)
}

func TestSnapshotCapacityDropsOldest(t *testing.T) {
	l, state := newLedger(Policy{SnapshotCapacity: 3})
	for i := 0; i < 5; i++ {
		l.Snapshot(i)
	}
	require.Len(t, state.Snapshots, 3)
	assert.Equal(t, 2, state.Snapshots[0].FaceCount)
	assert.Equal(t, 4, state.Snapshots[2].FaceCount)
}
