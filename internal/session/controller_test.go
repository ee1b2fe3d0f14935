package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/catalog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/scheduler"
	"github.com/stemsi/exstem-proctor/internal/store"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

const testID = "acme-core"

func sampleTest() *model.Test {
	return &model.Test{
		ID:              testID,
		Title:           "Acme Core",
		DurationMinutes: 1,
		Questions: []model.Question{
			{ID: "q1", Kind: model.QuestionKindMCQ, Prompt: "Pick a", Options: []model.Option{
				{ID: "a", Text: "A", IsCorrect: true},
				{ID: "b", Text: "B"},
			}},
			{ID: "q2", Kind: model.QuestionKindMCQ, Prompt: "Pick b", Options: []model.Option{
				{ID: "a", Text: "A"},
				{ID: "b", Text: "B", IsCorrect: true},
			}},
			{ID: "q3", Kind: model.QuestionKindSubjective, Prompt: "Explain",
				ReferenceAnswers: []string{"Concept is about principles and core ideas"}},
		},
	}
}

type recordingForwarder struct {
	mu          sync.Mutex
	submissions []*model.Submission
	results     []*model.Result
	events      []*model.ProctorEvent
}

func (f *recordingForwarder) Submission(_ context.Context, s *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, s)
	return nil
}

func (f *recordingForwarder) Result(_ context.Context, r *model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	return nil
}

func (f *recordingForwarder) ProctorEvents(_ context.Context, events []*model.ProctorEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *recordingForwarder) resultCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

type harness struct {
	sched  *scheduler.Manual
	device *proctor.Simulated
	store  *store.Memory
	fwd    *recordingForwarder
	ctrl   *Controller
}

func newHarness(t *testing.T, device *proctor.Simulated, opts Options) *harness {
	t.Helper()
	h := &harness{
		sched:  scheduler.NewManual(epoch),
		device: device,
		store:  store.NewMemory(),
		fwd:    &recordingForwarder{},
	}
	h.ctrl = h.controller("sess-1", "user-1", opts)
	return h
}

func (h *harness) controller(id, userID string, opts Options) *Controller {
	return New(id, userID, Deps{
		Catalog:   catalog.NewStatic(model.Company{ID: "acme", Name: "Acme", Tests: []model.Test{*sampleTest()}}),
		Store:     h.store,
		Forwarder: h.fwd,
		Sensor:    proctor.NewSensor(h.device, h.device, proctor.DefaultThresholds(), zerolog.Nop()),
		Scheduler: h.sched,
		Log:       zerolog.Nop(),
	}, opts)
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.ctrl.SelectTest(ctx, testID))
	require.NoError(t, h.ctrl.Start(ctx))
}

func (h *harness) view(t *testing.T) model.SessionView {
	t.Helper()
	v, err := h.ctrl.View()
	require.NoError(t, err)
	return v
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.FaceInterval = time.Second
	return opts
}

func logTypes(entries []model.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Type
	}
	return out
}

func countType(entries []model.LogEntry, typ string) int {
	n := 0
	for _, e := range entries {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func countEvents(events []Event, typ EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestSelectTestEntersPreflight(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	require.NoError(t, h.ctrl.SelectTest(context.Background(), testID))

	v := h.view(t)
	assert.Equal(t, model.SessionStatusPreflight, v.Status)
	assert.Equal(t, 60, v.RemainingSeconds)
	assert.False(t, v.Running)
	require.NotNil(t, v.Test)
	for _, q := range v.Test.Questions {
		assert.Empty(t, q.ReferenceAnswers)
		for _, o := range q.Options {
			assert.False(t, o.IsCorrect)
		}
	}
}

func TestSelectUnknownTest(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	err := h.ctrl.SelectTest(context.Background(), "missing")
	require.ErrorIs(t, err, catalog.ErrTestNotFound)
	assert.Equal(t, model.SessionStatusIdle, h.view(t).Status)
}

func TestActionsRequireState(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	ctx := context.Background()

	require.ErrorIs(t, h.ctrl.Start(ctx), ErrNoTest)
	_, err := h.ctrl.Submit(nil)
	require.ErrorIs(t, err, ErrNoTest)
	_, err = h.ctrl.Result()
	require.ErrorIs(t, err, ErrNotCompleted)

	require.NoError(t, h.ctrl.SelectTest(ctx, testID))
	require.ErrorIs(t, h.ctrl.SetAnswer("q1", "a"), ErrNotRunning)
	require.ErrorIs(t, h.ctrl.TabVisibility(true), ErrNotRunning)
	res, err := h.ctrl.Submit(map[string]string{"q1": "a"})
	require.ErrorIs(t, err, ErrNotRunning)
	assert.Nil(t, res)
	assert.Equal(t, model.SessionStatusPreflight, h.view(t).Status)
	assert.Zero(t, h.fwd.resultCount())

	require.NoError(t, h.ctrl.Start(ctx))
	require.ErrorIs(t, h.ctrl.Start(ctx), ErrNotReady)
	require.ErrorIs(t, h.ctrl.SetAnswer("zz", "a"), ErrQuestionUnknown)
	_, err = h.ctrl.ToggleMark("zz")
	require.ErrorIs(t, err, ErrQuestionUnknown)
	require.ErrorIs(t, h.ctrl.JumpTo(3), ErrIndexOutOfRange)
	require.ErrorIs(t, h.ctrl.JumpTo(-1), ErrIndexOutOfRange)

	require.NoError(t, h.ctrl.JumpTo(2))
	assert.Equal(t, 2, h.view(t).CurrentIndex)
}

func TestStartAcquiresMedia(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	h.start(t)

	v := h.view(t)
	assert.Equal(t, model.SessionStatusRunning, v.Status)
	assert.True(t, v.Running)
	require.NotNil(t, v.Proctor.CameraAllowed)
	require.NotNil(t, v.Proctor.AudioAllowed)
	assert.True(t, *v.Proctor.CameraAllowed)
	assert.True(t, *v.Proctor.AudioAllowed)
	assert.Equal(t, 1, h.device.Opens())
	// tick, face and noise sampling
	assert.Equal(t, 3, h.sched.Pending())
}

func TestPreflightIsReused(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, false), DefaultOptions())
	ctx := context.Background()
	require.NoError(t, h.ctrl.SelectTest(ctx, testID))

	status, err := h.ctrl.Preflight(ctx)
	require.NoError(t, err)
	assert.Equal(t, proctor.MediaStatus{Camera: true, Audio: false}, status)

	require.NoError(t, h.ctrl.Start(ctx))
	assert.Equal(t, 1, h.device.Opens())
	// no noise sampling without audio
	assert.Equal(t, 2, h.sched.Pending())
}

func TestCameraRequiredBlocksStart(t *testing.T) {
	opts := DefaultOptions()
	opts.RequireCamera = true
	h := newHarness(t, proctor.NewSimulated(false, false), opts)
	ctx := context.Background()
	require.NoError(t, h.ctrl.SelectTest(ctx, testID))

	status, err := h.ctrl.Preflight(ctx)
	require.NoError(t, err)
	assert.False(t, status.Camera)

	require.ErrorIs(t, h.ctrl.Start(ctx), ErrCameraRequired)
	v := h.view(t)
	assert.Equal(t, model.SessionStatusPreflight, v.Status)
	require.NotNil(t, v.Proctor.CameraAllowed)
	assert.False(t, *v.Proctor.CameraAllowed)
	assert.Equal(t, 0, h.sched.Pending())
}

func TestDegradedStartWithoutCamera(t *testing.T) {
	opts := DefaultOptions()
	opts.RequireCamera = false
	h := newHarness(t, proctor.NewSimulated(false, false), opts)
	h.start(t)

	v := h.view(t)
	assert.True(t, v.Running)
	require.Len(t, v.Proctor.Violations, 1)
	assert.Equal(t, model.ViolationCameraUnavailable, v.Proctor.Violations[0].Type)
	assert.Equal(t, 0, v.Proctor.WarningCount)
	// only the countdown
	assert.Equal(t, 1, h.sched.Pending())
}

func TestRoundTripAnswersEveryQuestion(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	h.start(t)

	require.NoError(t, h.ctrl.SetAnswer("q1", "a"))
	require.NoError(t, h.ctrl.SetAnswer("q2", "a"))
	require.NoError(t, h.ctrl.SetAnswer("q3", "It is about core principles"))
	h.sched.Advance(10 * time.Second)

	res, err := h.ctrl.Submit(nil)
	require.NoError(t, err)
	assert.Equal(t, model.SubmitManual, res.Reason)
	assert.Equal(t, res.TotalQuestions, res.AnsweredQuestions)
	assert.Equal(t, 0, res.UnansweredQuestions)
	assert.InDelta(t, 50.0, res.MCQ.Percent, 0.001)
	assert.Equal(t, 10, res.TimeSpentSeconds)

	types := logTypes(res.SessionLog)
	assert.Contains(t, types, "camera-start")
	assert.Contains(t, types, "snapshot-auto-start")
	assert.Contains(t, types, "snapshot-auto-stop")
	assert.Contains(t, types, "camera-stop")
	assert.Equal(t, 3, countType(res.SessionLog, "answer"))
	assert.Equal(t, "end", types[len(types)-1])
	assert.NotContains(t, types, "submit")

	v := h.view(t)
	assert.Equal(t, model.SessionStatusCompleted, v.Status)
	assert.False(t, v.Running)
	assert.Equal(t, 0, h.sched.Pending())
	assert.Equal(t, 1, h.device.Stops())

	stored, err := h.ctrl.Result()
	require.NoError(t, err)
	assert.Same(t, res, stored)
}

func TestSubmitPersistsAndForwards(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	h.start(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.SetAnswer("q1", "a"))
	require.NoError(t, h.ctrl.TabVisibility(true))
	_, err := h.store.Get(ctx, config.CacheKey.DraftKey("user-1", testID))
	require.NoError(t, err)

	res, err := h.ctrl.Submit(map[string]string{"q2": "b", "zz": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.AnsweredQuestions)
	assert.Equal(t, 2, res.MCQ.Correct)

	_, err = h.store.Get(ctx, config.CacheKey.DraftKey("user-1", testID))
	require.ErrorIs(t, err, store.ErrNotFound)

	raw, err := h.store.Get(ctx, config.CacheKey.ResultKey("user-1", testID))
	require.NoError(t, err)
	var cached model.Result
	require.NoError(t, json.Unmarshal(raw, &cached))
	assert.Equal(t, res.OverallScore, cached.OverallScore)

	require.Len(t, h.fwd.submissions, 1)
	sub := h.fwd.submissions[0]
	assert.Equal(t, testID, sub.TestID)
	assert.Equal(t, "sess-1", sub.SessionID)
	assert.Equal(t, map[string]string{"q1": "a", "q2": "b"}, sub.Answers)

	require.Len(t, h.fwd.results, 1)
	require.Len(t, h.fwd.events, 1)
	assert.Equal(t, model.ViolationTabSwitch, h.fwd.events[0].Type)
	assert.True(t, h.fwd.events[0].Warned)
}

func TestSubmitIsIdempotent(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	h.start(t)

	first, err := h.ctrl.Submit(nil)
	require.NoError(t, err)
	second, err := h.ctrl.Submit(map[string]string{"q1": "a"})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 0, second.AnsweredQuestions)
	assert.Equal(t, 1, h.fwd.resultCount())
	assert.Equal(t, 1, h.device.Stops())
}

func TestTimeoutSubmitsExactlyOnce(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	events, cancel := h.ctrl.Subscribe()
	defer cancel()
	h.start(t)

	h.sched.Advance(59 * time.Second)
	v := h.view(t)
	assert.Equal(t, 1, v.RemainingSeconds)
	assert.True(t, v.Running)

	h.sched.Advance(time.Second)
	res, err := h.ctrl.Result()
	require.NoError(t, err)
	assert.Equal(t, model.SubmitTimeout, res.Reason)
	assert.Equal(t, 60, res.TimeSpentSeconds)
	assert.Contains(t, titles(res.Suggestions), "Practice Speed")
	assert.Contains(t, logTypes(res.SessionLog), "auto-submit")

	h.sched.Advance(30 * time.Second)
	h.sched.Do(h.ctrl.tick)

	v = h.view(t)
	assert.Equal(t, model.SessionStatusCompleted, v.Status)
	assert.Equal(t, 0, v.RemainingSeconds)
	assert.Equal(t, 1, h.fwd.resultCount())
	assert.Equal(t, 0, h.sched.Pending())

	got := drain(events)
	assert.Equal(t, 59, countEvents(got, EventTick))
	assert.Equal(t, 1, countEvents(got, EventCompleted))
}

func TestWarningLimitAutoSubmitsOnce(t *testing.T) {
	device := proctor.NewSimulated(true, false)
	device.QueueFaces(2, 2, 2, 2, 2, 2, 2, 2)
	h := newHarness(t, device, fastOptions())
	events, cancel := h.ctrl.Subscribe()
	defer cancel()
	h.start(t)

	h.sched.Advance(5 * time.Second)
	v := h.view(t)
	assert.Equal(t, 5, v.Proctor.WarningCount)
	assert.Equal(t, model.SessionStatusRunning, v.Status, "submission is deferred")

	// violations racing the deferred submission never schedule another one
	require.NoError(t, h.ctrl.TabVisibility(true))
	require.NoError(t, h.ctrl.AddViolation(model.ViolationFullscreenExit, ""))

	h.sched.Advance(time.Second)
	res, err := h.ctrl.Result()
	require.NoError(t, err)
	assert.Equal(t, model.SubmitViolations, res.Reason)
	assert.Equal(t, 7, res.ProctorSummary.Warnings)
	assert.Equal(t, 5, res.ProctorSummary.MultipleFaceAlerts)
	assert.Equal(t, 1, countType(res.SessionLog, "auto-terminate-warnings"))

	h.sched.Advance(10 * time.Second)
	assert.Equal(t, 1, h.fwd.resultCount())

	got := drain(events)
	assert.Equal(t, 1, countEvents(got, EventTerminated))
	assert.Equal(t, 1, countEvents(got, EventCompleted))
	assert.Equal(t, 7, countEvents(got, EventViolation))

	var warnings []int
	for _, e := range got {
		if e.Type == EventViolation {
			warnings = append(warnings, e.Warnings)
		}
	}
	assert.IsNonDecreasing(t, warnings)
}

func TestNoFaceStreakThroughHeuristic(t *testing.T) {
	device := proctor.NewSimulated(true, false)
	black := proctor.SolidFrame(120, 90, 0, 0, 0)
	device.QueueFrames(black, black, black)
	h := newHarness(t, device, fastOptions())
	h.start(t)

	h.sched.Advance(3 * time.Second)
	v := h.view(t)
	assert.Equal(t, model.FaceStatusNoFace, v.Proctor.FaceStatus)
	assert.Equal(t, 3, v.Proctor.NoFaceStreak)
	assert.Equal(t, 3, v.Proctor.FaceMissingTotal)
	assert.Equal(t, 2, v.Proctor.WarningCount)
	assert.Len(t, v.Proctor.Violations, 2)
	assert.Len(t, v.Proctor.Snapshots, 3)

	h.sched.Advance(time.Second)
	v = h.view(t)
	assert.Equal(t, model.FaceStatusOK, v.Proctor.FaceStatus)
	assert.Equal(t, 0, v.Proctor.NoFaceStreak)
}

func TestNoiseSampling(t *testing.T) {
	device := proctor.NewSimulated(true, true)
	device.QueueNoise(80, 80, 80, 40)
	h := newHarness(t, device, DefaultOptions())
	h.start(t)

	h.sched.Advance(3 * time.Second)
	v := h.view(t)
	assert.Equal(t, 80, v.Proctor.NoiseLevel)
	assert.Equal(t, 3, v.Proctor.NoiseAlertStreak)
	assert.Equal(t, 2, v.Proctor.WarningCount)

	h.sched.Advance(time.Second)
	v = h.view(t)
	assert.Equal(t, 0, v.Proctor.NoiseAlertStreak)
}

func TestFullscreenTransitions(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	events, cancel := h.ctrl.Subscribe()
	defer cancel()
	h.start(t)

	require.NoError(t, h.ctrl.RequestFullscreen())
	require.NoError(t, h.ctrl.FullscreenChanged(true))
	assert.True(t, h.view(t).Proctor.IsFullscreen)

	require.NoError(t, h.ctrl.ExitFullscreen())
	require.NoError(t, h.ctrl.FullscreenChanged(false))
	assert.Equal(t, 0, h.view(t).Proctor.WarningCount)

	require.NoError(t, h.ctrl.FullscreenChanged(true))
	require.NoError(t, h.ctrl.FullscreenChanged(false))
	v := h.view(t)
	assert.False(t, v.Proctor.IsFullscreen)
	assert.Equal(t, 1, v.Proctor.WarningCount)
	assert.Equal(t, model.ViolationFullscreenExit, v.Proctor.Violations[0].Type)

	require.NoError(t, h.ctrl.FullscreenChanged(true))
	_, err := h.ctrl.Submit(nil)
	require.NoError(t, err)
	assert.False(t, h.view(t).Proctor.IsFullscreen)

	var last *bool
	for _, e := range drain(events) {
		if e.Type == EventFullscreen {
			last = e.Fullscreen
		}
	}
	require.NotNil(t, last)
	assert.False(t, *last)
}

func TestExitFullscreenRequiresExam(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	events, cancel := h.ctrl.Subscribe()
	defer cancel()

	require.ErrorIs(t, h.ctrl.ExitFullscreen(), ErrNotRunning)
	for _, e := range drain(events) {
		assert.NotEqual(t, EventFullscreen, e.Type)
	}

	require.NoError(t, h.ctrl.SelectTest(context.Background(), testID))
	require.NoError(t, h.ctrl.ExitFullscreen())

	require.NoError(t, h.ctrl.Start(context.Background()))
	_, err := h.ctrl.Submit(nil)
	require.NoError(t, err)
	require.ErrorIs(t, h.ctrl.ExitFullscreen(), ErrNotRunning)
}

func TestNuisanceViolationsDoNotWarn(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	h.start(t)

	require.NoError(t, h.ctrl.AddViolation(model.ViolationRightClick, ""))
	require.NoError(t, h.ctrl.AddViolation(model.ViolationCopyAttempt, ""))
	require.NoError(t, h.ctrl.AddViolation(model.ViolationTabSwitch, ""))

	v := h.view(t)
	assert.Len(t, v.Proctor.Violations, 3)
	assert.Equal(t, 1, v.Proctor.WarningCount)
	assert.Equal(t, 1, v.Proctor.TabSwitchCount)
}

func TestDraftRestoresAfterLeave(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	h.start(t)

	require.NoError(t, h.ctrl.SetAnswer("q1", "a"))
	marked, err := h.ctrl.ToggleMark("q2")
	require.NoError(t, err)
	assert.True(t, marked)
	h.sched.Advance(10 * time.Second)

	require.NoError(t, h.ctrl.Leave())
	assert.Equal(t, model.SessionStatusIdle, h.view(t).Status)
	assert.Equal(t, 1, h.device.Stops())
	assert.Equal(t, 0, h.sched.Pending())

	require.NoError(t, h.ctrl.SelectTest(context.Background(), testID))
	v := h.view(t)
	assert.Equal(t, map[string]string{"q1": "a"}, v.Answers)
	assert.Equal(t, map[string]bool{"q2": true}, v.MarksForReview)
	assert.Equal(t, 50, v.RemainingSeconds)
}

func TestDraftRestoreIsSanitised(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	ctx := context.Background()
	raw, err := json.Marshal(model.Draft{
		TestID:           testID,
		Answers:          map[string]string{"q1": "b", "gone": "x"},
		MarksForReview:   map[string]bool{"q3": true, "gone": true, "q1": false},
		RemainingSeconds: 999,
		Timestamp:        epoch,
	})
	require.NoError(t, err)
	require.NoError(t, h.store.Set(ctx, config.CacheKey.DraftKey("user-1", testID), raw))

	require.NoError(t, h.ctrl.SelectTest(ctx, testID))
	v := h.view(t)
	assert.Equal(t, map[string]string{"q1": "b"}, v.Answers)
	assert.Equal(t, map[string]bool{"q3": true}, v.MarksForReview)
	assert.Equal(t, 60, v.RemainingSeconds)
}

func TestExpiredDraftIsIgnored(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	ctx := context.Background()
	raw, err := json.Marshal(model.Draft{TestID: testID, Answers: map[string]string{"q1": "a"}})
	require.NoError(t, err)
	require.NoError(t, h.store.Set(ctx, config.CacheKey.DraftKey("user-1", testID), raw))

	require.NoError(t, h.ctrl.SelectTest(ctx, testID))
	v := h.view(t)
	assert.Empty(t, v.Answers)
	assert.Equal(t, 60, v.RemainingSeconds)
}

func TestToggleMarkTwiceClears(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	h.start(t)

	_, err := h.ctrl.ToggleMark("q1")
	require.NoError(t, err)
	marked, err := h.ctrl.ToggleMark("q1")
	require.NoError(t, err)
	assert.False(t, marked)
	assert.Empty(t, h.view(t).MarksForReview)
}

func TestReselectDiscardsRunningExam(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	h.start(t)
	require.NoError(t, h.ctrl.SetAnswer("q1", "a"))

	require.NoError(t, h.ctrl.SelectTest(context.Background(), testID))
	v := h.view(t)
	assert.Equal(t, model.SessionStatusPreflight, v.Status)
	assert.Equal(t, 0, h.sched.Pending())
	assert.Equal(t, 1, h.device.Stops())
	assert.Equal(t, 0, v.Proctor.WarningCount)
}

func TestCloseStopsEverything(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	events, _ := h.ctrl.Subscribe()
	h.start(t)

	h.ctrl.Close()
	assert.Equal(t, 1, h.device.Stops())
	assert.Equal(t, 0, h.sched.Pending())
	require.ErrorIs(t, h.ctrl.SetAnswer("q1", "a"), ErrClosed)

	drain(events)
	_, open := <-events
	assert.False(t, open)
	assert.Equal(t, 0, h.fwd.resultCount(), "closing keeps the draft instead of submitting")
}

func TestReapSubmitsRunningExam(t *testing.T) {
	h := newHarness(t, proctor.NewSimulated(true, true), DefaultOptions())
	assert.False(t, h.ctrl.Reap())

	h.start(t)
	assert.True(t, h.ctrl.Reap())
	res, err := h.ctrl.Result()
	require.NoError(t, err)
	assert.Equal(t, model.SubmitReaped, res.Reason)
	assert.False(t, h.ctrl.Reap())
}
