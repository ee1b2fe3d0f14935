// Package session runs one candidate's exam: test selection, the countdown,
// answers and review marks, proctoring sampling and the single submission
// that produces a Result. All session state is owned by a scheduler loop;
// public methods do their I/O on the caller's goroutine and then apply the
// outcome on the loop.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/catalog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/forward"
	"github.com/stemsi/exstem-proctor/internal/ledger"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/scheduler"
	"github.com/stemsi/exstem-proctor/internal/store"
)

var (
	ErrNoTest          = errors.New("no test selected")
	ErrNotRunning      = errors.New("exam is not running")
	ErrNotReady        = errors.New("exam is not awaiting start")
	ErrNotCompleted    = errors.New("exam has not been submitted")
	ErrCameraRequired  = errors.New("camera access is required to start")
	ErrQuestionUnknown = errors.New("question does not belong to the test")
	ErrIndexOutOfRange = errors.New("question index out of range")
	ErrClosed          = errors.New("session closed")
)

// writeTimeout bounds each store write and how long Close waits for them.
const writeTimeout = 10 * time.Second

// Sensor is the media capability a controller drives. *proctor.Sensor
// implements it.
type Sensor interface {
	Acquire(ctx context.Context, target proctor.RenderTarget) (proctor.MediaStatus, error)
	SampleFace(ctx context.Context) (proctor.FaceReading, error)
	SampleNoise(ctx context.Context) (int, error)
	Release()
}

// Deps are the collaborators of a controller. Target may be nil.
type Deps struct {
	Catalog   catalog.Source
	Store     store.Store
	Forwarder forward.Forwarder
	Sensor    Sensor
	Target    proctor.RenderTarget
	Scheduler scheduler.Scheduler
	Log       zerolog.Logger
}

// Options tune timing and escalation.
type Options struct {
	Policy          ledger.Policy
	TickInterval    time.Duration
	FaceInterval    time.Duration
	NoiseInterval   time.Duration
	AutoSubmitDelay time.Duration
	// RequireCamera refuses to start without a camera instead of running
	// a degraded, unproctored exam.
	RequireCamera bool
}

// DefaultOptions mirrors config.DefaultProctor.
func DefaultOptions() Options {
	return Options{
		Policy:          ledger.DefaultPolicy(),
		TickInterval:    time.Second,
		FaceInterval:    20 * time.Second,
		NoiseInterval:   time.Second,
		AutoSubmitDelay: 100 * time.Millisecond,
		RequireCamera:   true,
	}
}

// OptionsFrom builds Options from the proctor configuration.
func OptionsFrom(pc config.ProctorConfig) Options {
	return Options{
		Policy: ledger.Policy{
			NoFaceEvery:      pc.NoFaceEvery,
			NoiseEvery:       pc.NoiseEvery,
			NoiseAlertLevel:  pc.NoiseAlertLevel,
			NoiseResetLevel:  pc.NoiseResetLevel,
			MaxWarnings:      pc.MaxWarnings,
			SnapshotCapacity: pc.SnapshotCapacity,
		},
		TickInterval:    time.Second,
		FaceInterval:    pc.FaceSampleInterval,
		NoiseInterval:   pc.NoiseSampleInterval,
		AutoSubmitDelay: pc.AutoSubmitDelay,
		RequireCamera:   pc.RequireCamera,
	}
}

// Controller is the exam state machine for one session.
type Controller struct {
	id     string
	userID string
	deps   Deps
	opts   Options
	sched  scheduler.Scheduler
	log    zerolog.Logger
	events *hub

	lastActivity atomic.Int64

	persistMu sync.Mutex
	persisted uint64
	writes    sync.WaitGroup

	// Owned by the loop.
	gen        uint64
	status     model.SessionStatus
	test       *model.Test
	candidate  *model.Test
	index      int
	answers    map[string]string
	marks      map[string]bool
	remaining  int
	running    bool
	proctor    model.ProctorState
	ledger     *ledger.Ledger
	sessionLog []model.LogEntry
	result     *model.Result
	media      *proctor.MediaStatus
	mediaHeld  bool
	sampling   bool
	tasks      []scheduler.Task
	autoSubmit scheduler.Task
	draftSeq   uint64
	closing    bool
}

// New creates an idle controller.
func New(id, userID string, deps Deps, opts Options) *Controller {
	if deps.Forwarder == nil {
		deps.Forwarder = forward.Nop{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	c := &Controller{
		id:     id,
		userID: userID,
		deps:   deps,
		opts:   opts,
		sched:  deps.Scheduler,
		log:    logger.Session(logger.Component(deps.Log, "session"), id, userID),
		events: newHub(),
	}
	c.clear()
	c.touch()
	return c
}

func (c *Controller) ID() string     { return c.id }
func (c *Controller) UserID() string { return c.userID }

// LastActivity is the time of the last candidate-initiated call.
func (c *Controller) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

func (c *Controller) touch() {
	c.lastActivity.Store(c.sched.Now().UnixNano())
}

// Subscribe streams session events until the returned cancel is called or
// the controller is closed.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	return c.events.subscribe()
}

// do runs fn on the loop and waits for it.
func (c *Controller) do(fn func()) error {
	ran := false
	c.sched.Do(func() {
		ran = true
		fn()
	})
	if !ran {
		return ErrClosed
	}
	return nil
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// SelectTest loads a test, restores a compatible draft and moves the session
// to the preflight check. Any previous exam in this session is discarded.
func (c *Controller) SelectTest(ctx context.Context, testID string) error {
	c.touch()
	t, err := c.deps.Catalog.Get(ctx, testID)
	if err != nil {
		return err
	}
	draft := c.loadDraft(ctx, t)

	return c.do(func() {
		c.clear()
		c.test = t
		c.candidate = t.ForCandidate()
		c.remaining = t.DurationSeconds()
		c.status = model.SessionStatusPreflight
		if draft != nil {
			c.restore(draft)
		}
		c.log.Info().Str("test_id", t.ID).Bool("draft", draft != nil).Msg("Test selected")
	})
}

func (c *Controller) loadDraft(ctx context.Context, t *model.Test) *model.Draft {
	raw, err := c.deps.Store.Get(ctx, config.CacheKey.DraftKey(c.userID, t.ID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Warn().Err(err).Msg("Failed to load draft")
		}
		return nil
	}
	var d model.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		c.log.Warn().Err(err).Msg("Discarding unreadable draft")
		return nil
	}
	if d.TestID != t.ID || d.RemainingSeconds <= 0 {
		return nil
	}
	return &d
}

func (c *Controller) restore(d *model.Draft) {
	for qid, v := range d.Answers {
		if _, ok := c.test.Question(qid); ok {
			c.answers[qid] = v
		}
	}
	for qid, on := range d.MarksForReview {
		if _, ok := c.test.Question(qid); ok && on {
			c.marks[qid] = true
		}
	}
	if d.RemainingSeconds < c.remaining {
		c.remaining = d.RemainingSeconds
	}
	c.record(model.LogEntry{Type: "draft-restored", Detail: strconv.Itoa(len(c.answers))})
}

// Preflight acquires the camera and microphone ahead of the start. A denied
// camera is not an error; it is reported through the returned status.
func (c *Controller) Preflight(ctx context.Context) (proctor.MediaStatus, error) {
	c.touch()
	var (
		gen    uint64
		cached *proctor.MediaStatus
		state  error
	)
	if err := c.do(func() {
		state = c.expect(model.SessionStatusPreflight)
		gen = c.gen
		if c.media != nil && c.media.Camera {
			m := *c.media
			cached = &m
		}
	}); err != nil {
		return proctor.MediaStatus{}, err
	}
	if state != nil {
		return proctor.MediaStatus{}, state
	}
	if cached != nil {
		return *cached, nil
	}

	status, acqErr := c.deps.Sensor.Acquire(ctx, c.deps.Target)
	if acqErr != nil {
		c.log.Warn().Err(acqErr).Msg("Media acquisition failed")
	}
	stale := false
	err := c.do(func() {
		if c.gen != gen {
			stale = true
			state = ErrNotReady
			return
		}
		if state = c.expect(model.SessionStatusPreflight); state != nil {
			return
		}
		c.applyMedia(status, acqErr)
	})
	if stale || err != nil {
		c.deps.Sensor.Release()
	}
	if err != nil {
		return proctor.MediaStatus{}, err
	}
	if state != nil {
		return proctor.MediaStatus{}, state
	}
	return status, nil
}

func (c *Controller) applyMedia(status proctor.MediaStatus, acqErr error) {
	c.media = &status
	c.mediaHeld = status.Camera
	camera, audio := status.Camera, status.Audio
	c.proctor.CameraAllowed = &camera
	c.proctor.AudioAllowed = &audio
	switch {
	case camera && audio:
		c.record(model.LogEntry{Type: "camera-start"})
	case camera:
		c.record(model.LogEntry{Type: "camera-start-no-audio"})
	default:
		e := model.LogEntry{Type: "camera-denied"}
		if acqErr != nil {
			e.Detail = acqErr.Error()
		}
		c.record(e)
	}
}

// Start begins the countdown and proctoring. Media is acquired first if the
// preflight check has not done so.
func (c *Controller) Start(ctx context.Context) error {
	if _, err := c.Preflight(ctx); err != nil {
		return err
	}
	var state error
	if err := c.do(func() {
		if state = c.expect(model.SessionStatusPreflight); state != nil {
			return
		}
		cameraOK := c.media != nil && c.media.Camera
		if !cameraOK && c.opts.RequireCamera {
			state = ErrCameraRequired
			return
		}
		c.begin(cameraOK)
	}); err != nil {
		return err
	}
	return state
}

func (c *Controller) begin(cameraOK bool) {
	c.status = model.SessionStatusRunning
	c.running = true
	c.record(model.LogEntry{Type: "start"})
	if !cameraOK {
		c.onViolation(c.ledger.Nuisance(model.ViolationCameraUnavailable, ""))
	}

	c.tasks = append(c.tasks, c.sched.Every(c.opts.TickInterval, c.tick))
	if cameraOK {
		c.sampling = true
		c.tasks = append(c.tasks, c.sched.Every(c.opts.FaceInterval, c.sampleFace))
		c.record(model.LogEntry{Type: "snapshot-auto-start"})
		if c.media.Audio {
			c.tasks = append(c.tasks, c.sched.Every(c.opts.NoiseInterval, c.sampleNoise))
		}
	}
	c.log.Info().Bool("camera", cameraOK).Int("remaining", c.remaining).Msg("Exam started")
	c.persistDraft()
}

// Leave abandons the exam without submitting. The draft survives so the
// candidate can resume later.
func (c *Controller) Leave() error {
	c.touch()
	return c.do(func() {
		c.log.Info().Msg("Session left")
		c.clear()
	})
}

// Reap submits a running exam on behalf of an absent candidate. It reports
// whether a submission happened.
func (c *Controller) Reap() bool {
	reaped := false
	_ = c.do(func() {
		if !c.running {
			return
		}
		c.record(model.LogEntry{Type: "reaped"})
		c.submit(model.SubmitReaped)
		reaped = true
	})
	return reaped
}

// Close stops the session and its loop after pending draft and result
// writes finish. It must not be called from a session callback.
func (c *Controller) Close() {
	_ = c.do(func() {
		c.closing = true
		c.stopProctoring()
	})
	c.awaitWrites()
	c.sched.Close()
	c.events.closeAll()
}

func (c *Controller) awaitWrites() {
	done := make(chan struct{})
	go func() {
		c.writes.Wait()
		close(done)
	}()
	t := time.NewTimer(writeTimeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		c.log.Warn().Dur("timeout", writeTimeout).Msg("Closed with store writes still pending")
	}
}

// ─── Candidate actions ──────────────────────────────────────────────────────

// SetAnswer records the answer to a question of the running exam.
func (c *Controller) SetAnswer(qid, value string) error {
	return c.act(func() error {
		if !c.running {
			return ErrNotRunning
		}
		if _, ok := c.test.Question(qid); !ok {
			return ErrQuestionUnknown
		}
		c.answers[qid] = value
		c.record(model.LogEntry{Type: "answer", QuestionID: qid})
		c.persistDraft()
		return nil
	})
}

// ToggleMark flips the review mark of a question and returns the new mark.
func (c *Controller) ToggleMark(qid string) (bool, error) {
	var marked bool
	err := c.act(func() error {
		if !c.running {
			return ErrNotRunning
		}
		if _, ok := c.test.Question(qid); !ok {
			return ErrQuestionUnknown
		}
		marked = !c.marks[qid]
		if marked {
			c.marks[qid] = true
		} else {
			delete(c.marks, qid)
		}
		c.record(model.LogEntry{Type: "mark", QuestionID: qid, Detail: strconv.FormatBool(marked)})
		c.persistDraft()
		return nil
	})
	return marked, err
}

// JumpTo moves the cursor to the question at index.
func (c *Controller) JumpTo(index int) error {
	return c.act(func() error {
		if !c.running {
			return ErrNotRunning
		}
		if index < 0 || index >= len(c.test.Questions) {
			return ErrIndexOutOfRange
		}
		c.index = index
		c.record(model.LogEntry{Type: "jump", Detail: strconv.Itoa(index)})
		return nil
	})
}

// Submit flushes pending answers and submits manually. Submitting a
// completed exam returns the existing result. An exam that has not started
// cannot be submitted.
func (c *Controller) Submit(pending map[string]string) (*model.Result, error) {
	var res *model.Result
	err := c.act(func() error {
		switch c.status {
		case model.SessionStatusIdle:
			return ErrNoTest
		case model.SessionStatusPreflight:
			return ErrNotRunning
		case model.SessionStatusCompleted:
			res = c.result
			return nil
		}
		for qid, v := range pending {
			if _, ok := c.test.Question(qid); ok {
				c.answers[qid] = v
				c.record(model.LogEntry{Type: "answer", QuestionID: qid})
			}
		}
		c.submit(model.SubmitManual)
		res = c.result
		return nil
	})
	return res, err
}

// RequestFullscreen asks the browser to enter fullscreen.
func (c *Controller) RequestFullscreen() error {
	return c.act(func() error {
		if c.status != model.SessionStatusPreflight && !c.running {
			return ErrNotRunning
		}
		c.publish(Event{Type: EventFullscreen, Fullscreen: boolPtr(true)})
		return nil
	})
}

// ExitFullscreen leaves fullscreen on the candidate's request, which is not
// a violation.
func (c *Controller) ExitFullscreen() error {
	return c.act(func() error {
		if c.status != model.SessionStatusPreflight && !c.running {
			return ErrNotRunning
		}
		c.proctor.IsFullscreen = false
		c.publish(Event{Type: EventFullscreen, Fullscreen: boolPtr(false)})
		return nil
	})
}

// FullscreenChanged applies a fullscreen transition observed by the browser.
// Leaving fullscreen unprompted during the exam is a violation.
func (c *Controller) FullscreenChanged(active bool) error {
	return c.act(func() error {
		if active {
			if !c.proctor.IsFullscreen {
				c.proctor.IsFullscreen = true
				c.record(model.LogEntry{Type: "fullscreen-enter"})
			}
			return nil
		}
		if !c.proctor.IsFullscreen {
			return nil
		}
		c.proctor.IsFullscreen = false
		if c.running {
			c.record(model.LogEntry{Type: "fullscreen-exit"})
			c.onViolation(c.ledger.FullscreenExit())
		}
		return nil
	})
}

// TabVisibility applies a page visibility change.
func (c *Controller) TabVisibility(hidden bool) error {
	return c.act(func() error {
		if !c.running {
			return ErrNotRunning
		}
		if !hidden {
			c.record(model.LogEntry{Type: "tab-visible"})
			return nil
		}
		c.record(model.LogEntry{Type: "tab-hidden"})
		c.onViolation(c.ledger.TabHidden())
		return nil
	})
}

// AddViolation records a violation detected by the UI.
func (c *Controller) AddViolation(t model.ViolationType, message string) error {
	return c.act(func() error {
		if !c.running {
			return ErrNotRunning
		}
		c.record(model.LogEntry{Type: "violation-" + string(t)})
		c.onViolation(c.ledger.Manual(t, message))
		return nil
	})
}

func (c *Controller) act(fn func() error) error {
	c.touch()
	var out error
	if err := c.do(func() { out = fn() }); err != nil {
		return err
	}
	return out
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// View returns a snapshot of the session for rendering. Correct answers and
// reference answers are never included.
func (c *Controller) View() (model.SessionView, error) {
	var v model.SessionView
	err := c.do(func() {
		v = model.SessionView{
			SessionID:        c.id,
			UserID:           c.userID,
			Status:           c.status,
			Test:             c.candidate,
			CurrentIndex:     c.index,
			Answers:          copyMap(c.answers),
			MarksForReview:   copyMap(c.marks),
			RemainingSeconds: c.remaining,
			Running:          c.running,
			Proctor:          c.proctor.Clone(),
			LogSize:          len(c.sessionLog),
		}
	})
	return v, err
}

// Result returns the result of the completed exam.
func (c *Controller) Result() (*model.Result, error) {
	var res *model.Result
	if err := c.do(func() { res = c.result }); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrNotCompleted
	}
	return res, nil
}

// ─── Loop internals ─────────────────────────────────────────────────────────

func (c *Controller) expect(want model.SessionStatus) error {
	switch c.status {
	case want:
		return nil
	case model.SessionStatusIdle:
		return ErrNoTest
	default:
		return ErrNotReady
	}
}

// clear resets the session to idle. Scheduled work from the previous exam
// becomes stale through the generation bump.
func (c *Controller) clear() {
	c.stopProctoring()
	if c.autoSubmit != nil {
		c.autoSubmit.Cancel()
		c.autoSubmit = nil
	}
	c.gen++
	c.status = model.SessionStatusIdle
	c.test = nil
	c.candidate = nil
	c.index = 0
	c.answers = make(map[string]string)
	c.marks = make(map[string]bool)
	c.remaining = 0
	c.proctor = model.NewProctorState()
	c.ledger = ledger.New(c.opts.Policy, &c.proctor, c.sched.Now)
	c.sessionLog = []model.LogEntry{}
	c.result = nil
	c.media = nil
}

// stopProctoring cancels periodic work and releases media. Safe to repeat.
func (c *Controller) stopProctoring() {
	c.running = false
	for _, t := range c.tasks {
		t.Cancel()
	}
	c.tasks = nil
	if c.sampling {
		c.sampling = false
		c.record(model.LogEntry{Type: "snapshot-auto-stop"})
	}
	if c.deps.Sensor != nil {
		c.deps.Sensor.Release()
	}
	if c.mediaHeld {
		c.mediaHeld = false
		c.record(model.LogEntry{Type: "camera-stop"})
	}
}

func (c *Controller) tick() {
	if !c.running {
		return
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining <= 0 {
		c.remaining = 0
		c.record(model.LogEntry{Type: "auto-submit"})
		c.submit(model.SubmitTimeout)
		return
	}
	c.publish(Event{Type: EventTick, Remaining: c.remaining, Warnings: c.proctor.WarningCount})
	c.persistDraft()
}

func (c *Controller) sampleFace() {
	if !c.running {
		return
	}
	gen, sensor := c.gen, c.deps.Sensor
	c.sched.Background(func(ctx context.Context) func() {
		reading, err := sensor.SampleFace(ctx)
		return func() {
			if c.gen != gen || !c.running {
				return
			}
			if err != nil {
				c.log.Debug().Err(err).Msg("Face sample skipped")
				return
			}
			faces := reading.Count
			c.ledger.Snapshot(faces)
			c.record(model.LogEntry{Type: "snapshot", Faces: &faces})
			c.onViolation(c.ledger.Face(reading.Status, reading.Count))
		}
	})
}

func (c *Controller) sampleNoise() {
	if !c.running {
		return
	}
	gen, sensor := c.gen, c.deps.Sensor
	c.sched.Background(func(ctx context.Context) func() {
		level, err := sensor.SampleNoise(ctx)
		return func() {
			if c.gen != gen || !c.running {
				return
			}
			if err != nil {
				c.log.Debug().Err(err).Msg("Noise sample skipped")
				return
			}
			c.onViolation(c.ledger.Noise(level))
		}
	})
}

func (c *Controller) onViolation(out ledger.Outcome) {
	if out.Violation == nil {
		return
	}
	c.publish(Event{
		Type:      EventViolation,
		Remaining: c.remaining,
		Warnings:  c.proctor.WarningCount,
		Violation: out.Violation,
		Warned:    out.Warned,
		Message:   out.Violation.Message,
	})
	if out.Warned {
		c.log.Warn().Str("type", string(out.Violation.Type)).Int("warnings", c.proctor.WarningCount).Msg("Proctoring warning")
	}
	if out.Terminate && c.running {
		c.terminate()
	}
}

func (c *Controller) terminate() {
	c.record(model.LogEntry{Type: "auto-terminate-warnings", Detail: strconv.Itoa(c.proctor.WarningCount)})
	c.log.Warn().Int("warnings", c.proctor.WarningCount).Msg("Warning limit reached, auto-submitting")
	c.publish(Event{
		Type:      EventTerminated,
		Remaining: c.remaining,
		Warnings:  c.proctor.WarningCount,
		Message: fmt.Sprintf("Exam terminated due to %d violations. Your answers have been auto-submitted.",
			c.opts.Policy.MaxWarnings),
	})
	gen := c.gen
	c.autoSubmit = c.sched.After(c.opts.AutoSubmitDelay, func() {
		if c.gen == gen {
			c.submit(model.SubmitViolations)
		}
	})
}

// submit ends the exam and scores it. Only the first call per exam has an
// effect.
func (c *Controller) submit(reason model.SubmitReason) {
	if c.test == nil || c.status == model.SessionStatusSubmitting || c.status == model.SessionStatusCompleted {
		return
	}
	c.status = model.SessionStatusSubmitting
	if c.autoSubmit != nil {
		c.autoSubmit.Cancel()
		c.autoSubmit = nil
	}
	c.stopProctoring()
	if c.proctor.IsFullscreen {
		c.proctor.IsFullscreen = false
		c.publish(Event{Type: EventFullscreen, Fullscreen: boolPtr(false)})
	}
	c.record(model.LogEntry{Type: "end"})

	res, err := scoreSafely(scoreInput{
		SessionID: c.id,
		UserID:    c.userID,
		Reason:    reason,
		Test:      c.test,
		Answers:   copyMap(c.answers),
		Remaining: c.remaining,
		Proctor:   c.proctor.Clone(),
		Log:       append([]model.LogEntry(nil), c.sessionLog...),
		Now:       c.sched.Now(),
	})
	if err != nil {
		c.log.Error().Err(err).Msg("Scoring failed, issuing fallback result")
	}
	c.record(model.LogEntry{Type: "submit", Detail: string(reason)})
	c.result = res
	c.status = model.SessionStatusCompleted

	c.log.Info().
		Str("test_id", c.test.ID).
		Str("reason", string(reason)).
		Int("overall", res.OverallScore).
		Int("warnings", c.proctor.WarningCount).
		Msg("Exam submitted")
	c.publish(Event{Type: EventCompleted, Warnings: c.proctor.WarningCount, Result: res})
	c.persistResult(res, copyMap(c.answers), c.proctor.Violations)
}

// ─── Persistence ────────────────────────────────────────────────────────────

// persistDraft writes the draft off the loop. Writes are sequenced so an
// older draft never overwrites a newer one or resurrects a submitted exam.
func (c *Controller) persistDraft() {
	if c.test == nil {
		return
	}
	c.draftSeq++
	seq := c.draftSeq
	key := config.CacheKey.DraftKey(c.userID, c.test.ID)
	d := model.Draft{
		TestID:           c.test.ID,
		Answers:          copyMap(c.answers),
		MarksForReview:   copyMap(c.marks),
		RemainingSeconds: c.remaining,
		Timestamp:        c.sched.Now(),
	}
	c.write(func(ctx context.Context) {
		c.persistMu.Lock()
		defer c.persistMu.Unlock()
		if seq <= c.persisted {
			return
		}
		raw, err := json.Marshal(d)
		if err != nil {
			c.log.Error().Err(err).Msg("Failed to encode draft")
			return
		}
		if err := c.deps.Store.SetAll(ctx, map[string][]byte{key: raw}); err != nil {
			c.log.Warn().Err(err).Msg("Failed to save draft")
			return
		}
		c.persisted = seq
	})
}

func (c *Controller) persistResult(res *model.Result, answers map[string]string, violations []model.Violation) {
	seq := c.draftSeq
	draftKey := config.CacheKey.DraftKey(c.userID, res.TestID)
	resultKey := config.CacheKey.ResultKey(c.userID, res.TestID)
	violations = append([]model.Violation(nil), violations...)

	c.write(func(ctx context.Context) {
		c.persistMu.Lock()
		if seq > c.persisted {
			c.persisted = seq
		}
		if err := c.deps.Store.Remove(ctx, draftKey); err != nil {
			c.log.Warn().Err(err).Msg("Failed to clear draft")
		}
		c.persistMu.Unlock()

		if raw, err := json.Marshal(res); err == nil {
			if err := c.deps.Store.Set(ctx, resultKey, raw); err != nil {
				c.log.Warn().Err(err).Msg("Failed to cache result")
			}
		}

		sub := &model.Submission{
			TestID:      res.TestID,
			Answers:     answers,
			SessionID:   c.id,
			UserID:      c.userID,
			SubmittedAt: res.SubmittedAt,
		}
		if err := c.deps.Forwarder.Submission(ctx, sub); err != nil {
			c.log.Warn().Err(err).Msg("Failed to forward submission")
		}
		if err := c.deps.Forwarder.Result(ctx, res); err != nil {
			c.log.Warn().Err(err).Msg("Failed to forward result")
		}
		if len(violations) > 0 {
			events := make([]*model.ProctorEvent, 0, len(violations))
			for _, v := range violations {
				events = append(events, &model.ProctorEvent{
					SessionID:  c.id,
					UserID:     c.userID,
					TestID:     res.TestID,
					Type:       v.Type,
					Message:    v.Message,
					Warned:     !ledger.IsNuisance(v.Type),
					OccurredAt: v.Timestamp,
				})
			}
			if err := c.deps.Forwarder.ProctorEvents(ctx, events); err != nil {
				c.log.Warn().Err(err).Msg("Failed to forward proctor events")
			}
		}
	})
}

// write runs job off the loop. Its context outlives the loop so a write
// issued just before Close still lands; Close waits for it.
func (c *Controller) write(job func(ctx context.Context)) {
	if c.closing {
		return
	}
	c.writes.Add(1)
	c.sched.Background(func(ctx context.Context) func() {
		defer c.writes.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		job(ctx)
		return nil
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (c *Controller) record(e model.LogEntry) {
	e.Timestamp = c.sched.Now()
	c.sessionLog = append(c.sessionLog, e)
}

func (c *Controller) publish(e Event) {
	if dropped := c.events.publish(e); dropped > 0 {
		c.log.Debug().Str("event", string(e.Type)).Int("dropped", dropped).Msg("Slow subscriber missed an event")
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
