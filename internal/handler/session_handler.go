package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// SessionHandler drives a candidate's exam session over HTTP.
type SessionHandler struct {
	sessions *service.SessionService
	results  *service.ResultService
}

// NewSessionHandler creates a new SessionHandler. results may be nil when no
// archive is configured.
func NewSessionHandler(sessions *service.SessionService, results *service.ResultService) *SessionHandler {
	return &SessionHandler{sessions: sessions, results: results}
}

// owned resolves the :id session for the authenticated candidate, writing
// the error response when it cannot.
func (h *SessionHandler) owned(c *gin.Context) (*session.Entry, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	entry, err := h.sessions.Get(c.Param("id"), claims.UserID)
	if err != nil {
		failErr(c, err)
		return nil, false
	}
	return entry, true
}

func (h *SessionHandler) view(c *gin.Context, entry *session.Entry, status int) {
	v, err := entry.Controller.View()
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, status, gin.H{"session": v})
}

// Create godoc
// POST /api/v1/sessions
// Opens a session for a test. A saved draft for the same test is restored.
func (h *SessionHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SelectTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	entry, err := h.sessions.Create(c.Request.Context(), claims.UserID, req.TestID)
	if err != nil {
		failErr(c, err)
		return
	}
	h.view(c, entry, http.StatusCreated)
}

// Get godoc
// GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	entry, ok := h.owned(c)
	if !ok {
		return
	}
	h.view(c, entry, http.StatusOK)
}

// Preflight godoc
// POST /api/v1/sessions/:id/preflight
// Asks the connected browser for camera and microphone access. The proctor
// stream must be open first.
func (h *SessionHandler) Preflight(c *gin.Context) {
	entry, ok := h.owned(c)
	if !ok {
		return
	}
	status, err := entry.Controller.Preflight(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"media": status})
}

// Start godoc
// POST /api/v1/sessions/:id/start
func (h *SessionHandler) Start(c *gin.Context) {
	entry, ok := h.owned(c)
	if !ok {
		return
	}
	if err := entry.Controller.Start(c.Request.Context()); err != nil {
		failErr(c, err)
		return
	}
	h.view(c, entry, http.StatusOK)
}

// SetAnswer godoc
// PUT /api/v1/sessions/:id/answers/:question_id
func (h *SessionHandler) SetAnswer(c *gin.Context) {
	entry, ok := h.owned(c)
	if !ok {
		return
	}
	var req model.SetAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := entry.Controller.SetAnswer(c.Param("question_id"), req.Value); err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ToggleMark godoc
// POST /api/v1/sessions/:id/marks/:question_id
func (h *SessionHandler) ToggleMark(c *gin.Context) {
	entry, ok := h.owned(c)
	if !ok {
		return
	}
	marked, err := entry.Controller.ToggleMark(c.Param("question_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"marked": marked})
}

// Jump godoc
// POST /api/v1/sessions/:id/jump
func (h *SessionHandler) Jump(c *gin.Context) {
	entry, ok := h.owned(c)
	if !ok {
		return
	}
	var req model.JumpRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := entry.Controller.JumpTo(*req.Index); err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"current_index": *req.Index})
}

// AddViolation godoc
// POST /api/v1/sessions/:id/violations
// Records a violation detected by the page, such as a copy attempt.
func (h *SessionHandler) AddViolation(c *gin.Context) {
	entry, ok := h.owned(c)
	if !ok {
		return
	}
	var req model.AddViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := entry.Controller.AddViolation(model.ViolationType(req.Type), req.Message); err != nil {
		failErr(c, err)
		return
	}
	h.view(c, entry, http.StatusOK)
}

// FullscreenChanged godoc
// POST /api/v1/sessions/:id/fullscreen
// Reports a fullscreen transition observed by the browser.
func (h *SessionHandler) FullscreenChanged(c *gin.Context) {
	entry, ok := h.owned(c)
	if !ok {
		return
	}
	var req model.FullscreenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := entry.Controller.FullscreenChanged(*req.Active); err != nil {
		failErr(c, err)
		return
	}
	h.view(c, entry, http.StatusOK)
}

// EnterFullscreen godoc
// POST /api/v1/sessions/:id/fullscreen/enter
func (h *SessionHandler) EnterFullscreen(c *gin.Context) {
	entry, ok := h.owned(c)
	if !ok {
		return
	}
	if err := entry.Controller.RequestFullscreen(); err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{})
}

// ExitFullscreen godoc
// POST /api/v1/sessions/:id/fullscreen/exit
func (h *SessionHandler) ExitFullscreen(c *gin.Context) {
	entry, ok := h.owned(c)
	if !ok {
		return
	}
	if err := entry.Controller.ExitFullscreen(); err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{})
}

// Visibility godoc
// POST /api/v1/sessions/:id/visibility
func (h *SessionHandler) Visibility(c *gin.Context) {
	entry, ok := h.owned(c)
	if !ok {
		return
	}
	var req model.VisibilityRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := entry.Controller.TabVisibility(*req.Hidden); err != nil {
		failErr(c, err)
		return
	}
	h.view(c, entry, http.StatusOK)
}

// Submit godoc
// POST /api/v1/sessions/:id/submit
// Grades the exam. Submitting again returns the same result.
func (h *SessionHandler) Submit(c *gin.Context) {
	entry, ok := h.owned(c)
	if !ok {
		return
	}
	var req model.SubmitRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}
	res, err := entry.Controller.Submit(req.Answers)
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// Result godoc
// GET /api/v1/sessions/:id/result
// Returns the result of a completed session. Once the session is gone the
// archived copy is served.
func (h *SessionHandler) Result(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	entry, err := h.sessions.Get(c.Param("id"), claims.UserID)
	if errors.Is(err, session.ErrSessionNotFound) && h.results != nil {
		res, aerr := h.results.Get(c.Request.Context(), c.Param("id"), claims.UserID)
		if aerr != nil {
			failErr(c, aerr)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"result": res})
		return
	}
	if err != nil {
		failErr(c, err)
		return
	}

	res, err := entry.Controller.Result()
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// Leave godoc
// DELETE /api/v1/sessions/:id
// Discards the session. An unfinished exam keeps its draft.
func (h *SessionHandler) Leave(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	if err := h.sessions.Leave(c.Param("id"), claims.UserID); err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}
