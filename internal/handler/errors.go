package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-proctor/internal/catalog"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
)

// errorCode maps domain errors to an HTTP status and API error code.
func errorCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, session.ErrSessionForbidden):
		return http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, catalog.ErrTestNotFound):
		return http.StatusNotFound, response.ErrTestNotFound
	case errors.Is(err, service.ErrResultNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, session.ErrNoTest):
		return http.StatusConflict, response.ErrNoTestSelected
	case errors.Is(err, session.ErrNotRunning):
		return http.StatusConflict, response.ErrExamNotRunning
	case errors.Is(err, session.ErrNotReady):
		return http.StatusConflict, response.ErrExamNotReady
	case errors.Is(err, session.ErrNotCompleted):
		return http.StatusConflict, response.ErrExamNotSubmitted
	case errors.Is(err, session.ErrCameraRequired):
		return http.StatusPreconditionFailed, response.ErrCameraRequired
	case errors.Is(err, session.ErrQuestionUnknown):
		return http.StatusNotFound, response.ErrQuestionUnknown
	case errors.Is(err, session.ErrIndexOutOfRange):
		return http.StatusBadRequest, response.ErrIndexOutOfRange
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone, response.ErrSessionClosed
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

func failErr(c *gin.Context, err error) {
	status, code := errorCode(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}
