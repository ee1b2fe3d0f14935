package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/exstem-proctor/internal/catalog"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{session.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
		{session.ErrSessionForbidden, http.StatusForbidden, response.ErrForbidden},
		{fmt.Errorf("%w: acme:x", catalog.ErrTestNotFound), http.StatusNotFound, response.ErrTestNotFound},
		{service.ErrResultNotFound, http.StatusNotFound, response.ErrNotFound},
		{session.ErrNoTest, http.StatusConflict, response.ErrNoTestSelected},
		{session.ErrNotRunning, http.StatusConflict, response.ErrExamNotRunning},
		{session.ErrNotReady, http.StatusConflict, response.ErrExamNotReady},
		{session.ErrNotCompleted, http.StatusConflict, response.ErrExamNotSubmitted},
		{session.ErrCameraRequired, http.StatusPreconditionFailed, response.ErrCameraRequired},
		{session.ErrQuestionUnknown, http.StatusNotFound, response.ErrQuestionUnknown},
		{session.ErrIndexOutOfRange, http.StatusBadRequest, response.ErrIndexOutOfRange},
		{session.ErrClosed, http.StatusGone, response.ErrSessionClosed},
		{errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			status, code := errorCode(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
