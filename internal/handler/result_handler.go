package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// ResultHandler serves archived results.
type ResultHandler struct {
	results *service.ResultService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(results *service.ResultService) *ResultHandler {
	return &ResultHandler{results: results}
}

// History godoc
// GET /api/v1/results?limit=20
func (h *ResultHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"limit": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	list, err := h.results.History(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": list})
}

// Get godoc
// GET /api/v1/results/:session_id
func (h *ResultHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	res, err := h.results.Get(c.Request.Context(), c.Param("session_id"), claims.UserID)
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// Events godoc
// GET /api/v1/results/:session_id/events
// Returns the archived violation log of a finished session.
func (h *ResultHandler) Events(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	events, err := h.results.Events(c.Request.Context(), c.Param("session_id"), claims.UserID)
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"events": events})
}
