package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-proctor/internal/catalog"
	"github.com/stemsi/exstem-proctor/internal/response"
)

// CatalogHandler serves the companies and their mock tests.
type CatalogHandler struct {
	source catalog.Source
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(source catalog.Source) *CatalogHandler {
	return &CatalogHandler{source: source}
}

// ListCompanies godoc
// GET /api/v1/companies
// Returns companies with their test metadata. Questions are not included.
func (h *CatalogHandler) ListCompanies(c *gin.Context) {
	companies, err := h.source.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"companies": companies})
}

// GetTest godoc
// GET /api/v1/tests/:test_id
// Returns one test without correct answers or reference answers.
func (h *CatalogHandler) GetTest(c *gin.Context) {
	t, err := h.source.Get(c.Request.Context(), c.Param("test_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": t.ForCandidate()})
}
