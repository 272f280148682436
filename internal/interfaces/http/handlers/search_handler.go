package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagerock/ai-law-research/internal/application/search"
	searchdomain "github.com/sagerock/ai-law-research/internal/domain/search"
)

// SearchHandler serves hybrid case search.
type SearchHandler struct {
	svc search.Service
}

func NewSearchHandler(svc search.Service) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// SettingsResponse reports the fusion parameters in force.
type SettingsResponse struct {
	K              int                  `json:"k"`
	Weights        searchdomain.Weights `json:"weights"`
	CandidateLimit int                  `json:"candidate_limit"`
	ResultLimit    int                  `json:"result_limit"`
	DeadlineMillis int64                `json:"deadline_ms"`
}

func (h *SearchHandler) RegisterRoutes(api gin.IRouter, heavy ...gin.HandlerFunc) {
	api.POST("/search", chain(heavy, h.Search)...)
	api.GET("/search/settings", h.Settings)
}

// Search handles POST /api/v1/search. Weights omitted from the body use the
// configured defaults.
func (h *SearchHandler) Search(c *gin.Context) {
	var q searchdomain.Query
	if !bindJSON(c, &q) {
		return
	}
	resp, err := h.svc.Search(c.Request.Context(), q)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SearchHandler) Settings(c *gin.Context) {
	cfg := h.svc.Settings()
	c.JSON(http.StatusOK, SettingsResponse{
		K:              cfg.K,
		Weights:        cfg.Weights,
		CandidateLimit: cfg.CandidateLimit,
		ResultLimit:    cfg.ResultLimit,
		DeadlineMillis: cfg.Deadline.Milliseconds(),
	})
}

//Personal.AI order the ending
