package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sagerock/ai-law-research/internal/application/citator"
	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// CitatorHandler serves citation resolution, badges and treatment panels.
type CitatorHandler struct {
	svc citator.Service
}

func NewCitatorHandler(svc citator.Service) *CitatorHandler {
	return &CitatorHandler{svc: svc}
}

// ResolveRequest is the body of POST /citations/resolve.
type ResolveRequest struct {
	Text     string `json:"text"`
	SourceID string `json:"source_id,omitempty"`
}

// BriefCheckRequest is the body of POST /briefcheck.
type BriefCheckRequest struct {
	Text string `json:"text"`
}

// TreatmentsResponse wraps the treatment history of a case.
type TreatmentsResponse struct {
	CaseID     string                     `json:"case_id"`
	Treatments []citation.TreatmentRecord `json:"treatments"`
}

func (h *CitatorHandler) RegisterRoutes(api gin.IRouter, heavy ...gin.HandlerFunc) {
	api.POST("/citations/resolve", chain(heavy, h.Resolve)...)
	api.POST("/briefcheck", chain(heavy, h.BriefCheck)...)
	api.GET("/stats", h.Stats)

	cases := api.Group("/cases/:id")
	cases.GET("", h.GetCase)
	cases.GET("/badge", h.GetBadge)
	cases.GET("/treatments", h.GetTreatments)
	cases.GET("/citator", h.Citator)
	cases.GET("/citations", h.Citations)
}

// Resolve handles POST /api/v1/citations/resolve. Nothing is persisted.
func (h *CitatorHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeAppError(c, errors.InvalidParam("text is required"))
		return
	}
	res, err := h.svc.ResolveCitations(c.Request.Context(), req.SourceID, req.Text)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetCase handles GET /api/v1/cases/:id.
func (h *CitatorHandler) GetCase(c *gin.Context) {
	view, err := h.svc.GetCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Stats handles GET /api/v1/stats.
func (h *CitatorHandler) Stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *CitatorHandler) GetBadge(c *gin.Context) {
	view, err := h.svc.GetBadge(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CitatorHandler) GetTreatments(c *gin.Context) {
	id := c.Param("id")
	recs, err := h.svc.GetTreatments(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, TreatmentsResponse{CaseID: id, Treatments: recs})
}

func (h *CitatorHandler) Citator(c *gin.Context) {
	sum, err := h.svc.Citator(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// Citations handles GET /api/v1/cases/:id/citations?limit=N.
func (h *CitatorHandler) Citations(c *gin.Context) {
	panel, err := h.svc.CaseCitations(c.Request.Context(), c.Param("id"), queryInt(c, "limit", 0, 500))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, panel)
}

func (h *CitatorHandler) BriefCheck(c *gin.Context) {
	var req BriefCheckRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.svc.BriefCheck(c.Request.Context(), req.Text)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

//Personal.AI order the ending
