package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagerock/ai-law-research/internal/application/ingestion"
	ingestdomain "github.com/sagerock/ai-law-research/internal/domain/ingestion"
)

// IngestionHandler starts and inspects bulk ingestion jobs.
type IngestionHandler struct {
	svc ingestion.Service
}

func NewIngestionHandler(svc ingestion.Service) *IngestionHandler {
	return &IngestionHandler{svc: svc}
}

// CreateJobRequest starts a job. With Wait the call blocks until the job
// reaches a terminal status.
type CreateJobRequest struct {
	FeedURI   string `json:"feed_uri"`
	RetryOf   string `json:"retry_of,omitempty"`
	Requester string `json:"requester,omitempty"`
	Wait      bool   `json:"wait,omitempty"`
}

type JobListResponse struct {
	Jobs []*ingestdomain.Job `json:"jobs"`
}

func (h *IngestionHandler) RegisterRoutes(api gin.IRouter) {
	jobs := api.Group("/ingestion/jobs")
	jobs.POST("", h.CreateJob)
	jobs.GET("", h.ListJobs)
	jobs.GET("/:id", h.GetJob)
	jobs.POST("/:id/cancel", h.CancelJob)

	api.DELETE("/cases/:id", h.DeleteCase)
}

// CreateJob handles POST /api/v1/ingestion/jobs: 202 with the pending job,
// or 200 with the finished job when wait is set.
func (h *IngestionHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if !bindJSON(c, &req) {
		return
	}
	r := ingestion.Request{FeedURI: req.FeedURI, RetryOf: req.RetryOf, Requester: req.Requester}
	if req.Wait {
		job, err := h.svc.RunJob(c.Request.Context(), r)
		if err != nil {
			writeAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
		return
	}
	job, err := h.svc.Submit(c.Request.Context(), r)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.Header("Location", "/api/v1/ingestion/jobs/"+job.ID)
	c.JSON(http.StatusAccepted, job)
}

func (h *IngestionHandler) GetJob(c *gin.Context) {
	job, err := h.svc.GetJobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *IngestionHandler) ListJobs(c *gin.Context) {
	jobs, err := h.svc.ListJobs(c.Request.Context(), queryInt(c, "limit", 20, 200))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, JobListResponse{Jobs: jobs})
}

func (h *IngestionHandler) CancelJob(c *gin.Context) {
	if err := h.svc.CancelJob(c.Request.Context(), c.Param("id")); err != nil {
		writeAppError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *IngestionHandler) DeleteCase(c *gin.Context) {
	if err := h.svc.DeleteCase(c.Request.Context(), c.Param("id")); err != nil {
		writeAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

//Personal.AI order the ending
