package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/subledger/backend/internal/infrastructure/scheduler"
	"github.com/subledger/backend/internal/interfaces/http/dto"
)

// JobRunner is the part of the scheduler the operations API needs
type JobRunner interface {
	Jobs() []scheduler.JobInfo
	RunNow(ctx context.Context, name string) (*scheduler.JobRun, error)
	History(name string) ([]scheduler.JobRun, error)
}

// JobHandler lists and triggers the periodic ledger jobs
type JobHandler struct {
	BaseHandler
	runner JobRunner
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(runner JobRunner) *JobHandler {
	return &JobHandler{runner: runner}
}

// List godoc
// @Summary  List registered jobs with their next and last run
// @Tags     jobs
// @Router   /jobs [get]
func (h *JobHandler) List(c *gin.Context) {
	h.Success(c, h.runner.Jobs())
}

// Run godoc
// @Summary  Run a job now and wait for its report
// @Tags     jobs
// @Router   /jobs/{name}/run [post]
func (h *JobHandler) Run(c *gin.Context) {
	run, err := h.runner.RunNow(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.jobError(c, err)
		return
	}
	h.Success(c, run)
}

// History godoc
// @Summary  List the recent runs of a job, newest first
// @Tags     jobs
// @Router   /jobs/{name}/runs [get]
func (h *JobHandler) History(c *gin.Context) {
	runs, err := h.runner.History(c.Param("name"))
	if err != nil {
		h.jobError(c, err)
		return
	}
	h.Success(c, runs)
}

func (h *JobHandler) jobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		h.NotFound(c, err.Error())
	case errors.Is(err, scheduler.ErrJobAlreadyRunning):
		h.Conflict(c, err.Error())
	default:
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, err.Error())
	}
}
