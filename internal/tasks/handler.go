package tasks

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"telbill/internal/logger"
	"telbill/internal/pipeline"
	apperrors "telbill/pkg/errors"
)

type Handler struct {
	store  pipeline.TaskStore
	logger logger.Logger
}

func NewHandler(store pipeline.TaskStore, log logger.Logger) *Handler {
	return &Handler{store: store, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.GET("/task/:job_id", h.GetTask)
}

// GetTask godoc
// @Summary      Get a task
// @Description  Get the lifecycle record of a job by its id
// @Tags         tasks
// @Produce      json
// @Param        job_id  path      string  true  "Job ID"
// @Success      200     {object}  pipeline.Task
// @Failure      404     {object}  map[string]interface{}
// @Failure      500     {object}  map[string]interface{}
// @Router       /task/{job_id} [get]
func (h *Handler) GetTask(c *gin.Context) {
	jobID := c.Param("job_id")

	task, err := h.store.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, pipeline.ErrTaskNotFound) {
			err = apperrors.ErrTaskNotFound.WithDetail("job_id", jobID)
		} else {
			h.logger.ErrorwCtx(c.Request.Context(), "Failed to load task", "error", err, "job_id", jobID)
		}
		c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, task)
}
