package calls

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"telbill/internal/constants"
	"telbill/internal/logger"
	"telbill/internal/pipeline"
	apperrors "telbill/pkg/errors"
	"telbill/pkg/models"
)

const maxEventBytes = 64 << 10

type Handler struct {
	tasks     pipeline.TaskStore
	publisher pipeline.Publisher
	logger    logger.Logger
}

func NewHandler(tasks pipeline.TaskStore, publisher pipeline.Publisher, log logger.Logger) *Handler {
	return &Handler{tasks: tasks, publisher: publisher, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.POST("/registries", h.CreateRegistry)
}

type EnqueuedResponse struct {
	JobID  string              `json:"job_id"`
	Status pipeline.TaskStatus `json:"status"`
}

// CreateRegistry godoc
// @Summary      Ingest a call event
// @Description  Enqueue one start or stop call record. Validation happens asynchronously; follow the job through /task/{job_id}.
// @Tags         registries
// @Accept       json
// @Produce      json
// @Param        event  body      Event  true  "Call event"
// @Success      202    {object}  EnqueuedResponse
// @Failure      400    {object}  map[string]interface{}
// @Failure      503    {object}  map[string]interface{}
// @Router       /registries [post]
func (h *Handler) CreateRegistry(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, apperrors.ToErrorResponse(apperrors.ErrValidation.WithCause(err)))
		return
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil || probe == nil {
		c.JSON(http.StatusBadRequest, apperrors.ToErrorResponse(
			apperrors.ErrValidation.WithMessage("Invalid data. Expected a JSON object."),
		))
		return
	}

	job := models.NewJob(constants.RegistryTrigger, string(body))

	task, err := h.tasks.Create(ctx, pipeline.NewTask(job.ID, constants.RegistryServiceName))
	if err != nil {
		h.fail(c, "Failed to create task", err)
		return
	}

	if err := h.publisher.Publish(ctx, job); err != nil {
		result, _ := json.Marshal(map[string][]string{"non_field_errors": {"could not enqueue job"}})
		if _, terr := h.tasks.Transition(ctx, job.ID, []pipeline.TaskStatus{pipeline.TaskQueued}, pipeline.TaskFailed, result); terr != nil {
			h.logger.WarnwCtx(ctx, "Failed to mark unpublished task", "error", terr, "job_id", job.ID)
		}
		h.fail(c, "Failed to enqueue job", err)
		return
	}

	c.JSON(http.StatusAccepted, EnqueuedResponse{JobID: task.JobID, Status: task.Status})
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), msg, "error", err)
	appErr := apperrors.ErrServiceUnavailable.WithCause(err)
	c.JSON(appErr.Status, apperrors.ToErrorResponse(appErr))
}
