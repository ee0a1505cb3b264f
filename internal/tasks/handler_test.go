package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telbill/internal/logger"
	"telbill/internal/pipeline"
)

func setupRouter(store pipeline.TaskStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(store, logger.NopLogger()).RegisterRoutes(router)
	return router
}

func TestGetTask(t *testing.T) {
	store := NewMemoryRepository()
	jobID := uuid.NewString()
	_, err := store.Create(context.Background(), pipeline.NewTask(jobID, "RegistryService"))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	setupRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/task/"+jobID, nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, jobID, body["job_id"])
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "RegistryService", body["service"])
}

func TestGetTask_NotFound(t *testing.T) {
	w := httptest.NewRecorder()
	setupRouter(NewMemoryRepository()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/task/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "TASK_NOT_FOUND")
}
