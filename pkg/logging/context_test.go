package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields_OrderAndSkipEmpty(t *testing.T) {
	ctx := context.Background()
	ctx = WithJobID(ctx, "job-1")
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithServiceName(ctx, "")

	fields := GetLogFields(ctx)

	assert.Equal(t, []interface{}{"trace_id", "trace-1", "job_id", "job-1"}, fields)
}

func TestGetters_EmptyContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetJobID(ctx))
	assert.Empty(t, GetTrigger(ctx))
	assert.Empty(t, GetServiceName(ctx))
}

func TestWithTrigger(t *testing.T) {
	ctx := WithTrigger(context.Background(), "registry-service")
	assert.Equal(t, "registry-service", GetTrigger(ctx))
}
