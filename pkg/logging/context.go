package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	JobIDKey       = "job_id"
	TriggerKey     = "trigger"
	ServiceNameKey = "service_name"
)

type contextKey string

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKey(TraceIDKey), traceID)
}

func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, contextKey(JobIDKey), jobID)
}

func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, contextKey(TriggerKey), trigger)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, contextKey(ServiceNameKey), serviceName)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetJobID(ctx context.Context) string {
	return stringValue(ctx, JobIDKey)
}

func GetTrigger(ctx context.Context) string {
	return stringValue(ctx, TriggerKey)
}

func GetServiceName(ctx context.Context) string {
	return stringValue(ctx, ServiceNameKey)
}

func stringValue(ctx context.Context, key string) string {
	if v, ok := ctx.Value(contextKey(key)).(string); ok {
		return v
	}
	return ""
}

// GetLogFields returns the context values as zap key/value pairs, skipping empty ones.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	for _, key := range []string{TraceIDKey, JobIDKey, TriggerKey, ServiceNameKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}

	return fields
}
