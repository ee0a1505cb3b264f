package models

import (
	"fmt"

	"github.com/google/uuid"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateJob checks the envelope itself, never the message it carries.
func ValidateJob(job *Job) error {
	if job == nil {
		return &ValidationError{
			Field:   "job",
			Message: "job cannot be nil",
		}
	}

	if job.ID == "" {
		return &ValidationError{
			Field:   "job_id",
			Message: "job ID is required",
		}
	}

	if _, err := uuid.Parse(job.ID); err != nil {
		return &ValidationError{
			Field:   "job_id",
			Message: fmt.Sprintf("job ID must be a UUID: %v", err),
		}
	}

	if job.Trigger == "" {
		return &ValidationError{
			Field:   "trigger",
			Message: "job trigger is required",
		}
	}

	if job.Message == "" {
		return &ValidationError{
			Field:   "message",
			Message: "job message is required",
		}
	}

	return nil
}
