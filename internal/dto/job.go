package dto

import (
	"time"
)

type EnqueueDTO struct {
	QueueType   string     `json:"queue_type" validate:"required,max=255"`
	PayloadRef  string     `json:"payload_ref" validate:"required,max=255"`
	Priority    *int       `json:"priority,omitempty" validate:"omitempty,gte=-1000,lte=1000"`
	MaxAttempts *int       `json:"max_attempts,omitempty" validate:"omitempty,gte=1,lte=25"`
	RunAt       *time.Time `json:"run_at,omitempty"`
}

type RetryDTO struct {
	ExtraAttempts int `json:"extra_attempts" validate:"gte=0,lte=25"`
}

type ListJobsQuery struct {
	QueueType string `form:"queue_type" validate:"omitempty,max=255"`
	State     string `form:"state" validate:"omitempty,oneof=pending owned succeeded dead"`
	Limit     int    `form:"limit" validate:"omitempty,gte=1,lte=500"`
	Offset    int    `form:"offset" validate:"omitempty,gte=0"`
}

type JobResponseDTO struct {
	ID                   uint       `json:"id"`
	QueueType            string     `json:"queue_type"`
	PayloadRef           string     `json:"payload_ref"`
	Priority             int        `json:"priority"`
	RunAt                time.Time  `json:"run_at"`
	State                string     `json:"state"`
	Attempts             int        `json:"attempts"`
	MaxAttempts          int        `json:"max_attempts"`
	Locked               bool       `json:"locked"`
	LockedAt             *time.Time `json:"locked_at,omitempty"`
	LockedBy             string     `json:"locked_by,omitempty"`
	Complete             bool       `json:"complete"`
	CompletedWithFailure bool       `json:"completed_with_failure"`
	LastError            string     `json:"last_error,omitempty"`
	FailureReason        string     `json:"failure_reason,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	FailedAt             *time.Time `json:"failed_at,omitempty"`
	Version              int        `json:"version"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
