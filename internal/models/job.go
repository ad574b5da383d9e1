package models

import (
	"time"

	"github.com/joshu-sajeev/delayedjobs/internal/config"
)

// Job is a persisted unit of deferred work.
type Job struct {
	ID                   uint       `gorm:"primaryKey;autoIncrement"`
	QueueType            string     `gorm:"type:varchar(255);not null"`
	PayloadRef           string     `gorm:"type:varchar(255);not null"`
	Priority             int        `gorm:"not null"`
	RunAt                time.Time  `gorm:"not null"`
	Attempts             int        `gorm:"not null"`
	MaxAttempts          int        `gorm:"not null"`
	Locked               bool       `gorm:"not null"`
	LockedAt             *time.Time
	LockedBy             *string    `gorm:"type:varchar(255)"`
	Complete             bool       `gorm:"not null"`
	CompletedWithFailure bool       `gorm:"not null"`
	LastError            *string    `gorm:"type:text"`
	FailureReason        *string    `gorm:"type:text"`
	CompletedAt          *time.Time
	FailedAt             *time.Time
	Version              int       `gorm:"not null"`
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`
}

func (Job) TableName() string { return "delayed_jobs" }

// State derives the lifecycle state from the lock and completion flags.
func (j *Job) State() config.JobState {
	switch {
	case j.Complete && j.CompletedWithFailure:
		return config.JobStateDead
	case j.Complete:
		return config.JobStateSucceeded
	case j.Locked:
		return config.JobStateOwned
	default:
		return config.JobStatePending
	}
}

// Eligible reports whether the job may be claimed at now.
func (j *Job) Eligible(now time.Time) bool {
	return !j.Locked && !j.Complete && !j.RunAt.After(now)
}
