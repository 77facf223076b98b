package entity

import (
	"errors"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition may leave the status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition encodes pending -> processing -> completed and
// pending|processing -> failed.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// NonTerminalStatuses lists the states that still count as in flight.
var NonTerminalStatuses = []JobStatus{JobStatusPending, JobStatusProcessing}

type JobKind string

const (
	JobKindLookImage JobKind = "look_image"
	JobKindItemTryOn JobKind = "item_tryon"
)

func (k JobKind) Valid() bool {
	return k == JobKindLookImage || k == JobKindItemTryOn
}

// JobSubject identifies what a render job is for and who asked for it.
type JobSubject struct {
	Kind      JobKind
	SubjectID uint
	UserID    uint
}

// Key is unique per (kind, subject, user).
func (s JobSubject) Key() string {
	return fmt.Sprintf("%s:%d:%d", s.Kind, s.SubjectID, s.UserID)
}

// DbGenerationJob tracks one asynchronous render request.
//
// ActiveKey carries JobSubject.Key while the job is pending or processing and
// is cleared on the terminal transition, so the unique index admits at most one
// in-flight job per subject and user.
type DbGenerationJob struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Kind          JobKind    `gorm:"column:kind;type:varchar(32);not null;index:idx_job_subject,priority:1" json:"kind"`
	SubjectID     uint       `gorm:"column:subject_id;not null;index:idx_job_subject,priority:2" json:"subject_id"`
	UserID        uint       `gorm:"column:user_id;not null;index:idx_job_subject,priority:3" json:"user_id"`
	SourcePhoto   string     `gorm:"column:source_photo;type:text" json:"-"`
	Provider      string     `gorm:"column:provider;type:varchar(64)" json:"provider"`
	ProviderJobID string     `gorm:"column:provider_job_id;type:varchar(255);index" json:"provider_job_id,omitempty"`
	Status        JobStatus  `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	ResultRef     string     `gorm:"column:result_ref;type:text" json:"result_ref,omitempty"`
	ErrorMessage  string     `gorm:"column:error_message;type:text" json:"error,omitempty"`
	ActiveKey     *string    `gorm:"column:active_key;type:varchar(191);uniqueIndex" json:"-"`
	StartedAt     *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	ExpiresAt     *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
}

func (DbGenerationJob) TableName() string {
	return "generation_jobs"
}

func (j *DbGenerationJob) Subject() JobSubject {
	return JobSubject{Kind: j.Kind, SubjectID: j.SubjectID, UserID: j.UserID}
}

// Expired reports whether a completed result has passed its eviction time.
func (j *DbGenerationJob) Expired(now time.Time) bool {
	return j != nil && j.ExpiresAt != nil && !now.Before(*j.ExpiresAt)
}

// JobHandle is what starting a job returns to the client.
type JobHandle struct {
	JobID     uint      `json:"job_id"`
	Kind      JobKind   `json:"kind"`
	SubjectID uint      `json:"subject_id"`
	Status    JobStatus `json:"status"`
	Created   bool      `json:"created"`
	ResultRef string    `json:"result_ref,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// JobStatusView is the polling read model.
//
// Status is the stored state. DisplayStatus differs only when a job has been
// processing longer than the configured timeout, in which case Stale is set
// and DisplayStatus reads failed. Expired completed jobs keep their status but
// no longer expose the result.
type JobStatusView struct {
	JobID         uint       `json:"job_id"`
	Kind          JobKind    `json:"kind"`
	SubjectID     uint       `json:"subject_id"`
	Status        JobStatus  `json:"status"`
	DisplayStatus JobStatus  `json:"display_status"`
	Stale         bool       `json:"stale,omitempty"`
	Expired       bool       `json:"expired,omitempty"`
	ResultRef     string     `json:"result_ref,omitempty"`
	Error         string     `json:"error,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type StartJobRequest struct {
	SourcePhoto string `json:"source_photo"`
}

// JobEvent is published whenever a job changes state.
type JobEvent struct {
	JobID     uint      `json:"job_id"`
	UserID    uint      `json:"user_id"`
	Kind      JobKind   `json:"kind"`
	SubjectID uint      `json:"subject_id"`
	Status    JobStatus `json:"status"`
	ResultRef string    `json:"result_ref,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ErrInvalidJobTransition is returned when a transition is not allowed from the
// job's current status, including any move out of a terminal status.
var ErrInvalidJobTransition = errors.New("invalid job transition")
