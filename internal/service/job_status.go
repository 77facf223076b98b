package service

import (
	"context"
	"errors"
	"time"

	"stylist/internal/entity"

	"gorm.io/gorm"
)

// GetStatus 返回 subject 最近一次任务的状态，不做缓存
func (s *GenerationService) GetStatus(ctx context.Context, subject entity.JobSubject) (*entity.JobStatusView, error) {
	if !subject.Kind.Valid() {
		return nil, ErrUnsupportedJobKind
	}
	job, err := s.repo.GetLatestJob(ctx, subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.statusView(job, s.now()), nil
}

// GetJobStatus 按任务 ID 查询，只能看到自己的任务
func (s *GenerationService) GetJobStatus(ctx context.Context, jobID, userID uint) (*entity.JobStatusView, error) {
	if jobID == 0 {
		return nil, ErrJobNotFound
	}
	job, err := s.repo.GetJob(ctx, jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return s.statusView(job, s.now()), nil
}

func (s *GenerationService) statusView(job *entity.DbGenerationJob, now time.Time) *entity.JobStatusView {
	view := &entity.JobStatusView{
		JobID:         job.ID,
		Kind:          job.Kind,
		SubjectID:     job.SubjectID,
		Status:        job.Status,
		DisplayStatus: job.Status,
		ResultRef:     job.ResultRef,
		Error:         job.ErrorMessage,
		UpdatedAt:     job.UpdatedAt,
		ExpiresAt:     job.ExpiresAt,
	}

	switch job.Status {
	case entity.JobStatusProcessing:
		if isStale(job, now, s.cfg.ProcessingTimeout) {
			view.Stale = true
			view.DisplayStatus = entity.JobStatusFailed
			view.Error = jobError(ErrProviderRenderFailed, "timed out waiting for provider")
		}
	case entity.JobStatusCompleted:
		if job.Expired(now) {
			view.Expired = true
			view.ResultRef = ""
		}
	}
	return view
}

// isStale 超时只影响展示，存储的记录保持不变
func isStale(job *entity.DbGenerationJob, now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	started := job.UpdatedAt
	if job.StartedAt != nil {
		started = *job.StartedAt
	}
	return now.Sub(started) > timeout
}
