package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stylist/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func subjectScope(subject entity.JobSubject) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("kind = ? AND subject_id = ? AND user_id = ?", subject.Kind, subject.SubjectID, subject.UserID)
	}
}

func findNonTerminalJob(tx *gorm.DB, subject entity.JobSubject) (*entity.DbGenerationJob, error) {
	var job entity.DbGenerationJob
	err := tx.Scopes(subjectScope(subject)).
		Where("status IN ?", entity.NonTerminalStatuses).
		Order("id DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func findCompletedJob(tx *gorm.DB, subject entity.JobSubject, now time.Time) (*entity.DbGenerationJob, error) {
	var job entity.DbGenerationJob
	err := tx.Scopes(subjectScope(subject)).
		Where("status = ?", entity.JobStatusCompleted).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Order("id DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindNonTerminalJob returns the pending or processing job for the subject.
func (r *GormRepository) FindNonTerminalJob(ctx context.Context, subject entity.JobSubject) (*entity.DbGenerationJob, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	return findNonTerminalJob(r.db.WithContext(ctx), subject)
}

// FindCompletedJob returns the newest completed job whose result has not expired.
func (r *GormRepository) FindCompletedJob(ctx context.Context, subject entity.JobSubject, now time.Time) (*entity.DbGenerationJob, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	return findCompletedJob(r.db.WithContext(ctx), subject, now)
}

// CreateJobIfAbsent inserts job in pending state unless the subject already has
// an in-flight job or an unexpired completed one, in which case that job is
// returned and created is false. Lookup and insert share one transaction; the
// unique active_key index settles races between separate processes.
func (r *GormRepository) CreateJobIfAbsent(ctx context.Context, job *entity.DbGenerationJob, now time.Time) (*entity.DbGenerationJob, bool, error) {
	if r == nil || r.db == nil {
		return nil, false, fmt.Errorf("repository not initialised")
	}
	if job == nil {
		return nil, false, fmt.Errorf("job is nil")
	}
	subject := job.Subject()
	if !subject.Kind.Valid() || subject.SubjectID == 0 || subject.UserID == 0 {
		return nil, false, fmt.Errorf("invalid job subject %s", subject.Key())
	}

	var (
		result  *entity.DbGenerationJob
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Session(&gorm.Session{})

		existing, err := findNonTerminalJob(locked, subject)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		completed, err := findCompletedJob(locked, subject, now)
		if err == nil {
			result = completed
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		key := subject.Key()
		job.ActiveKey = &key
		job.Status = entity.JobStatusPending
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		result = job
		created = true
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, findErr := r.FindNonTerminalJob(ctx, subject)
		if findErr != nil {
			return nil, false, fmt.Errorf("load concurrent job: %w", findErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// GetJob loads a job by ID.
func (r *GormRepository) GetJob(ctx context.Context, id uint) (*entity.DbGenerationJob, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid job id")
	}
	var job entity.DbGenerationJob
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// GetLatestJob returns the most recently created job for the subject in any state.
func (r *GormRepository) GetLatestJob(ctx context.Context, subject entity.JobSubject) (*entity.DbGenerationJob, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	var job entity.DbGenerationJob
	if err := r.db.WithContext(ctx).Scopes(subjectScope(subject)).Order("id DESC").First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// FindJobByProviderJobID resolves a provider callback to its job.
func (r *GormRepository) FindJobByProviderJobID(ctx context.Context, provider, providerJobID string) (*entity.DbGenerationJob, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if providerJobID == "" {
		return nil, fmt.Errorf("provider job id is empty")
	}
	tx := r.db.WithContext(ctx).Where("provider_job_id = ?", providerJobID)
	if provider != "" {
		tx = tx.Where("provider = ?", provider)
	}
	var job entity.DbGenerationJob
	if err := tx.Order("id DESC").First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobsByStatus returns jobs in status that already carry a provider job id,
// least recently updated first.
func (r *GormRepository) ListJobsByStatus(ctx context.Context, status entity.JobStatus, limit int) ([]entity.DbGenerationJob, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if limit <= 0 {
		limit = 50
	}
	var jobs []entity.DbGenerationJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND provider_job_id <> ''", status).
		Order("updated_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func allowedSources(to entity.JobStatus) []entity.JobStatus {
	var from []entity.JobStatus
	for _, candidate := range entity.NonTerminalStatuses {
		if candidate.CanTransition(to) {
			from = append(from, candidate)
		}
	}
	return from
}

// TransitionJob moves a job to status to with a compare-and-swap on its current
// status. It fails with entity.ErrInvalidJobTransition when the stored status
// does not allow the move, which includes every terminal status.
func (r *GormRepository) TransitionJob(ctx context.Context, id uint, to entity.JobStatus, updates entity.JobUpdates) (*entity.DbGenerationJob, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid job id")
	}
	from := allowedSources(to)
	if len(from) == 0 {
		return nil, fmt.Errorf("%w: nothing moves to %s", entity.ErrInvalidJobTransition, to)
	}

	values := updates.ToMap()
	values["status"] = to
	if to.IsTerminal() {
		values["active_key"] = nil
	}

	var job entity.DbGenerationJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.DbGenerationJob{}).
			Where("id = ? AND status IN ?", id, from).
			Updates(values)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var current entity.DbGenerationJob
			if err := tx.First(&current, id).Error; err != nil {
				return err
			}
			return fmt.Errorf("%w: %s -> %s", entity.ErrInvalidJobTransition, current.Status, to)
		}
		return tx.First(&job, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}
