package entity

import "time"

// UserUpdates 用户更新字段
type UserUpdates struct {
	DisplayName *string
	Gender      *string
	StyleTags   *StringArray
	BudgetTier  *string
	Occasion    *string
	SourcePhoto *string
	IsActive    *bool
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u UserUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.DisplayName != nil {
		updates["display_name"] = *u.DisplayName
	}
	if u.Gender != nil {
		updates["gender"] = *u.Gender
	}
	if u.StyleTags != nil {
		updates["style_tags"] = *u.StyleTags
	}
	if u.BudgetTier != nil {
		updates["budget_tier"] = *u.BudgetTier
	}
	if u.Occasion != nil {
		updates["occasion"] = *u.Occasion
	}
	if u.SourcePhoto != nil {
		updates["source_photo"] = *u.SourcePhoto
	}
	if u.IsActive != nil {
		updates["is_active"] = *u.IsActive
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u UserUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// LookGenerationUpdates 只允许修改 look 的生成状态字段
type LookGenerationUpdates struct {
	GenerationStatus *JobStatus
	ImageURL         *string
}

func (u LookGenerationUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.GenerationStatus != nil {
		updates["generation_status"] = *u.GenerationStatus
	}
	if u.ImageURL != nil {
		updates["image_url"] = *u.ImageURL
	}
	return updates
}

func (u LookGenerationUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// JobUpdates 任务状态迁移时附带写入的字段
type JobUpdates struct {
	Provider      *string
	ProviderJobID *string
	ResultRef     *string
	ErrorMessage  *string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ExpiresAt     *time.Time
}

func (u JobUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Provider != nil {
		updates["provider"] = *u.Provider
	}
	if u.ProviderJobID != nil {
		updates["provider_job_id"] = *u.ProviderJobID
	}
	if u.ResultRef != nil {
		updates["result_ref"] = *u.ResultRef
	}
	if u.ErrorMessage != nil {
		updates["error_message"] = *u.ErrorMessage
	}
	if u.StartedAt != nil {
		updates["started_at"] = *u.StartedAt
	}
	if u.CompletedAt != nil {
		updates["completed_at"] = *u.CompletedAt
	}
	if u.ExpiresAt != nil {
		updates["expires_at"] = *u.ExpiresAt
	}
	return updates
}

func (u JobUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}
