package model

import (
	"context"
	"time"

	"stylist/internal/entity"
)

// Repository 数据访问层接口
type Repository interface {
	// 用户与偏好
	CreateUser(ctx context.Context, user *entity.DbUser) error
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	CountUsers(ctx context.Context) (int64, error)

	// 商品目录（只读为主，写入仅用于种子数据）
	QueryCatalogItems(ctx context.Context, query entity.CatalogQuery) ([]entity.DbCatalogItem, error)
	GetCatalogItem(ctx context.Context, id uint) (*entity.DbCatalogItem, error)
	CreateCatalogItems(ctx context.Context, items []entity.DbCatalogItem) error
	CountCatalogItems(ctx context.Context) (int64, error)

	// Look
	CreateLook(ctx context.Context, look *entity.DbLook) error
	GetLook(ctx context.Context, id uint) (*entity.DbLook, error)
	ListLooks(ctx context.Context, query entity.LookQuery) ([]entity.DbLook, *entity.Meta, error)
	UpdateLookGeneration(ctx context.Context, id uint, updates entity.LookGenerationUpdates) error

	// 生成任务
	FindNonTerminalJob(ctx context.Context, subject entity.JobSubject) (*entity.DbGenerationJob, error)
	FindCompletedJob(ctx context.Context, subject entity.JobSubject, now time.Time) (*entity.DbGenerationJob, error)
	CreateJobIfAbsent(ctx context.Context, job *entity.DbGenerationJob, now time.Time) (*entity.DbGenerationJob, bool, error)
	GetJob(ctx context.Context, id uint) (*entity.DbGenerationJob, error)
	GetLatestJob(ctx context.Context, subject entity.JobSubject) (*entity.DbGenerationJob, error)
	FindJobByProviderJobID(ctx context.Context, provider, providerJobID string) (*entity.DbGenerationJob, error)
	ListJobsByStatus(ctx context.Context, status entity.JobStatus, limit int) ([]entity.DbGenerationJob, error)
	TransitionJob(ctx context.Context, id uint, to entity.JobStatus, updates entity.JobUpdates) (*entity.DbGenerationJob, error)
}
