package service

import (
	"context"
	"errors"
	"fmt"

	"stylist/internal/composer"
	"stylist/internal/entity"
	"stylist/internal/look"
	"stylist/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LookService 组合搭配并保存为 look
type LookService struct {
	repo     model.Repository
	profiles ProfileReader
	composer *composer.Composer
	lookOpts []look.Option
}

func NewLookService(repo model.Repository, profiles ProfileReader, c *composer.Composer, opts ...look.Option) *LookService {
	return &LookService{
		repo:     repo,
		profiles: profiles,
		composer: c,
		lookOpts: opts,
	}
}

// ComposeLook 读取用户偏好、组合搭配并落库，返回带 ID 的 look
func (s *LookService) ComposeLook(ctx context.Context, userID uint, occasion string) (*entity.DbLook, error) {
	profile, err := s.profiles.GetPreferenceProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	outfit, err := s.composer.Compose(ctx, profile, occasion)
	if err != nil {
		return nil, err
	}

	opts := append([]look.Option{look.WithStrategy(outfit.Strategy)}, s.lookOpts...)
	record, err := look.Build(outfit.Items, profile, occasion, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateLook(ctx, record); err != nil {
		return nil, fmt.Errorf("save look: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"look_id":  record.ID,
		"strategy": record.Strategy,
		"items":    len(record.Items),
		"total":    record.TotalPrice,
	}).Info("look composed")
	return record, nil
}

// GetLook 只返回属于 userID 的 look
func (s *LookService) GetLook(ctx context.Context, id, userID uint) (*entity.DbLook, error) {
	record, err := s.repo.GetLook(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLookNotFound
	}
	if err != nil {
		return nil, err
	}
	if record.UserID != userID {
		return nil, ErrLookNotFound
	}
	return record, nil
}

func (s *LookService) ListLooks(ctx context.Context, userID uint, params entity.BaseParams) ([]entity.DbLook, *entity.Meta, error) {
	return s.repo.ListLooks(ctx, entity.LookQuery{BaseParams: params, UserID: userID})
}
