package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"stylist/internal/entity"
	"stylist/internal/model"
	"stylist/internal/storage"
	"stylist/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProfileReader 读取用户的搭配偏好
type ProfileReader interface {
	GetPreferenceProfile(ctx context.Context, userID uint) (entity.PreferenceProfile, error)
}

// ProfileService 管理用户偏好与人像照片
type ProfileService struct {
	repo     model.Repository
	storage  storage.Storage
	resolver storage.URLResolver
}

func NewProfileService(repo model.Repository, store storage.Storage, resolver storage.URLResolver) *ProfileService {
	return &ProfileService{
		repo:     repo,
		storage:  store,
		resolver: resolver,
	}
}

func (s *ProfileService) GetUser(ctx context.Context, userID uint) (*entity.DbUser, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetPreferenceProfile 用户不存在时返回 ErrUserNotFound
func (s *ProfileService) GetPreferenceProfile(ctx context.Context, userID uint) (entity.PreferenceProfile, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return entity.PreferenceProfile{}, err
	}
	return user.PreferenceProfile(), nil
}

// UpdateProfile 写入偏好字段；新的人像照片会先落盘再记录引用
func (s *ProfileService) UpdateProfile(ctx context.Context, userID uint, req entity.ProfileUpdateRequest) (*entity.DbUser, error) {
	var updates entity.UserUpdates

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		updates.DisplayName = &name
	}
	if req.Gender != nil {
		gender := string(entity.ParseProfileGender(*req.Gender))
		updates.Gender = &gender
	}
	if req.StyleTags != nil {
		tags := entity.StringArray(req.StyleTags).Normalize()
		updates.StyleTags = &tags
	}
	if req.BudgetTier != nil {
		tier := string(entity.ParseBudgetTier(*req.BudgetTier))
		updates.BudgetTier = &tier
	}
	if req.Occasion != nil {
		occasion := strings.TrimSpace(*req.Occasion)
		updates.Occasion = &occasion
	}
	if req.SourcePhoto != nil {
		ref, err := s.storeSourcePhoto(ctx, userID, *req.SourcePhoto)
		if err != nil {
			return nil, err
		}
		updates.SourcePhoto = &ref
	}

	if !updates.IsEmpty() {
		if err := s.repo.UpdateUser(ctx, userID, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
	}
	return s.GetUser(ctx, userID)
}

// storeSourcePhoto 返回服务商可直接读取的引用：存储能给出公网地址时用地址，否则保留 data URL
func (s *ProfileService) storeSourcePhoto(ctx context.Context, userID uint, photo string) (string, error) {
	photo = strings.TrimSpace(photo)
	if photo == "" {
		return "", nil
	}
	if utils.IsRemoteURL(photo) {
		return photo, nil
	}

	data, ext, err := utils.DecodeMediaPayload(utils.EnsureDataURL(photo))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSourcePhoto, err)
	}
	inline := fmt.Sprintf("data:%s;base64,%s", utils.MimeFromExtension(ext), base64.StdEncoding.EncodeToString(data))

	if s.storage == nil {
		return inline, nil
	}
	key, err := s.storage.Save(ctx, data, storage.SaveOptions{
		Category:  storage.CategorySourcePhotos,
		Extension: ext,
		BaseName:  fmt.Sprintf("user_%d_%s", userID, utils.GenerateUUID()),
	})
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("failed to persist source photo")
		return inline, nil
	}
	if resolved := s.resolver.Resolve(key); utils.IsRemoteURL(resolved) {
		return resolved, nil
	}
	return inline, nil
}
