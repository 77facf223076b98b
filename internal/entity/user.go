package entity

import (
	"strings"
	"time"
)

const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)

// DbUser represents a persisted user account together with its styling preferences.
type DbUser struct {
	ID           uint        `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Email        string      `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string      `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	DisplayName  string      `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	Role         string      `gorm:"column:role;type:varchar(50);index;not null" json:"role"`
	IsActive     bool        `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Gender       string      `gorm:"column:gender;type:varchar(16)" json:"gender"`
	StyleTags    StringArray `gorm:"column:style_tags;type:json" json:"style_tags"`
	BudgetTier   string      `gorm:"column:budget_tier;type:varchar(16)" json:"budget_tier"`
	Occasion     string      `gorm:"column:occasion;type:varchar(128)" json:"occasion"`
	SourcePhoto  string      `gorm:"column:source_photo;type:text" json:"source_photo"`
}

// TableName overrides default pluralised name.
func (DbUser) TableName() string {
	return "users"
}

// PreferenceProfile projects the stored preferences into the composer input.
func (u *DbUser) PreferenceProfile() PreferenceProfile {
	if u == nil {
		return PreferenceProfile{}
	}
	return PreferenceProfile{
		UserID:      u.ID,
		DisplayName: strings.TrimSpace(u.DisplayName),
		Gender:      ParseProfileGender(u.Gender),
		StyleTags:   u.StyleTags.Normalize(),
		BudgetTier:  ParseBudgetTier(u.BudgetTier),
		Occasion:    strings.TrimSpace(u.Occasion),
	}
}

// UserSummary is a lightweight user description returned to clients.
type UserSummary struct {
	ID             uint        `json:"id"`
	Email          string      `json:"email"`
	DisplayName    string      `json:"display_name"`
	Role           string      `json:"role"`
	IsActive       bool        `json:"is_active"`
	Gender         string      `json:"gender,omitempty"`
	StyleTags      StringArray `json:"style_tags"`
	BudgetTier     string      `json:"budget_tier,omitempty"`
	Occasion       string      `json:"occasion,omitempty"`
	HasSourcePhoto bool        `json:"has_source_photo"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// AuthStatusResponse indicates whether the system already has users.
type AuthStatusResponse struct {
	HasUser bool `json:"has_user"`
}

type AuthLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthRegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

// ProfileUpdateRequest updates the preferences read by the composer.
// SourcePhoto accepts a URL, a data URL or raw base64.
type ProfileUpdateRequest struct {
	DisplayName *string  `json:"display_name,omitempty"`
	Gender      *string  `json:"gender,omitempty"`
	StyleTags   []string `json:"style_tags,omitempty"`
	BudgetTier  *string  `json:"budget_tier,omitempty"`
	Occasion    *string  `json:"occasion,omitempty"`
	SourcePhoto *string  `json:"source_photo,omitempty"`
}
