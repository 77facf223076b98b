package sql

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"stylist/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *GormRepository {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewGormRepository(db)
	require.NoError(t, repo.Migrate())
	return repo
}

func TestQueryCatalogItemsFilters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateCatalogItems(ctx, []entity.DbCatalogItem{
		{Name: "tee", Category: entity.CategoryTop, Gender: entity.GenderMale, Price: 3000, Currency: "USD", IsActive: true, InStock: true},
		{Name: "shirt", Category: entity.CategoryTop, Gender: entity.GenderUnisex, Price: 9000, Currency: "USD", IsActive: true, InStock: true},
		{Name: "blouse", Category: entity.CategoryTop, Gender: entity.GenderFemale, Price: 9000, Currency: "USD", IsActive: true, InStock: true},
		{Name: "sold out", Category: entity.CategoryTop, Gender: entity.GenderMale, Price: 9000, Currency: "USD", IsActive: true, InStock: false},
		{Name: "retired", Category: entity.CategoryTop, Gender: entity.GenderMale, Price: 9000, Currency: "USD", IsActive: false, InStock: true},
		{Name: "boots", Category: entity.CategoryShoes, Gender: entity.GenderMale, Price: 9000, Currency: "USD", IsActive: true, InStock: true},
	}))

	query := entity.CatalogQuery{
		Category:   entity.CategoryTop,
		Gender:     entity.GenderMale,
		ActiveOnly: true,
	}.WithBudget(entity.BudgetMid)

	items, err := repo.QueryCatalogItems(ctx, query)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "shirt", items[0].Name)

	all, err := repo.QueryCatalogItems(ctx, entity.CatalogQuery{Category: entity.CategoryTop})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestCreateAndGetLookKeepsTotalsAndOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	look := &entity.DbLook{
		UserID:           1,
		Strategy:         "separates",
		TotalPrice:       12345 + 6789,
		Currency:         "USD",
		StyleTags:        entity.StringArray{"minimal", "smart"},
		GenerationStatus: entity.JobStatusPending,
		Items: []entity.DbLookItem{
			{Position: 0, CatalogItemID: 11, Name: "top", Category: entity.CategoryTop, Price: 12345},
			{Position: 1, CatalogItemID: 12, Name: "bottom", Category: entity.CategoryBottom, Price: 6789},
		},
	}
	require.NoError(t, repo.CreateLook(ctx, look))
	require.NotZero(t, look.ID)

	loaded, err := repo.GetLook(ctx, look.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(19134), loaded.TotalPrice)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, uint(11), loaded.Items[0].CatalogItemID)
	assert.Equal(t, uint(12), loaded.Items[1].CatalogItemID)
	assert.Equal(t, entity.StringArray{"minimal", "smart"}, loaded.StyleTags)

	status := entity.JobStatusCompleted
	url := "renders/look.png"
	require.NoError(t, repo.UpdateLookGeneration(ctx, look.ID, entity.LookGenerationUpdates{GenerationStatus: &status, ImageURL: &url}))

	loaded, err = repo.GetLook(ctx, look.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, loaded.GenerationStatus)
	assert.Equal(t, url, loaded.ImageURL)
	assert.Len(t, loaded.Items, 2)
}

func TestCreateJobIfAbsentReusesInFlightJob(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	first, created, err := repo.CreateJobIfAbsent(ctx, &entity.DbGenerationJob{Kind: entity.JobKindLookImage, SubjectID: 5, UserID: 9}, now)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, entity.JobStatusPending, first.Status)

	second, created, err := repo.CreateJobIfAbsent(ctx, &entity.DbGenerationJob{Kind: entity.JobKindLookImage, SubjectID: 5, UserID: 9}, now)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	other, created, err := repo.CreateJobIfAbsent(ctx, &entity.DbGenerationJob{Kind: entity.JobKindItemTryOn, SubjectID: 5, UserID: 9}, now)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreateJobIfAbsentAfterTerminalStates(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()
	subject := entity.JobSubject{Kind: entity.JobKindItemTryOn, SubjectID: 3, UserID: 4}
	newJob := func() *entity.DbGenerationJob {
		return &entity.DbGenerationJob{Kind: subject.Kind, SubjectID: subject.SubjectID, UserID: subject.UserID}
	}

	failed, _, err := repo.CreateJobIfAbsent(ctx, newJob(), now)
	require.NoError(t, err)
	msg := "provider dispatch failed: boom"
	_, err = repo.TransitionJob(ctx, failed.ID, entity.JobStatusFailed, entity.JobUpdates{ErrorMessage: &msg})
	require.NoError(t, err)

	retry, created, err := repo.CreateJobIfAbsent(ctx, newJob(), now)
	require.NoError(t, err)
	require.True(t, created)
	assert.NotEqual(t, failed.ID, retry.ID)

	_, err = repo.TransitionJob(ctx, retry.ID, entity.JobStatusProcessing, entity.JobUpdates{})
	require.NoError(t, err)
	ref := "renders/result.png"
	expires := now.Add(time.Hour)
	_, err = repo.TransitionJob(ctx, retry.ID, entity.JobStatusCompleted, entity.JobUpdates{ResultRef: &ref, ExpiresAt: &expires})
	require.NoError(t, err)

	again, created, err := repo.CreateJobIfAbsent(ctx, newJob(), now)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, retry.ID, again.ID)

	// once the result expires a fresh render is allowed
	fresh, created, err := repo.CreateJobIfAbsent(ctx, newJob(), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, retry.ID, fresh.ID)

	latest, err := repo.GetLatestJob(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, latest.ID)
}

func TestTransitionJobRejectsIllegalMoves(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	job, _, err := repo.CreateJobIfAbsent(ctx, &entity.DbGenerationJob{Kind: entity.JobKindLookImage, SubjectID: 1, UserID: 1}, time.Now())
	require.NoError(t, err)

	_, err = repo.TransitionJob(ctx, job.ID, entity.JobStatusCompleted, entity.JobUpdates{})
	assert.ErrorIs(t, err, entity.ErrInvalidJobTransition)

	providerJobID := "req-1"
	provider := "stub"
	moved, err := repo.TransitionJob(ctx, job.ID, entity.JobStatusProcessing, entity.JobUpdates{Provider: &provider, ProviderJobID: &providerJobID})
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusProcessing, moved.Status)
	require.NotNil(t, moved.ActiveKey)

	found, err := repo.FindJobByProviderJobID(ctx, provider, providerJobID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, found.ID)

	processing, err := repo.ListJobsByStatus(ctx, entity.JobStatusProcessing, 10)
	require.NoError(t, err)
	require.Len(t, processing, 1)

	done, err := repo.TransitionJob(ctx, job.ID, entity.JobStatusFailed, entity.JobUpdates{})
	require.NoError(t, err)
	assert.Nil(t, done.ActiveKey)

	_, err = repo.TransitionJob(ctx, job.ID, entity.JobStatusCompleted, entity.JobUpdates{})
	assert.ErrorIs(t, err, entity.ErrInvalidJobTransition)
	_, err = repo.TransitionJob(ctx, job.ID, entity.JobStatusPending, entity.JobUpdates{})
	assert.ErrorIs(t, err, entity.ErrInvalidJobTransition)
}

func TestUsersPreferencesRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user := &entity.DbUser{Email: "Ann@Example.com", PasswordHash: "x", Role: entity.UserRoleUser, IsActive: true}
	require.NoError(t, repo.CreateUser(ctx, user))

	gender := "female"
	tags := entity.StringArray{"minimal", "elegant"}
	budget := "premium"
	require.NoError(t, repo.UpdateUser(ctx, user.ID, entity.UserUpdates{Gender: &gender, StyleTags: &tags, BudgetTier: &budget}))

	loaded, err := repo.GetUserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	profile := loaded.PreferenceProfile()
	assert.Equal(t, entity.GenderFemale, profile.Gender)
	assert.Equal(t, entity.BudgetPremium, profile.BudgetTier)
	assert.Equal(t, entity.StringArray{"minimal", "elegant"}, profile.StyleTags)
}
