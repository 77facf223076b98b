package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"stylist/internal/entity"
	"stylist/internal/model"
	"stylist/internal/render"
	"stylist/internal/storage"

	"github.com/stretchr/testify/require"
)

const testPhoto = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

type fakeProvider struct {
	mu        sync.Mutex
	name      string
	requests  []render.RenderRequest
	err       error
	immediate *render.Submission
	polls     map[string]render.Submission
	pollErr   error
	nextID    int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{name: "fake", polls: make(map[string]render.Submission)}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) RequestRender(_ context.Context, request render.RenderRequest) (*render.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}
	if f.immediate != nil {
		out := *f.immediate
		return &out, nil
	}
	f.nextID++
	return &render.Submission{
		ProviderJobID: fmt.Sprintf("task-%d", f.nextID),
		Status:        render.TaskStatusPending,
	}, nil
}

func (f *fakeProvider) Poll(_ context.Context, providerJobID string) (*render.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if sub, ok := f.polls[providerJobID]; ok {
		return &sub, nil
	}
	return &render.Submission{ProviderJobID: providerJobID, Status: render.TaskStatusRunning}, nil
}

func (f *fakeProvider) setPoll(sub render.Submission) {
	f.mu.Lock()
	f.polls[sub.ProviderJobID] = sub
	f.mu.Unlock()
}

func (f *fakeProvider) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeProvider) lastRequest() render.RenderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []uint
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, jobID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, jobID)
	return nil
}

func (d *recordingDispatcher) dispatched() []uint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint(nil), d.ids...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	repo       model.Repository
	provider   *fakeProvider
	dispatcher *recordingDispatcher
	clock      *testClock
	svc        *GenerationService
	user       *entity.DbUser
	look       *entity.DbLook
	item       entity.DbCatalogItem
}

func newTestRepo(t *testing.T) model.Repository {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	repo, err := model.NewMemoryRepository(fmt.Sprintf("%s_%d", name, time.Now().UnixNano()))
	require.NoError(t, err)
	return repo
}

func seedItems(t *testing.T, repo model.Repository, items ...entity.DbCatalogItem) []entity.DbCatalogItem {
	t.Helper()
	ctx := context.Background()
	for i := range items {
		items[i].IsActive = true
		items[i].InStock = true
		if items[i].Currency == "" {
			items[i].Currency = "USD"
		}
	}
	require.NoError(t, repo.CreateCatalogItems(ctx, items))
	stored, err := repo.QueryCatalogItems(ctx, entity.CatalogQuery{})
	require.NoError(t, err)
	return stored
}

func createUser(t *testing.T, repo model.Repository, email, photo string) *entity.DbUser {
	t.Helper()
	user := &entity.DbUser{
		Email:        email,
		PasswordHash: "hash",
		DisplayName:  "Ana",
		Role:         entity.UserRoleUser,
		IsActive:     true,
		SourcePhoto:  photo,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

func newTestEnv(t *testing.T, cfg GenerationConfig) *testEnv {
	t.Helper()
	repo := newTestRepo(t)
	ctx := context.Background()

	items := seedItems(t, repo,
		entity.DbCatalogItem{Name: "Linen shirt", Category: entity.CategoryTop, Price: 4000, ImageURL: "https://img.test/shirt.png"},
		entity.DbCatalogItem{Name: "Chinos", Category: entity.CategoryBottom, Price: 6000, ImageURL: "https://img.test/chinos.png"},
	)
	user := createUser(t, repo, "ana@example.com", testPhoto)

	lookRecord := &entity.DbLook{
		UserID:     user.ID,
		Strategy:   "separates",
		TotalPrice: items[0].Price + items[1].Price,
		Currency:   "USD",
		Items: []entity.DbLookItem{
			{Position: 0, CatalogItemID: items[0].ID, Name: items[0].Name, Category: items[0].Category, Price: items[0].Price, ImageURL: items[0].ImageURL},
			{Position: 1, CatalogItemID: items[1].ID, Name: items[1].Name, Category: items[1].Category, Price: items[1].Price, ImageURL: items[1].ImageURL},
		},
		GenerationStatus: entity.JobStatusPending,
	}
	require.NoError(t, repo.CreateLook(ctx, lookRecord))

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	provider := newFakeProvider()
	dispatcher := &recordingDispatcher{}
	clock := &testClock{now: time.Now().UTC()}

	svc := NewGenerationService(repo, provider, store, storage.NewURLResolver("/files"), cfg)
	svc.SetDispatcher(dispatcher)
	svc.now = clock.Now

	return &testEnv{
		repo:       repo,
		provider:   provider,
		dispatcher: dispatcher,
		clock:      clock,
		svc:        svc,
		user:       user,
		look:       lookRecord,
		item:       items[0],
	}
}

func (e *testEnv) lookSubject() entity.JobSubject {
	return entity.JobSubject{Kind: entity.JobKindLookImage, SubjectID: e.look.ID, UserID: e.user.ID}
}

func (e *testEnv) itemSubject() entity.JobSubject {
	return entity.JobSubject{Kind: entity.JobKindItemTryOn, SubjectID: e.item.ID, UserID: e.user.ID}
}

func (e *testEnv) job(t *testing.T, id uint) *entity.DbGenerationJob {
	t.Helper()
	job, err := e.repo.GetJob(context.Background(), id)
	require.NoError(t, err)
	return job
}
