package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stylist/internal/catalog"
	"stylist/internal/composer"
	"stylist/internal/config"
	"stylist/internal/entity"
	"stylist/internal/events"
	"stylist/internal/model"
	"stylist/internal/queue"
	"stylist/internal/render"
	"stylist/internal/service"
	"stylist/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPhoto = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

type testServer struct {
	handler    *HTTPHandler
	router     *gin.Engine
	repo       model.Repository
	generation *service.GenerationService
	dispatcher *queue.InlineDispatcher
	bus        *events.LocalBus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo, err := model.NewMemoryRepository(fmt.Sprintf("api_%s_%d", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano()))
	require.NoError(t, err)
	require.NoError(t, model.SeedDemoCatalog(context.Background(), repo))

	cfg := config.Config{
		JWTSecret:                "test-secret",
		JWTIssuer:                "stylist-test",
		JWTExpirationMinutes:     60,
		StoragePublicBaseURL:     "/files",
		RenderWebhookURL:         "https://api.test/api/webhooks/render",
		RenderWebhookSecret:      "s3cret",
		RenderPollBatchSize:      10,
		WorkerConcurrency:        2,
		JobProcessingTimeoutMins: 15,
	}

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	resolver := storage.NewURLResolver(cfg.StoragePublicBaseURL)

	cached, err := catalog.NewCachedCatalog(catalog.NewRepositoryCatalog(repo), 0)
	require.NoError(t, err)

	profiles := service.NewProfileService(repo, store, resolver)
	looks := service.NewLookService(repo, profiles, composer.New(cached))
	generation := service.NewGenerationService(repo, render.NewStubProvider(), store, resolver, service.NewGenerationConfig(cfg))

	dispatcher := queue.NewInlineDispatcher(time.Minute)
	dispatcher.Bind(generation)
	generation.SetDispatcher(dispatcher)

	bus := events.NewLocalBus()
	generation.SetEventBus(bus)

	handler, err := NewHTTPHandler(cfg, repo, Services{
		Profiles:   profiles,
		Looks:      looks,
		Generation: generation,
		Catalog:    cached,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, handler.StartEventForwarder(ctx, bus))

	return &testServer{
		handler:    handler,
		router:     NewRouter(handler, store),
		repo:       repo,
		generation: generation,
		dispatcher: dispatcher,
		bus:        bus,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, email string) entity.AuthResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":        email,
		"password":     "password123",
		"display_name": "Ana",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp entity.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	first := s.register(t, "ana@example.com")
	assert.Equal(t, entity.UserRoleAdmin, first.User.Role)
	assert.NotEmpty(t, first.Token)

	second := s.register(t, "ben@example.com")
	assert.Equal(t, entity.UserRoleUser, second.User.Role)

	tests := []struct {
		name           string
		path           string
		body           gin.H
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "重复邮箱",
			path:           "/api/auth/register",
			body:           gin.H{"email": "ANA@example.com", "password": "password123"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   ErrCodeEmailExists,
		},
		{
			name:           "密码过短",
			path:           "/api/auth/register",
			body:           gin.H{"email": "cy@example.com", "password": "short"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   ErrCodeInvalidRequest,
		},
		{
			name:           "密码错误",
			path:           "/api/auth/login",
			body:           gin.H{"email": "ana@example.com", "password": "wrong-password"},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   ErrCodeInvalidCredentials,
		},
		{
			name:           "用户不存在",
			path:           "/api/auth/login",
			body:           gin.H{"email": "nobody@example.com", "password": "password123"},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   ErrCodeInvalidCredentials,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.path, "", tt.body)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.expectedCode, decode[APIError](t, w).Code)
		})
	}

	w := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[entity.AuthResponse](t, w)
	assert.Equal(t, first.User.ID, login.User.ID)

	w = s.do(t, http.MethodGet, "/api/auth/status", "", nil)
	assert.True(t, decode[entity.AuthStatusResponse](t, w).HasUser)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/looks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrCodeUnauthorized, decode[APIError](t, w).Code)

	w = s.do(t, http.MethodGet, "/api/looks", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrCodeSessionExpired, decode[APIError](t, w).Code)
}

func TestAdminPollRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "ana@example.com")
	member := s.register(t, "ben@example.com")

	w := s.do(t, http.MethodPost, "/api/admin/render/poll", member.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/render/poll", admin.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestUpdateProfileAndMe(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "ana@example.com")

	w := s.do(t, http.MethodPatch, "/api/me/profile", user.Token, gin.H{
		"gender":       "MALE",
		"budget_tier":  "mid",
		"style_tags":   []string{"smart", " Smart ", "classic"},
		"source_photo": testPhoto,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode[entity.UserSummary](t, w)
	assert.Equal(t, "male", summary.Gender)
	assert.Equal(t, "mid", summary.BudgetTier)
	assert.Equal(t, entity.StringArray{"smart", "classic"}, summary.StyleTags)
	assert.True(t, summary.HasSourcePhoto)

	w = s.do(t, http.MethodGet, "/api/auth/me", user.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "male", decode[entity.UserSummary](t, w).Gender)

	w = s.do(t, http.MethodPatch, "/api/me/profile", user.Token, gin.H{"source_photo": "%%%"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	// unisex 只用于商品，资料里按未指定处理
	w = s.do(t, http.MethodPatch, "/api/me/profile", user.Token, gin.H{"gender": "unisex"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode[entity.UserSummary](t, w).Gender)
}

func TestListCatalogItems(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "ana@example.com")

	w := s.do(t, http.MethodGet, "/api/catalog/items?category=shoes&budget=low", user.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[entity.CatalogListResponse](t, w)
	require.NotEmpty(t, resp.Items)
	for _, item := range resp.Items {
		assert.Equal(t, entity.CategoryShoes, item.Category)
		assert.LessOrEqual(t, item.Price, int64(5000))
	}

	for _, query := range []string{"category=hats", "gender=other", "budget=infinite", "limit=-1"} {
		w := s.do(t, http.MethodGet, "/api/catalog/items?"+query, user.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestComposeAndRenderLook(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "ana@example.com")
	other := s.register(t, "ben@example.com")

	w := s.do(t, http.MethodPatch, "/api/me/profile", owner.Token, gin.H{"gender": "male", "occasion": "work"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/looks", owner.Token, gin.H{})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[entity.DbLook](t, w)
	require.NotZero(t, created.ID)
	assert.GreaterOrEqual(t, len(created.Items), 2)
	assert.Equal(t, entity.JobStatusPending, created.GenerationStatus)

	lookPath := fmt.Sprintf("/api/looks/%d", created.ID)
	renderPath := lookPath + "/render"

	w = s.do(t, http.MethodGet, lookPath, other.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrCodeLookNotFound, decode[APIError](t, w).Code)

	w = s.do(t, http.MethodGet, "/api/looks?page=1&page_size=10", owner.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[entity.LookListResponse](t, w)
	require.Len(t, list.Looks, 1)

	// 没有人像照片时不创建任务
	w = s.do(t, http.MethodPost, renderPath, owner.Token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, ErrCodeNoSourcePhoto, decode[APIError](t, w).Code)
	w = s.do(t, http.MethodGet, renderPath, owner.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, renderPath, owner.Token, entity.StartJobRequest{SourcePhoto: testPhoto})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	handle := decode[entity.JobHandle](t, w)
	assert.True(t, handle.Created)
	assert.Equal(t, entity.JobStatusPending, handle.Status)
	s.dispatcher.Wait()

	// 进行中的任务被复用
	w = s.do(t, http.MethodPost, renderPath, owner.Token, entity.StartJobRequest{SourcePhoto: testPhoto})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	again := decode[entity.JobHandle](t, w)
	assert.Equal(t, handle.JobID, again.JobID)
	assert.False(t, again.Created)
	assert.Equal(t, entity.JobStatusProcessing, again.Status)

	job, err := s.repo.GetJob(context.Background(), handle.JobID)
	require.NoError(t, err)
	require.NotEmpty(t, job.ProviderJobID)

	webhook := func(token string, body gin.H) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/render/stub", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("X-Webhook-Token", token)
		}
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	completion := gin.H{
		"provider_job_id": job.ProviderJobID,
		"status":          "succeeded",
		"outputs":         []string{testPhoto},
	}
	w = webhook("wrong", completion)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = webhook("s3cret", gin.H{"provider_job_id": "missing", "status": "succeeded"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = webhook("s3cret", gin.H{"status": "succeeded"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = webhook("s3cret", completion)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, renderPath, owner.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[entity.JobStatusView](t, w)
	assert.Equal(t, entity.JobStatusCompleted, view.Status)
	assert.Equal(t, entity.JobStatusCompleted, view.DisplayStatus)
	require.True(t, strings.HasPrefix(view.ResultRef, "/files/renders/"), view.ResultRef)

	w = s.do(t, http.MethodGet, view.ResultRef, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, lookPath, owner.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mirrored := decode[entity.DbLook](t, w)
	assert.Equal(t, entity.JobStatusCompleted, mirrored.GenerationStatus)
	assert.Equal(t, view.ResultRef, mirrored.ImageURL)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/jobs/%d", handle.JobID), owner.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/jobs/%d", handle.JobID), other.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrCodeJobNotFound, decode[APIError](t, w).Code)
}

func TestItemTryOnCompletesThroughPoll(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "ana@example.com")

	w := s.do(t, http.MethodPatch, "/api/me/profile", admin.Token, gin.H{"source_photo": testPhoto})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/items/999999/try-on", admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrCodeItemNotFound, decode[APIError](t, w).Code)

	w = s.do(t, http.MethodPost, "/api/items/1/try-on", admin.Token, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	s.dispatcher.Wait()

	w = s.do(t, http.MethodGet, "/api/items/1/try-on", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.JobStatusProcessing, decode[entity.JobStatusView](t, w).Status)

	w = s.do(t, http.MethodPost, "/api/admin/render/poll", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/items/1/try-on", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[entity.JobStatusView](t, w)
	assert.Equal(t, entity.JobStatusCompleted, view.Status)
	assert.NotEmpty(t, view.ResultRef)

	w = s.do(t, http.MethodPost, "/api/items/abc/try-on", admin.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, uint) error {
	return errors.New("queue unavailable")
}

func TestStartJobDispatchFailureReturnsFailedJob(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "ana@example.com")
	s.generation.SetDispatcher(failingDispatcher{})

	w := s.do(t, http.MethodPatch, "/api/me/profile", user.Token, gin.H{"source_photo": testPhoto})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/items/1/try-on", user.Token, nil)
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	resp := decode[struct {
		Code    string           `json:"code"`
		Details entity.JobHandle `json:"details"`
	}](t, w)
	assert.Equal(t, ErrCodeDispatchFailed, resp.Code)
	require.NotZero(t, resp.Details.JobID)
	assert.Equal(t, entity.JobStatusFailed, resp.Details.Status)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/jobs/%d", resp.Details.JobID), user.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, entity.JobStatusFailed, decode[entity.JobStatusView](t, w).Status)
}

func TestStreamJobEvents(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "ana@example.com")

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// EventSource 无法设置请求头，令牌走查询参数
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events?token="+user.Token, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		s.handler.sseMu.Lock()
		defer s.handler.sseMu.Unlock()
		return len(s.handler.sseClients[user.User.ID]) == 1
	}, time.Second, 10*time.Millisecond)

	// 其他用户的事件不会推送过来
	require.NoError(t, s.bus.Publish(ctx, entity.JobEvent{JobID: 1, UserID: user.User.ID + 100, Status: entity.JobStatusFailed}))
	require.NoError(t, s.bus.Publish(ctx, entity.JobEvent{JobID: 7, UserID: user.User.ID, Status: entity.JobStatusCompleted}))

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimPrefix(line, "event:")
		}
		if strings.HasPrefix(line, "data:") && event == "job_updated" {
			data = strings.TrimPrefix(line, "data:")
			break
		}
	}
	require.NotEmpty(t, data)

	var got entity.JobEvent
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, uint(7), got.JobID)
	assert.Equal(t, entity.JobStatusCompleted, got.Status)
}
