package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stylist/internal/config"
	"stylist/internal/entity"
	"stylist/internal/events"
	"stylist/internal/locker"
	"stylist/internal/model"
	"stylist/internal/queue"
	"stylist/internal/render"
	"stylist/internal/storage"
	"stylist/internal/utils"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// GenerationConfig 任务编排相关的参数
type GenerationConfig struct {
	ProcessingTimeout time.Duration
	ResultTTL         time.Duration
	DispatchTimeout   time.Duration
	PollBatchSize     int
	PollConcurrency   int
	// WebhookURL 为空时不向服务商注册回调，只依赖轮询
	WebhookURL    string
	WebhookSecret string
}

func NewGenerationConfig(cfg config.Config) GenerationConfig {
	return GenerationConfig{
		ProcessingTimeout: cfg.ProcessingTimeout(),
		ResultTTL:         cfg.ResultTTL(),
		DispatchTimeout:   5 * time.Minute,
		PollBatchSize:     cfg.RenderPollBatchSize,
		PollConcurrency:   cfg.WorkerConcurrency,
		WebhookURL:        strings.TrimSpace(cfg.RenderWebhookURL),
		WebhookSecret:     strings.TrimSpace(cfg.RenderWebhookSecret),
	}
}

// GenerationService 渲染任务编排：幂等创建、派发给服务商、回调/轮询收尾
type GenerationService struct {
	repo       model.Repository
	provider   render.Provider
	storage    storage.Storage
	resolver   storage.URLResolver
	dispatcher queue.Dispatcher
	locker     locker.Locker
	bus        events.Bus
	httpClient *http.Client
	cfg        GenerationConfig
	now        func() time.Time
}

// NewGenerationService 默认使用进程内派发和进程内锁，部署多实例时通过 Set* 替换
func NewGenerationService(repo model.Repository, provider render.Provider, store storage.Storage, resolver storage.URLResolver, cfg GenerationConfig) *GenerationService {
	s := &GenerationService{
		repo:       repo,
		provider:   provider,
		storage:    store,
		resolver:   resolver,
		locker:     locker.NewLocalLocker(),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		cfg:        cfg,
		now:        time.Now,
	}
	inline := queue.NewInlineDispatcher(cfg.DispatchTimeout)
	inline.Bind(s)
	s.dispatcher = inline
	return s
}

func (s *GenerationService) SetDispatcher(d queue.Dispatcher) {
	if d != nil {
		s.dispatcher = d
	}
}

func (s *GenerationService) SetLocker(l locker.Locker) {
	if l != nil {
		s.locker = l
	}
}

// SetEventBus 设置任务状态变更的推送通道（用于 SSE）
func (s *GenerationService) SetEventBus(b events.Bus) {
	s.bus = b
}

func (s *GenerationService) ProviderName() string {
	return s.provider.Name()
}

// StartJob 为 subject 启动渲染任务。同一 subject 已有进行中或未过期的完成任务时直接返回该任务，
// 新建的任务异步派发，调用方立即拿到 pending 句柄。派发失败时返回已标记为 failed 的句柄和错误。
func (s *GenerationService) StartJob(ctx context.Context, subject entity.JobSubject, sourcePhoto string) (*entity.JobHandle, error) {
	if !subject.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedJobKind, subject.Kind)
	}
	if subject.UserID == 0 {
		return nil, ErrUserNotFound
	}

	photo, err := s.resolveSourcePhoto(ctx, subject.UserID, sourcePhoto)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadSubject(ctx, subject); err != nil {
		return nil, err
	}

	job, created, err := s.createJob(ctx, subject, photo)
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"job_id":     job.ID,
		"kind":       job.Kind,
		"subject_id": job.SubjectID,
		"user_id":    job.UserID,
		"status":     job.Status,
	}
	if !created {
		logrus.WithFields(fields).Info("render job reused")
		return newJobHandle(job, false), nil
	}
	logrus.WithFields(fields).Info("render job created")
	s.afterTransition(ctx, job)

	if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
		logrus.WithError(err).WithFields(fields).Error("failed to dispatch render job")
		// 请求可能已取消，落库不能依赖它
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		dispatchErr := fmt.Errorf("%w: %v", ErrProviderDispatchFailed, err)
		if failed := s.failJob(failCtx, job, ErrProviderDispatchFailed, err.Error()); failed != nil {
			return newJobHandle(failed, true), dispatchErr
		}
		return nil, dispatchErr
	}
	return newJobHandle(job, true), nil
}

// createJob 锁住 subject 后在事务内查找或插入
func (s *GenerationService) createJob(ctx context.Context, subject entity.JobSubject, photo string) (*entity.DbGenerationJob, bool, error) {
	unlock, err := s.locker.Lock(ctx, "job:"+subject.Key())
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", subject.Key(), err)
	}
	defer unlock()

	job := &entity.DbGenerationJob{
		Kind:        subject.Kind,
		SubjectID:   subject.SubjectID,
		UserID:      subject.UserID,
		SourcePhoto: photo,
		Provider:    s.provider.Name(),
	}
	return s.repo.CreateJobIfAbsent(ctx, job, s.now())
}

func (s *GenerationService) resolveSourcePhoto(ctx context.Context, userID uint, explicit string) (string, error) {
	if photo := strings.TrimSpace(explicit); photo != "" {
		return photo, nil
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	if photo := strings.TrimSpace(user.SourcePhoto); photo != "" {
		return photo, nil
	}
	return "", ErrNoSourcePhoto
}

// renderSubject 是渲染所需的 subject 信息
type renderSubject struct {
	images      []string
	description string
}

func (s *GenerationService) loadSubject(ctx context.Context, subject entity.JobSubject) (*renderSubject, error) {
	switch subject.Kind {
	case entity.JobKindLookImage:
		record, err := s.repo.GetLook(ctx, subject.SubjectID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLookNotFound
		}
		if err != nil {
			return nil, err
		}
		if record.UserID != subject.UserID {
			return nil, ErrLookNotFound
		}
		names := make([]string, 0, len(record.Items))
		for _, item := range record.Items {
			names = append(names, item.Name)
		}
		return &renderSubject{images: record.ImageURLs(), description: strings.Join(names, ", ")}, nil
	case entity.JobKindItemTryOn:
		item, err := s.repo.GetCatalogItem(ctx, subject.SubjectID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		if err != nil {
			return nil, err
		}
		var images []string
		if item.ImageURL != "" {
			images = []string{item.ImageURL}
		}
		return &renderSubject{images: images, description: item.Name}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedJobKind, subject.Kind)
	}
}

// ProcessDispatch 把 pending 任务交给服务商。重复投递或任务已离开 pending 时不做任何事。
func (s *GenerationService) ProcessDispatch(ctx context.Context, jobID uint) error {
	job, err := s.repo.GetJob(ctx, jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithField("job_id", jobID).Warn("render dispatch for unknown job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %d: %w", jobID, err)
	}
	if job.Status != entity.JobStatusPending {
		logrus.WithFields(logrus.Fields{
			"job_id": job.ID,
			"status": job.Status,
		}).Debug("render dispatch skipped")
		return nil
	}

	subject, err := s.loadSubject(ctx, job.Subject())
	if err != nil {
		s.failJob(ctx, job, ErrProviderDispatchFailed, err.Error())
		return nil
	}

	request := render.RenderRequest{
		Kind:          job.Kind,
		JobID:         job.ID,
		SourcePhoto:   job.SourcePhoto,
		SubjectImages: subject.images,
		Prompt:        render.BuildPrompt(job.Kind, subject.description),
		WebhookURL:    s.webhookURL(),
	}

	submission, err := s.provider.RequestRender(ctx, request)
	if err == nil && submission == nil {
		err = errors.New("provider returned no submission")
	}
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"job_id":   job.ID,
			"provider": s.provider.Name(),
		}).Error("render request failed")
		s.failJob(ctx, job, ErrProviderDispatchFailed, err.Error())
		return nil
	}

	providerName := s.provider.Name()
	startedAt := s.now()
	processing, err := s.repo.TransitionJob(ctx, job.ID, entity.JobStatusProcessing, entity.JobUpdates{
		Provider:      &providerName,
		ProviderJobID: &submission.ProviderJobID,
		StartedAt:     &startedAt,
	})
	if errors.Is(err, entity.ErrInvalidJobTransition) {
		logrus.WithError(err).WithField("job_id", job.ID).Warn("render job moved while dispatching")
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark job %d processing: %w", job.ID, err)
	}
	logrus.WithFields(logrus.Fields{
		"job_id":          processing.ID,
		"provider":        providerName,
		"provider_job_id": submission.ProviderJobID,
	}).Info("render job accepted by provider")
	s.afterTransition(ctx, processing)

	// 同步服务商直接给出结果
	if submission.Done() {
		return s.applySubmission(ctx, processing, submission)
	}
	return nil
}

func (s *GenerationService) webhookURL() string {
	if s.cfg.WebhookURL == "" {
		return ""
	}
	// 没有密钥时回调接口不开放，只依赖轮询
	if s.cfg.WebhookSecret == "" {
		return ""
	}
	return strings.TrimRight(s.cfg.WebhookURL, "/") + "/" + url.PathEscape(s.provider.Name()) +
		"?token=" + url.QueryEscape(s.cfg.WebhookSecret)
}

// HandleWebhook 校验并应用服务商回调
func (s *GenerationService) HandleWebhook(ctx context.Context, providerName, token string, body []byte) error {
	if s.cfg.WebhookSecret == "" {
		return fmt.Errorf("%w: webhook secret not configured", ErrWebhookUnsupported)
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.WebhookSecret)) != 1 {
		return ErrInvalidWebhookToken
	}
	if !strings.EqualFold(providerName, s.provider.Name()) {
		return fmt.Errorf("%w: %s", ErrWebhookUnsupported, providerName)
	}
	parser, ok := s.provider.(render.WebhookParser)
	if !ok {
		return fmt.Errorf("%w: %s", ErrWebhookUnsupported, providerName)
	}
	submission, err := parser.ParseWebhook(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
	}
	return s.ApplyProviderUpdate(ctx, s.provider.Name(), submission)
}

// ApplyProviderUpdate 根据服务商上报的任务状态推进本地任务
func (s *GenerationService) ApplyProviderUpdate(ctx context.Context, providerName string, submission *render.Submission) error {
	if submission == nil || strings.TrimSpace(submission.ProviderJobID) == "" {
		return fmt.Errorf("%w: missing provider job id", ErrInvalidWebhookPayload)
	}
	job, err := s.repo.FindJobByProviderJobID(ctx, providerName, submission.ProviderJobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 回调可能早于 processing 状态落库，这种任务由下一轮轮询收尾
		logrus.WithFields(logrus.Fields{
			"provider":        providerName,
			"provider_job_id": submission.ProviderJobID,
			"status":          submission.Status,
		}).Warn("render callback for unknown provider job")
		return ErrJobNotFound
	}
	if err != nil {
		return err
	}
	return s.applySubmission(ctx, job, submission)
}

// PollProcessingJobs 向服务商查询所有 processing 任务的进度
func (s *GenerationService) PollProcessingJobs(ctx context.Context) error {
	jobs, err := s.repo.ListJobsByStatus(ctx, entity.JobStatusProcessing, s.cfg.PollBatchSize)
	if err != nil {
		return fmt.Errorf("list processing jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	limit := s.cfg.PollConcurrency
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	providerName := s.provider.Name()
	for i := range jobs {
		job := &jobs[i]
		if job.Provider != providerName {
			continue
		}
		g.Go(func() error {
			submission, err := s.provider.Poll(gctx, job.ProviderJobID)
			if errors.Is(err, render.ErrPollUnsupported) {
				return nil
			}
			if err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"job_id":          job.ID,
					"provider_job_id": job.ProviderJobID,
				}).Warn("render poll failed")
				return nil
			}
			if err := s.applySubmission(gctx, job, submission); err != nil {
				logrus.WithError(err).WithField("job_id", job.ID).Warn("failed to apply polled render status")
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *GenerationService) applySubmission(ctx context.Context, job *entity.DbGenerationJob, submission *render.Submission) error {
	if job.Status != entity.JobStatusProcessing || !submission.Done() {
		return nil
	}
	switch submission.Status {
	case render.TaskStatusSucceeded:
		return s.completeJob(ctx, job, submission.Outputs)
	default:
		detail := strings.TrimSpace(submission.Error)
		if detail == "" {
			detail = string(submission.Status)
		}
		s.failJob(ctx, job, ErrProviderRenderFailed, detail)
		return nil
	}
}

// completeJob 结果写入存储后再标记完成；远程结果存储失败时退回使用服务商地址
func (s *GenerationService) completeJob(ctx context.Context, job *entity.DbGenerationJob, outputs []string) error {
	var output string
	for _, candidate := range outputs {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			output = candidate
			break
		}
	}
	if output == "" {
		s.failJob(ctx, job, ErrProviderRenderFailed, render.ErrNoOutput.Error())
		return nil
	}

	resultRef, err := s.storeResult(ctx, job, output)
	if err != nil {
		s.failJob(ctx, job, ErrProviderRenderFailed, err.Error())
		return nil
	}

	now := s.now()
	updates := entity.JobUpdates{ResultRef: &resultRef, CompletedAt: &now}
	if s.cfg.ResultTTL > 0 {
		expiresAt := now.Add(s.cfg.ResultTTL)
		updates.ExpiresAt = &expiresAt
	}
	completed, err := s.repo.TransitionJob(ctx, job.ID, entity.JobStatusCompleted, updates)
	if errors.Is(err, entity.ErrInvalidJobTransition) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark job %d completed: %w", job.ID, err)
	}
	logrus.WithFields(logrus.Fields{
		"job_id":     completed.ID,
		"kind":       completed.Kind,
		"result_ref": completed.ResultRef,
	}).Info("render job completed")
	s.afterTransition(ctx, completed)
	return nil
}

func (s *GenerationService) storeResult(ctx context.Context, job *entity.DbGenerationJob, output string) (string, error) {
	key, err := storage.StoreMedia(ctx, s.storage, s.httpClient, output, storage.SaveOptions{
		Category: storage.CategoryRenders,
		BaseName: fmt.Sprintf("%s_%d_%d", job.Kind, job.ID, s.now().UTC().UnixNano()),
	})
	if err == nil {
		return s.resolver.Resolve(key), nil
	}
	if utils.IsRemoteURL(output) {
		logrus.WithError(err).WithField("job_id", job.ID).Warn("failed to persist render result, keeping provider url")
		return output, nil
	}
	return "", fmt.Errorf("store result: %w", err)
}

// failJob 把任务标记为失败；任务已是终态时只记录日志
// failJob 返回落库后的任务，状态已无法迁移时返回 nil
func (s *GenerationService) failJob(ctx context.Context, job *entity.DbGenerationJob, kind error, detail string) *entity.DbGenerationJob {
	message := jobError(kind, detail)
	now := s.now()
	failed, err := s.repo.TransitionJob(ctx, job.ID, entity.JobStatusFailed, entity.JobUpdates{
		ErrorMessage: &message,
		CompletedAt:  &now,
	})
	if err != nil {
		logrus.WithError(err).WithField("job_id", job.ID).Warn("failed to mark render job failed")
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"job_id": failed.ID,
		"kind":   failed.Kind,
		"error":  message,
	}).Warn("render job failed")
	sentry.CaptureException(fmt.Errorf("render job %d: %s", failed.ID, message))
	s.afterTransition(ctx, failed)
	return failed
}

// afterTransition 同步 look 的生成状态并推送事件
func (s *GenerationService) afterTransition(ctx context.Context, job *entity.DbGenerationJob) {
	if job.Kind == entity.JobKindLookImage {
		status := job.Status
		updates := entity.LookGenerationUpdates{GenerationStatus: &status}
		if job.Status == entity.JobStatusCompleted {
			image := job.ResultRef
			updates.ImageURL = &image
		}
		if err := s.repo.UpdateLookGeneration(ctx, job.SubjectID, updates); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"job_id":  job.ID,
				"look_id": job.SubjectID,
			}).Warn("failed to update look generation status")
		}
	}

	if s.bus == nil {
		return
	}
	event := entity.JobEvent{
		JobID:     job.ID,
		UserID:    job.UserID,
		Kind:      job.Kind,
		SubjectID: job.SubjectID,
		Status:    job.Status,
		ResultRef: job.ResultRef,
		Error:     job.ErrorMessage,
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithField("job_id", job.ID).Warn("failed to publish job event")
	}
}

func newJobHandle(job *entity.DbGenerationJob, created bool) *entity.JobHandle {
	return &entity.JobHandle{
		JobID:     job.ID,
		Kind:      job.Kind,
		SubjectID: job.SubjectID,
		Status:    job.Status,
		Created:   created,
		ResultRef: job.ResultRef,
		Error:     job.ErrorMessage,
	}
}

var _ queue.Processor = (*GenerationService)(nil)
