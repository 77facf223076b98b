package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/sirupsen/logrus"
)

const (
	DispatchModeInline = "inline"
	DispatchModeAsynq  = "asynq"
)

type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	SentryDSN   string `env:"SENTRY_DSN" envDefault:""`

	// 逗号分隔，为空或包含 * 时允许所有来源
	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:","`

	DBType     string `env:"DBType" envDefault:"sqlite"`
	DSNURL     string `env:"DSN_URL" envDefault:""`
	DBUser     string `env:"DBUser" envDefault:""`
	DBPassword string `env:"DBPassword" envDefault:""`
	DBAddr     string `env:"DBAddr" envDefault:""`
	DBName     string `env:"DBName" envDefault:"stylist"`
	DBPath     string `env:"DBPath" envDefault:"datas/stylist.db"`
	DBPort     string `env:"DBPort" envDefault:"3306"`

	SeedDemoCatalog bool `env:"SEED_DEMO_CATALOG" envDefault:"true"`

	StorageType          string `env:"STORAGE_TYPE" envDefault:"local"`
	StorageLocalDir      string `env:"STORAGE_LOCAL_DIR" envDefault:"datas/renders"`
	StoragePublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" envDefault:"/files"`

	// S3 兼容存储配置
	StorageS3Region          string `env:"STORAGE_S3_REGION"`
	StorageS3Bucket          string `env:"STORAGE_S3_BUCKET"`
	StorageS3Prefix          string `env:"STORAGE_S3_PREFIX"`
	StorageS3Endpoint        string `env:"STORAGE_S3_ENDPOINT"`
	StorageS3AccessKeyID     string `env:"STORAGE_S3_ACCESS_KEY_ID"`
	StorageS3SecretAccessKey string `env:"STORAGE_S3_SECRET_ACCESS_KEY"`
	StorageS3SessionToken    string `env:"STORAGE_S3_SESSION_TOKEN"`
	StorageS3ForcePathStyle  bool   `env:"STORAGE_S3_FORCE_PATH_STYLE" envDefault:"false"`

	// 阿里云 OSS 存储配置
	StorageOSSEndpoint        string `env:"STORAGE_OSS_ENDPOINT"`
	StorageOSSBucket          string `env:"STORAGE_OSS_BUCKET"`
	StorageOSSPrefix          string `env:"STORAGE_OSS_PREFIX"`
	StorageOSSAccessKeyID     string `env:"STORAGE_OSS_ACCESS_KEY_ID"`
	StorageOSSAccessKeySecret string `env:"STORAGE_OSS_ACCESS_KEY_SECRET"`

	// 腾讯云 COS 存储配置
	StorageCOSBucketURL string `env:"STORAGE_COS_BUCKET_URL"`
	StorageCOSPrefix    string `env:"STORAGE_COS_PREFIX"`
	StorageCOSSecretID  string `env:"STORAGE_COS_SECRET_ID"`
	StorageCOSSecretKey string `env:"STORAGE_COS_SECRET_KEY"`

	// Cloudflare R2 存储配置
	StorageR2AccountID       string `env:"STORAGE_R2_ACCOUNT_ID"`
	StorageR2Endpoint        string `env:"STORAGE_R2_ENDPOINT"`
	StorageR2Region          string `env:"STORAGE_R2_REGION" envDefault:"auto"`
	StorageR2Bucket          string `env:"STORAGE_R2_BUCKET"`
	StorageR2Prefix          string `env:"STORAGE_R2_PREFIX"`
	StorageR2AccessKeyID     string `env:"STORAGE_R2_ACCESS_KEY_ID"`
	StorageR2SecretAccessKey string `env:"STORAGE_R2_SECRET_ACCESS_KEY"`

	// 渲染服务商
	RenderProvider      string `env:"RENDER_PROVIDER" envDefault:"stub"`
	RenderModel         string `env:"RENDER_MODEL" envDefault:""`
	RenderWebhookURL    string `env:"RENDER_WEBHOOK_URL" envDefault:""`
	RenderWebhookSecret string `env:"RENDER_WEBHOOK_SECRET" envDefault:""`
	GeminiAPIKey        string `env:"GEMINI_API_KEY" envDefault:""`
	VolcengineAPIKey    string `env:"VOLCENGINE_API_KEY" envDefault:""`
	FalAPIKey           string `env:"FAL_KEY" envDefault:""`

	// 任务调度
	DispatchMode              string `env:"DISPATCH_MODE" envDefault:"inline"`
	RedisAddr                 string `env:"REDIS_ADDR" envDefault:""`
	RedisPassword             string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB                   int    `env:"REDIS_DB" envDefault:"0"`
	RedisEventChannel         string `env:"REDIS_EVENT_CHANNEL" envDefault:"stylist:job-events"`
	WorkerConcurrency         int    `env:"WORKER_CONCURRENCY" envDefault:"10"`
	RenderPollIntervalSeconds int    `env:"RENDER_POLL_INTERVAL_SECONDS" envDefault:"15"`
	RenderPollBatchSize       int    `env:"RENDER_POLL_BATCH_SIZE" envDefault:"50"`
	JobProcessingTimeoutMins  int    `env:"JOB_PROCESSING_TIMEOUT_MINUTES" envDefault:"15"`
	JobResultTTLHours         int    `env:"JOB_RESULT_TTL_HOURS" envDefault:"0"`

	CatalogCacheTTLSeconds int `env:"CATALOG_CACHE_TTL_SECONDS" envDefault:"60"`

	JWTSecret            string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"stylist-app"`
	JWTExpirationMinutes int    `env:"JWT_EXPIRATION_MINUTES" envDefault:"1440"`
}

// ProcessingTimeout 超过该时长仍处于 processing 的任务在展示层视为失败。
func (c Config) ProcessingTimeout() time.Duration {
	if c.JobProcessingTimeoutMins <= 0 {
		return 0
	}
	return time.Duration(c.JobProcessingTimeoutMins) * time.Minute
}

// ResultTTL 为 0 表示结果永不过期。
func (c Config) ResultTTL() time.Duration {
	if c.JobResultTTLHours <= 0 {
		return 0
	}
	return time.Duration(c.JobResultTTLHours) * time.Hour
}

func (c Config) PollInterval() time.Duration {
	if c.RenderPollIntervalSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.RenderPollIntervalSeconds) * time.Second
}

func (c Config) CatalogCacheTTL() time.Duration {
	if c.CatalogCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.CatalogCacheTTLSeconds) * time.Second
}

func ParseConfig() (Config, error) {
	var conf Config
	err := env.Parse(&conf)
	if err != nil {
		logrus.WithError(err).Error("env.Parse error")
		return Config{}, err
	}
	logrus.WithFields(logrus.Fields{
		"db_type":         conf.DBType,
		"storage_type":    conf.StorageType,
		"render_provider": conf.RenderProvider,
		"dispatch_mode":   conf.DispatchMode,
	}).Debug("config loaded")
	return conf, nil
}
