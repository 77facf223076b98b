package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"stylist/internal/config"
	"stylist/internal/utils"
)

const (
	// TypeLocal 表示本地文件系统存储。
	TypeLocal = "local"
	// TypeS3 表示 Amazon S3 或兼容的存储后端。
	TypeS3 = "s3"
	// TypeOSS 表示阿里云 OSS 存储。
	TypeOSS = "oss"
	// TypeCOS 表示腾讯云 COS 存储。
	TypeCOS = "cos"
	// TypeR2 表示 Cloudflare R2 存储。
	TypeR2 = "r2"
)

// 业务使用的存储目录
const (
	CategoryRenders      = "renders"
	CategorySourcePhotos = "source-photos"
)

// SaveOptions 决定对象 key：Category 为顶层目录，BaseName 为文件名，Extension 不含前导点，为空时写 .bin
type SaveOptions struct {
	Category  string
	Extension string
	BaseName  string
}

// Storage 是持久化二进制数据并返回存储特定标识符的抽象（例如本地存储的相对路径）。
type Storage interface {
	Save(ctx context.Context, data []byte, opts SaveOptions) (string, error)
}

// LocalBaseDirProvider 由暴露可通过 HTTP 直接提供服务的本地目录的存储驱动实现。
type LocalBaseDirProvider interface {
	LocalBaseDir() string
}

// NewStorage 根据配置实例化存储后端。
func NewStorage(cfg config.Config) (Storage, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch typeName {
	case "", TypeLocal:
		return NewLocalStorage(cfg.StorageLocalDir)
	case TypeS3:
		return NewS3Storage(cfg)
	case TypeOSS:
		return NewOSSStorage(cfg)
	case TypeCOS:
		return NewCOSStorage(cfg)
	case TypeR2:
		return NewR2Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}

// StoreMedia 将 URL 或内联图片写入存储并返回存储 key。
func StoreMedia(ctx context.Context, st Storage, client *http.Client, ref string, opts SaveOptions) (string, error) {
	if st == nil {
		return "", fmt.Errorf("storage not configured")
	}
	data, ext, err := utils.FetchMedia(ctx, client, ref)
	if err != nil {
		return "", err
	}
	if opts.Extension == "" {
		opts.Extension = ext
	}
	return st.Save(ctx, data, opts)
}

// URLResolver 把存储 key 转换为客户端可访问的地址。
type URLResolver struct {
	baseURL string
}

func NewURLResolver(baseURL string) URLResolver {
	return URLResolver{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

// Resolve 已经是完整 URL 或 data URL 时原样返回。
func (r URLResolver) Resolve(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || utils.IsRemoteURL(key) || strings.HasPrefix(key, "data:") {
		return key
	}
	if r.baseURL == "" {
		return "/" + strings.TrimLeft(key, "/")
	}
	return r.baseURL + "/" + strings.TrimLeft(key, "/")
}
