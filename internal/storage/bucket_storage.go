package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// objectBackend 是各家对象存储 SDK 的最小写入接口
type objectBackend interface {
	Name() string
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// bucketStorage 为远端对象存储生成 key 并写入，返回的 key 含桶内前缀
type bucketStorage struct {
	backend objectBackend
	prefix  string
	now     func() time.Time
}

func newBucketStorage(backend objectBackend, prefix string) *bucketStorage {
	return &bucketStorage{backend: backend, prefix: prefix, now: time.Now}
}

func (s *bucketStorage) Save(ctx context.Context, data []byte, opts SaveOptions) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := withPrefix(s.prefix, objectKey(opts, s.now()))
	if err := s.backend.PutObject(ctx, key, data, contentTypeFor(opts.Extension)); err != nil {
		return "", fmt.Errorf("%s put object: %w", s.backend.Name(), err)
	}
	logrus.WithFields(logrus.Fields{
		"backend": s.backend.Name(),
		"key":     key,
		"bytes":   len(data),
	}).Debug("object stored")
	return key, nil
}

var _ Storage = (*bucketStorage)(nil)
