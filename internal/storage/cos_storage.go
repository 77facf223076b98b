package storage

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"stylist/internal/config"

	"github.com/tencentyun/cos-go-sdk-v5"
)

type cosBackend struct {
	client *cos.Client
}

func (b *cosBackend) Name() string {
	return TypeCOS
}

func (b *cosBackend) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	resp, err := b.client.Object.Put(ctx, key, bytes.NewReader(data), &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType},
	})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return err
}

func NewCOSStorage(cfg config.Config) (Storage, error) {
	bucketURL, err := url.Parse(strings.TrimSpace(cfg.StorageCOSBucketURL))
	if err != nil || bucketURL.Host == "" {
		return nil, errors.New("storage: COS bucket URL must be an absolute URL")
	}
	secretID := strings.TrimSpace(cfg.StorageCOSSecretID)
	secretKey := strings.TrimSpace(cfg.StorageCOSSecretKey)
	if secretID == "" || secretKey == "" {
		return nil, errors.New("storage: missing COS credentials")
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{SecretID: secretID, SecretKey: secretKey},
	})
	return newBucketStorage(&cosBackend{client: client}, cfg.StorageCOSPrefix), nil
}
