package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"stackit/internal/domain"
	"stackit/internal/storage"
)

// UploadConfig points uploads at a bucket.
type UploadConfig struct {
	Bucket    string
	KeyPrefix string
	MaxBytes  int64
	URLExpiry time.Duration
}

// Upload describes a stored image.
type Upload struct {
	Key      string
	Location string
	URL      string
	Size     int64
}

// UploadService stores images referenced from question and answer bodies.
type UploadService interface {
	UploadImage(ctx context.Context, user *domain.User, filename, contentType string, size int64, body io.Reader) (*Upload, error)
	ListImages(ctx context.Context, user *domain.User) ([]Upload, error)
}

type uploadService struct {
	store storage.Service
	cfg   UploadConfig
}

func NewUploadService(store storage.Service, cfg UploadConfig) UploadService {
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = time.Hour
	}
	return &uploadService{store: store, cfg: cfg}
}

func (s *uploadService) UploadImage(ctx context.Context, user *domain.User, filename, contentType string, size int64, body io.Reader) (*Upload, error) {
	if err := requireContributor(user); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, fmt.Errorf("only image files are allowed: %w", domain.ErrValidation)
	}
	if s.cfg.MaxBytes > 0 && size > s.cfg.MaxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes: %w", s.cfg.MaxBytes, domain.ErrValidation)
	}

	key := path.Join(s.userPrefix(user), uuid.NewString()+strings.ToLower(path.Ext(filename)))
	location, err := s.store.PutObject(ctx, body, storage.PutOptions{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		ContentType: contentType,
	})
	if err != nil {
		return nil, err
	}
	url, err := s.store.GetObjectURL(ctx, s.cfg.Bucket, key, s.cfg.URLExpiry)
	if err != nil {
		return nil, err
	}

	return &Upload{Key: key, Location: location, URL: url, Size: size}, nil
}

func (s *uploadService) ListImages(ctx context.Context, user *domain.User) ([]Upload, error) {
	if err := requireContributor(user); err != nil {
		return nil, err
	}
	objects, err := s.store.ListObjects(ctx, s.cfg.Bucket, s.userPrefix(user)+"/")
	if err != nil {
		return nil, err
	}

	uploads := make([]Upload, 0, len(objects))
	for _, obj := range objects {
		url, err := s.store.GetObjectURL(ctx, s.cfg.Bucket, obj.Key, s.cfg.URLExpiry)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, Upload{
			Key:      obj.Key,
			Location: fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, obj.Key),
			URL:      url,
			Size:     obj.Size,
		})
	}
	return uploads, nil
}

func (s *uploadService) userPrefix(user *domain.User) string {
	return path.Join(s.cfg.KeyPrefix, fmt.Sprintf("user-%d", user.ID))
}
