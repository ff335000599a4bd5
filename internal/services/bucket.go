package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

// BucketService fronts the object store. Each file class maps to its own
// bucket so covers, EPUBs and profile images keep separate lifecycle rules.
type BucketService interface {
	SignedPutURL(ctx context.Context, class string, key string, contentType string) (string, error)
	SignedGetURL(ctx context.Context, class string, key string) (string, error)
	Upload(ctx context.Context, class string, key string, contentType string, data []byte) error
	Delete(ctx context.Context, class string, key string) error
	PublicURL(class string, key string) string
}

type bucketService struct {
	log       *logger.Logger
	client    *storage.Client
	buckets   map[string]string
	cdnDomain string
	signTTL   time.Duration
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")
	buckets := map[string]string{
		types.FileGroupEpub:    os.Getenv("GCS_BUCKET_EPUB"),
		types.FileGroupCover:   os.Getenv("GCS_BUCKET_COVER"),
		types.FileGroupProfile: os.Getenv("GCS_BUCKET_PROFILE"),
	}
	for class, name := range buckets {
		if name == "" {
			return nil, fmt.Errorf("missing bucket env var for file class %q", class)
		}
	}
	cdnDomain := os.Getenv("CDN_DOMAIN")
	saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")
	if saPath == "" {
		serviceLog.Warn("GOOGLE_APPLICATION_CREDENTIALS_JSON not set, falling back to ADC")
	}
	ctx := context.Background()
	var client *storage.Client
	var err error
	if saPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
	} else {
		client, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &bucketService{
		log:       serviceLog,
		client:    client,
		buckets:   buckets,
		cdnDomain: cdnDomain,
		signTTL:   15 * time.Minute,
	}, nil
}

func (bs *bucketService) bucketFor(class string) (string, error) {
	name, ok := bs.buckets[class]
	if !ok {
		return "", fmt.Errorf("unknown file class %q", class)
	}
	return name, nil
}

func (bs *bucketService) SignedPutURL(_ context.Context, class string, key string, contentType string) (string, error) {
	name, err := bs.bucketFor(class)
	if err != nil {
		return "", err
	}
	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     time.Now().Add(bs.signTTL),
	}
	url, err := bs.client.Bucket(name).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("failed to sign PUT url for %q: %w", key, err)
	}
	return url, nil
}

func (bs *bucketService) SignedGetURL(_ context.Context, class string, key string) (string, error) {
	name, err := bs.bucketFor(class)
	if err != nil {
		return "", err
	}
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(bs.signTTL),
	}
	url, err := bs.client.Bucket(name).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("failed to sign GET url for %q: %w", key, err)
	}
	return url, nil
}

func (bs *bucketService) Upload(ctx context.Context, class string, key string, contentType string, data []byte) error {
	name, err := bs.bucketFor(class)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := bs.client.Bucket(name).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish object %q: %w", key, err)
	}
	return nil
}

func (bs *bucketService) Delete(ctx context.Context, class string, key string) error {
	name, err := bs.bucketFor(class)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bs.client.Bucket(name).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}
	return nil
}

func (bs *bucketService) PublicURL(class string, key string) string {
	if bs.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s/%s", bs.cdnDomain, class, key)
	}
	name, err := bs.bucketFor(class)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", name, key)
}
