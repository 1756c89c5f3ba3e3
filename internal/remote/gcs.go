package remote

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/dil-lms/offline-engine/internal/platform/logger"
)

const DefaultSignedURLTTL = 1 * time.Hour

// GCSStorage signs short-lived download URLs for media objects in a bucket.
type GCSStorage struct {
	client *storage.Client
	bucket string
	ttl    time.Duration
	log    *logger.Logger
}

func NewGCSStorage(ctx context.Context, bucket string, ttl time.Duration, baseLog *logger.Logger) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("object storage bucket not configured")
	}
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	opts := clientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStorage{
		client: client,
		bucket: bucket,
		ttl:    ttl,
		log:    baseLog.With("service", "remote.storage"),
	}, nil
}

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

// CreateSignedURL returns a V4-signed GET URL for the object path, valid for
// the configured TTL.
func (g *GCSStorage) CreateSignedURL(_ context.Context, objectPath string) (string, error) {
	objectPath = strings.TrimPrefix(objectPath, "/")
	if objectPath == "" {
		return "", fmt.Errorf("empty object path")
	}
	url, err := g.client.Bucket(g.bucket).SignedURL(objectPath, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(g.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign url for %s: %w", objectPath, err)
	}
	return url, nil
}

func (g *GCSStorage) Close() error {
	return g.client.Close()
}
