package app

import (
	"strings"
	"time"

	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/utils"
)

type Config struct {
	Addr           string
	StorePath      string
	CatalogDSN     string
	StorageBucket  string
	SignedURLTTL   time.Duration
	FetchTimeout   time.Duration
	AllowedOrigins []string
}

func LoadConfig(log *logger.Logger) Config {
	addr := utils.GetEnv("HTTP_ADDR", ":8080", log)
	storePath := utils.GetEnv("STORE_PATH", "offline-courses.db", log)
	catalogDSN := utils.GetEnv("CATALOG_DSN", "", log)
	bucket := utils.GetEnv("STORAGE_BUCKET", "dil-lms", log)
	signedURLTTLSeconds := utils.GetEnvAsInt("SIGNED_URL_TTL", 3600, log)
	fetchTimeoutSeconds := utils.GetEnvAsInt("MEDIA_FETCH_TIMEOUT", 120, log)
	origins := utils.GetEnv("ALLOWED_ORIGINS", "http://localhost:3000", log)

	return Config{
		Addr:           addr,
		StorePath:      storePath,
		CatalogDSN:     catalogDSN,
		StorageBucket:  bucket,
		SignedURLTTL:   time.Duration(signedURLTTLSeconds) * time.Second,
		FetchTimeout:   time.Duration(fetchTimeoutSeconds) * time.Second,
		AllowedOrigins: splitOrigins(origins),
	}
}

func splitOrigins(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
