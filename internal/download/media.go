package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dil-lms/offline-engine/internal/types"
)

// fetchBlob GETs one media object with its own timeout so a stalled object
// cannot hang the whole pipeline.
func (s *Service) fetchBlob(ctx context.Context, url string, timeout time.Duration) ([]byte, string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body of %s: %w", url, err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return blob, mimeType, nil
}

func formatFromMIME(mimeType string) string {
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" {
		return sub
	}
	return "mp4"
}

func classifyAsset(mimeType string) types.AssetType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return types.AssetTypeImage
	case strings.HasPrefix(mimeType, "audio/"):
		return types.AssetTypeAudio
	case strings.Contains(mimeType, "pdf"), strings.Contains(mimeType, "document"):
		return types.AssetTypeDocument
	default:
		return types.AssetTypeOther
	}
}

func fileExtension(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 && i < len(path)-1 {
		return strings.ToLower(path[i+1:])
	}
	return "bin"
}
