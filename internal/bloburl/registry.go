// Package bloburl hands out opaque in-memory URLs for media blobs held by
// the offline store, so callers can reference downloaded bytes without the
// store leaking raw slices into long-lived caches.
package bloburl

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const Scheme = "blob:mem/"

type Registry struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewRegistry() *Registry {
	return &Registry{blobs: make(map[string][]byte)}
}

// Create registers the blob and returns a unique blob:mem URL for it.
func (r *Registry) Create(blob []byte) string {
	url := Scheme + uuid.NewString()
	r.mu.Lock()
	r.blobs[url] = blob
	r.mu.Unlock()
	return url
}

// Resolve returns the bytes behind a URL issued by Create. The second return
// is false for revoked or foreign URLs.
func (r *Registry) Resolve(url string) ([]byte, bool) {
	if !strings.HasPrefix(url, Scheme) {
		return nil, false
	}
	r.mu.RLock()
	blob, ok := r.blobs[url]
	r.mu.RUnlock()
	return blob, ok
}

// Revoke releases one URL. Revoking an unknown URL is a no-op.
func (r *Registry) Revoke(url string) {
	r.mu.Lock()
	delete(r.blobs, url)
	r.mu.Unlock()
}

// RevokeAll releases every issued URL.
func (r *Registry) RevokeAll() {
	r.mu.Lock()
	r.blobs = make(map[string][]byte)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}
