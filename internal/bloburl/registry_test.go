package bloburl

import (
	"strings"
	"testing"
)

func TestCreateResolveRevoke(t *testing.T) {
	r := NewRegistry()

	blob := []byte("media-bytes")
	url := r.Create(blob)
	if !strings.HasPrefix(url, Scheme) {
		t.Fatalf("url %q missing scheme prefix", url)
	}

	got, ok := r.Resolve(url)
	if !ok || string(got) != "media-bytes" {
		t.Fatalf("Resolve = %q, %v", got, ok)
	}

	r.Revoke(url)
	if _, ok := r.Resolve(url); ok {
		t.Fatal("revoked url still resolves")
	}
	// Revoking again is a no-op.
	r.Revoke(url)
}

func TestResolveForeignURL(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Resolve("https://example.com/video.mp4"); ok {
		t.Fatal("foreign url resolved")
	}
	if _, ok := r.Resolve(Scheme + "unknown"); ok {
		t.Fatal("unknown blob url resolved")
	}
}

func TestURLsAreUnique(t *testing.T) {
	r := NewRegistry()
	a := r.Create([]byte("a"))
	b := r.Create([]byte("a"))
	if a == b {
		t.Fatalf("identical blobs must get distinct urls: %s", a)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
}

func TestRevokeAll(t *testing.T) {
	r := NewRegistry()
	urls := []string{r.Create([]byte("a")), r.Create([]byte("b")), r.Create([]byte("c"))}

	r.RevokeAll()
	if r.Len() != 0 {
		t.Fatalf("Len after RevokeAll = %d", r.Len())
	}
	for _, url := range urls {
		if _, ok := r.Resolve(url); ok {
			t.Fatalf("url %s survived RevokeAll", url)
		}
	}
}
