package download

import "context"

// BlobTransform post-processes fetched media bytes before they are stored,
// e.g. recompression or transcoding. Implementations report the resulting
// compression ratio (original/transformed); identity transforms report 1.
type BlobTransform interface {
	Transform(ctx context.Context, blob []byte, mimeType string) (out []byte, ratio float64, err error)
}

// IdentityTransform stores media exactly as fetched.
type IdentityTransform struct{}

func (IdentityTransform) Transform(_ context.Context, blob []byte, _ string) ([]byte, float64, error) {
	return blob, 1, nil
}
