// Package artifact stores serialized model blobs. The registry layers
// versioning on top; this package only moves bytes.
package artifact

import "context"

// Store is a flat keyed blob store.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}
