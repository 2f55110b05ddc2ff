// Package objstore defines the unified interface for object storage backends.
//
// All providers (MinIO/S3, in-memory, …) implement the Store interface.
// A Store is bound to a single bucket at construction time; callers work in
// key space only and depend on this package — never on a provider package.
//
// Usage:
//
//	cfg := objstore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin", "render-assets")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	objects, err := store.List(ctx, objstore.ListOptions{Prefix: "input/", Recursive: true})
package objstore

import (
	"context"
	"io"
	"time"
)

// Store is the single interface all object storage providers must implement.
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Ping verifies the storage backend is reachable and the configured
	// bucket exists.
	Ping(ctx context.Context) error

	// Close releases any held resources (connections, goroutines, etc.).
	Close() error

	// Bucket returns the name of the bucket this store is bound to.
	Bucket() string

	// List returns the objects that match opts. Folder markers (keys ending
	// in "/") are included and flagged via ObjectInfo.IsMarker.
	List(ctx context.Context, opts ListOptions) ([]ObjectInfo, error)

	// Stat returns metadata for the object at key without downloading
	// its content.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Get opens a streaming handle to the object at key.
	// The caller MUST call Object.Close() after reading.
	Get(ctx context.Context, key string) (Object, error)

	// Put writes size bytes from r to the object at key. Pass size -1 when
	// the length is unknown. A zero-byte Put on a key ending in "/" creates
	// a folder marker.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)

	// FGet downloads the object at key into the local file at localPath,
	// creating parent directories as needed.
	FGet(ctx context.Context, key, localPath string) error

	// FPut uploads the local file at localPath to the object at key.
	FPut(ctx context.Context, key, localPath string) (*ObjectInfo, error)

	// Remove deletes the object at key. Removing a missing key is not
	// an error.
	Remove(ctx context.Context, key string) error

	// PresignGet returns a time-limited URL that allows anyone to download
	// the object at key without credentials.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// GetBytes reads the object at key fully into memory.
// Convenience wrapper for callers that need the whole payload at once.
func GetBytes(ctx context.Context, s Store, key string) ([]byte, error) {
	obj, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}
