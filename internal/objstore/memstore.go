package objstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/renderstack/mediastage/internal/errs"
)

// MemStore is an in-process Store implementation useful for tests, examples
// and single-process prototypes. It keeps all objects in a map guarded by an
// RWMutex and copies data on put / get to avoid accidental external mutation
// of internal buffers.
//
// It does not enforce size quotas or eviction. For production use a durable
// backend (see the minio subpackage).
type MemStore struct {
	bucket  string
	mu      sync.RWMutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
	etag        string
	modified    time.Time
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store bound to bucket.
func NewMemStore(bucket string) *MemStore {
	return &MemStore{
		bucket:  bucket,
		objects: make(map[string]memObject),
	}
}

// Ping always succeeds.
func (m *MemStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (m *MemStore) Close() error {
	return nil
}

// Bucket returns the bucket name this store was created with.
func (m *MemStore) Bucket() string {
	return m.bucket
}

// List returns objects under opts.Prefix in lexicographic key order,
// matching S3 listing semantics. When opts.Recursive is false, keys below
// the first "/" past the prefix are collapsed into a single marker entry.
func (m *MemStore) List(ctx context.Context, opts ListOptions) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, opts.Prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var results []ObjectInfo
	seenPrefixes := make(map[string]bool)

	for _, key := range keys {
		if !opts.Recursive {
			rest := strings.TrimPrefix(key, opts.Prefix)
			if i := strings.Index(rest, "/"); i >= 0 && i < len(rest)-1 {
				dir := opts.Prefix + rest[:i+1]
				if seenPrefixes[dir] {
					continue
				}
				seenPrefixes[dir] = true
				results = append(results, ObjectInfo{Key: dir, IsMarker: true})
				if opts.Limit > 0 && len(results) >= opts.Limit {
					break
				}
				continue
			}
		}

		obj := m.objects[key]
		results = append(results, ObjectInfo{
			Key:          key,
			Size:         int64(len(obj.data)),
			ContentType:  obj.contentType,
			ETag:         obj.etag,
			LastModified: obj.modified,
			IsMarker:     IsMarkerKey(key),
		})
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
	}

	return results, nil
}

// Stat returns metadata for the object at key.
func (m *MemStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("object %q not found", key))
	}
	info := m.infoFor(key, obj)
	return &info, nil
}

// Get opens a handle over a copy of the stored bytes.
func (m *MemStore) Get(ctx context.Context, key string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("object %q not found", key))
	}

	cp := make([]byte, len(obj.data))
	copy(cp, obj.data)
	info := m.infoFor(key, obj)

	return &memHandle{
		ReadCloser: io.NopCloser(bytes.NewReader(cp)),
		info:       &info,
	}, nil
}

// Put stores a copy of the bytes read from r under key.
func (m *MemStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read put payload", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obj := memObject{
		data:        data,
		contentType: contentType,
		etag:        fmt.Sprintf("%x", md5.Sum(data)),
		modified:    time.Now().UTC(),
	}
	m.objects[key] = obj

	info := m.infoFor(key, obj)
	return &info, nil
}

// FGet writes the object at key to localPath, creating parent directories.
func (m *MemStore) FGet(ctx context.Context, key, localPath string) error {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()

	if !ok {
		return errs.New(errs.ErrKindNotFound, fmt.Sprintf("object %q not found", key))
	}

	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(errs.ErrKindUnavailable, "failed to create local directory", err)
		}
	}
	if err := os.WriteFile(localPath, obj.data, 0o644); err != nil {
		return errs.Wrap(errs.ErrKindUnavailable, "failed to write local file", err)
	}
	return nil
}

// FPut uploads the local file at localPath under key. The content type is
// derived from the file extension.
func (m *MemStore) FPut(ctx context.Context, key, localPath string) (*ObjectInfo, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "local file not found", err)
		}
		return nil, errs.Wrap(errs.ErrKindUnavailable, "failed to read local file", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	return m.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}

// Remove deletes the object at key. Missing keys are ignored.
func (m *MemStore) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// PresignGet is not supported by the in-memory store.
func (m *MemStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", errs.New(errs.ErrKindInvalidInput, "presigned URLs are not supported by the memory store")
}

func (m *MemStore) infoFor(key string, obj memObject) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		ETag:         obj.etag,
		LastModified: obj.modified,
		IsMarker:     IsMarkerKey(key),
	}
}

// memHandle wraps stored bytes and exposes Object.
type memHandle struct {
	io.ReadCloser
	info *ObjectInfo
}

func (h *memHandle) Info() *ObjectInfo {
	return h.info
}
