// Package minio provides a MinIO/S3 implementation of objstore.Store.
//
// Usage:
//
//	cfg := objstore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin", "render-assets")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	objects, err := store.List(ctx, objstore.ListOptions{Prefix: "input/", Recursive: true})
package minio

import (
	"context"
	"fmt"
	"io"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/renderstack/mediastage/internal/errs"
	"github.com/renderstack/mediastage/internal/objstore"
)

// Driver is a MinIO/S3 implementation of objstore.Store, bound to a single
// bucket. It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	bucket string
}

var _ objstore.Store = (*Driver)(nil)

// New connects to the storage endpoint using the provided Config and returns
// a Driver. It calls Ping to validate the connection and bucket before
// returning.
func New(ctx context.Context, cfg *objstore.Config) (*Driver, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: bucketLookup(cfg.AddressingStyle),
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindUnavailable, "failed to create minio client", err)
	}

	d := &Driver{client: client, bucket: cfg.Bucket}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// bucketLookup maps the configured addressing style onto the SDK's
// bucket-lookup modes. Virtual-hosted addressing resolves the bucket via
// DNS, path addressing keeps it in the URL path.
func bucketLookup(style string) miniogo.BucketLookupType {
	switch style {
	case objstore.AddressingVirtual:
		return miniogo.BucketLookupDNS
	case objstore.AddressingPath:
		return miniogo.BucketLookupPath
	default:
		return miniogo.BucketLookupAuto
	}
}

// --- objstore.Store implementation ---

// Ping verifies the server is reachable and the configured bucket exists.
func (d *Driver) Ping(ctx context.Context) error {
	exists, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !exists {
		return errs.New(errs.ErrKindNotFound, fmt.Sprintf("bucket %q does not exist", d.bucket))
	}
	return nil
}

// Close is a no-op for MinIO — the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// Bucket returns the bucket this driver is bound to.
func (d *Driver) Bucket() string {
	return d.bucket
}

// List returns objects matching opts.
func (d *Driver) List(ctx context.Context, opts objstore.ListOptions) ([]objstore.ObjectInfo, error) {
	listOpts := miniogo.ListObjectsOptions{
		Prefix:    opts.Prefix,
		Recursive: opts.Recursive,
	}

	var results []objstore.ObjectInfo
	count := 0

	for obj := range d.client.ListObjects(ctx, d.bucket, listOpts) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}

		results = append(results, objstore.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
			IsMarker:     objstore.IsMarkerKey(obj.Key),
		})

		count++
		if opts.Limit > 0 && count >= opts.Limit {
			break
		}
	}

	return results, nil
}

// Stat returns metadata for the object at key without downloading its content.
func (d *Driver) Stat(ctx context.Context, key string) (*objstore.ObjectInfo, error) {
	stat, err := d.client.StatObject(ctx, d.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	return &objstore.ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
		IsMarker:     objstore.IsMarkerKey(stat.Key),
	}, nil
}

// Get opens a streaming handle to the object at key.
// The caller MUST call Object.Close() after reading.
func (d *Driver) Get(ctx context.Context, key string) (objstore.Object, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	// GetObject is lazy; Stat forces the first request so missing keys
	// surface here instead of at first read.
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object after get")
	}

	return &object{
		ReadCloser: obj,
		info: &objstore.ObjectInfo{
			Key:          key,
			Size:         stat.Size,
			ContentType:  stat.ContentType,
			ETag:         stat.ETag,
			LastModified: stat.LastModified,
			IsMarker:     objstore.IsMarkerKey(key),
		},
	}, nil
}

// Put writes size bytes from r to the object at key.
func (d *Driver) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*objstore.ObjectInfo, error) {
	info, err := d.client.PutObject(ctx, d.bucket, key, r, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, mapError(err, "failed to put object")
	}

	return &objstore.ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  contentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
		IsMarker:     objstore.IsMarkerKey(info.Key),
	}, nil
}

// FGet downloads the object at key into the local file at localPath.
// The SDK creates parent directories as needed.
func (d *Driver) FGet(ctx context.Context, key, localPath string) error {
	if err := d.client.FGetObject(ctx, d.bucket, key, localPath, miniogo.GetObjectOptions{}); err != nil {
		return mapError(err, "failed to download object to file")
	}
	return nil
}

// FPut uploads the local file at localPath to the object at key.
// The SDK derives the content type from the file extension.
func (d *Driver) FPut(ctx context.Context, key, localPath string) (*objstore.ObjectInfo, error) {
	info, err := d.client.FPutObject(ctx, d.bucket, key, localPath, miniogo.PutObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to upload file")
	}

	return &objstore.ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
		IsMarker:     objstore.IsMarkerKey(info.Key),
	}, nil
}

// Remove deletes the object at key. Removing a missing key succeeds.
func (d *Driver) Remove(ctx context.Context, key string) error {
	if err := d.client.RemoveObject(ctx, d.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to remove object")
	}
	return nil
}

// PresignGet returns a time-limited public download URL for the object.
func (d *Driver) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := d.client.PresignedGetObject(ctx, d.bucket, key, ttl, nil)
	if err != nil {
		return "", mapError(err, "failed to generate presigned URL")
	}
	return u.String(), nil
}

// --- internal types ---

// object wraps a MinIO GetObject response and exposes objstore.Object.
type object struct {
	io.ReadCloser
	info *objstore.ObjectInfo
}

func (o *object) Info() *objstore.ObjectInfo {
	return o.info
}
