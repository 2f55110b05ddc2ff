// Package staging layers pipeline file-flow semantics over an objstore.Store:
// listing staged inputs, provisioning prefix folders, resolving collision-free
// save paths for outputs, and moving files between the store and local disk.
//
// Scan-style operations (Files, FolderExists, ResolveSavePath) never fail:
// store errors are logged and degrade to an empty or fail-safe result, so a
// transient outage cannot abort a whole pipeline run. Point operations
// (Download, Upload) return errors in the usual way.
package staging

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/renderstack/mediastage/internal/errs"
	"github.com/renderstack/mediastage/internal/logger"
	"github.com/renderstack/mediastage/internal/objstore"
)

// DefaultListLimit caps listing pages when Config.ListLimit is unset.
const DefaultListLimit = 100

// downloadConcurrency bounds parallel downloads in DownloadPrefix.
const downloadConcurrency = 4

// Config holds the staging layout within the bucket.
type Config struct {
	// InputPrefix is the folder staged inputs are listed from.
	InputPrefix string

	// OutputRoot is the folder save paths are resolved under.
	OutputRoot string

	// ListLimit caps how many keys a single listing observes.
	// Zero means DefaultListLimit.
	ListLimit int
}

// Stager implements the staging operations on top of a Store.
// It is safe for concurrent use; note the save-path counter caveat
// documented on ResolveSavePath.
type Stager struct {
	store objstore.Store
	log   *logger.Logger

	inputPrefix string
	outputRoot  string
	listLimit   int
}

// New builds a Stager. It performs no I/O; call Provision to create the
// configured folders up front.
func New(store objstore.Store, log *logger.Logger, cfg Config) *Stager {
	if log == nil {
		log = logger.New(nil)
	}
	limit := cfg.ListLimit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return &Stager{
		store:       store,
		log:         log,
		inputPrefix: cfg.InputPrefix,
		outputRoot:  cfg.OutputRoot,
		listLimit:   limit,
	}
}

// InputPrefix returns the configured input folder.
func (s *Stager) InputPrefix() string {
	return s.inputPrefix
}

// OutputRoot returns the configured output root folder.
func (s *Stager) OutputRoot() string {
	return s.outputRoot
}

// Provision ensures the configured input and output folders exist.
// Empty prefixes are skipped. Failures are logged per folder; the first
// error is returned after all folders have been attempted.
func (s *Stager) Provision(ctx context.Context) error {
	var firstErr error
	for _, prefix := range []string{s.inputPrefix, s.outputRoot} {
		if prefix == "" {
			continue
		}
		if err := s.EnsureFolder(ctx, prefix); err != nil {
			s.log.WarnWith("failed to provision folder", err, map[string]interface{}{
				"prefix": prefix,
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// FolderExists reports whether at least one key in the store starts with
// prefix. Store failures degrade to false.
func (s *Stager) FolderExists(ctx context.Context, prefix string) bool {
	objects, err := s.store.List(ctx, objstore.ListOptions{
		Prefix:    prefix,
		Recursive: true,
		Limit:     1,
	})
	if err != nil {
		s.log.WarnWith("folder existence check failed", err, map[string]interface{}{
			"prefix": prefix,
		})
		return false
	}
	return len(objects) > 0
}

// EnsureFolder makes prefix visible as a folder by writing a zero-byte
// marker object at prefix + "/" when nothing exists under it yet.
// Idempotent: racing callers at worst rewrite the same marker.
func (s *Stager) EnsureFolder(ctx context.Context, prefix string) error {
	if s.FolderExists(ctx, prefix) {
		return nil
	}
	marker := strings.TrimSuffix(prefix, "/") + "/"
	if _, err := s.store.Put(ctx, marker, bytes.NewReader(nil), 0, ""); err != nil {
		return err
	}
	return nil
}

// Files lists the object keys under prefix, excluding folder markers.
// The listing is capped at the configured limit; markers consume a slot in
// the cap before being filtered. Store failures degrade to an empty result.
func (s *Stager) Files(ctx context.Context, prefix string) []string {
	if !s.FolderExists(ctx, prefix) {
		return nil
	}

	objects, err := s.store.List(ctx, objstore.ListOptions{
		Prefix:    prefix,
		Recursive: true,
		Limit:     s.listLimit,
	})
	if err != nil {
		s.log.WarnWith("listing failed, treating folder as empty", err, map[string]interface{}{
			"prefix": prefix,
		})
		return nil
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		if obj.IsMarker {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys
}

// Download fetches the object at key into localPath, creating parent
// directories as needed, and returns the local path written.
func (s *Stager) Download(ctx context.Context, key, localPath string) (string, error) {
	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errs.Wrap(errs.ErrKindUnavailable, "failed to create local directory", err)
		}
	}
	if err := s.store.FGet(ctx, key, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}

// DownloadBytes fetches the object at key fully into memory.
func (s *Stager) DownloadBytes(ctx context.Context, key string) ([]byte, error) {
	return objstore.GetBytes(ctx, s.store, key)
}

// UploadBytes writes data to the object at key and returns the key.
func (s *Stager) UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if _, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Upload copies the local file at localPath to the object at key and returns
// the key. When deleteLocal is set, the local file is removed after a
// successful upload; removal is an exit-path side effect, so a failure there
// is logged without failing the upload.
func (s *Stager) Upload(ctx context.Context, localPath, key string, deleteLocal bool) (string, error) {
	if _, err := s.store.FPut(ctx, key, localPath); err != nil {
		return "", err
	}
	if deleteLocal {
		if err := os.Remove(localPath); err != nil {
			s.log.WarnWith("failed to remove local file after upload", err, map[string]interface{}{
				"path": localPath,
			})
		}
	}
	return key, nil
}

// DownloadPrefix downloads every file under prefix into localDir, preserving
// key structure relative to prefix, and returns the local paths written in
// sorted order. Up to four downloads run in parallel; the first failure
// cancels the rest.
func (s *Stager) DownloadPrefix(ctx context.Context, prefix, localDir string) ([]string, error) {
	keys := s.Files(ctx, prefix)
	if len(keys) == 0 {
		return nil, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)

	paths := make([]string, len(keys))
	for i, key := range keys {
		g.Go(func() error {
			localPath := filepath.Join(localDir, relativeKey(prefix, key))
			if _, err := s.Download(ctx, key, localPath); err != nil {
				return err
			}
			paths[i] = localPath
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// relativeKey strips prefix from key for use as a local relative path.
// Keys outside the prefix collapse to their base name.
func relativeKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	trimmed := strings.TrimSuffix(prefix, "/")
	rel := strings.TrimPrefix(key, trimmed+"/")
	if rel == "" || rel == key {
		return path.Base(key)
	}
	return rel
}
