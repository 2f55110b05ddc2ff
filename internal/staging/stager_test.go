package staging

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderstack/mediastage/internal/errs"
	"github.com/renderstack/mediastage/internal/logger"
	"github.com/renderstack/mediastage/internal/objstore"
)

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{
		Level:  "error",
		Format: "json",
		Output: io.Discard,
	})
}

// seed writes one placeholder object per key.
func seed(t *testing.T, store objstore.Store, keys ...string) {
	t.Helper()
	for _, key := range keys {
		_, err := store.Put(context.Background(), key, strings.NewReader("x"), 1, "application/octet-stream")
		require.NoError(t, err)
	}
}

// failingStore wraps a MemStore with injectable failures.
type failingStore struct {
	*objstore.MemStore
	listErr error
	putErr  error
}

func (f *failingStore) List(ctx context.Context, opts objstore.ListOptions) ([]objstore.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemStore.List(ctx, opts)
}

func (f *failingStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*objstore.ObjectInfo, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	return f.MemStore.Put(ctx, key, r, size, contentType)
}

func TestFolderExists(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	seed(t, store, "input/photo.png")
	stager := New(store, testLogger(), Config{})

	assert.True(t, stager.FolderExists(context.Background(), "input"))
	assert.True(t, stager.FolderExists(context.Background(), "input/"))
	assert.False(t, stager.FolderExists(context.Background(), "missing"))
}

func TestFolderExists_StoreFailure(t *testing.T) {
	store := &failingStore{
		MemStore: objstore.NewMemStore("render-assets"),
		listErr:  errors.New("connection refused"),
	}
	stager := New(store, testLogger(), Config{})

	assert.False(t, stager.FolderExists(context.Background(), "input"))
}

func TestEnsureFolder_Idempotent(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	stager := New(store, testLogger(), Config{})

	require.NoError(t, stager.EnsureFolder(context.Background(), "output"))
	require.NoError(t, stager.EnsureFolder(context.Background(), "output"))

	objects, err := store.List(context.Background(), objstore.ListOptions{Prefix: "output", Recursive: true})
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "output/", objects[0].Key)
	assert.True(t, objects[0].IsMarker)
}

func TestEnsureFolder_TrailingSlash(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	stager := New(store, testLogger(), Config{})

	require.NoError(t, stager.EnsureFolder(context.Background(), "output/"))

	info, err := store.Stat(context.Background(), "output/")
	require.NoError(t, err)
	assert.True(t, info.IsMarker)
}

func TestFiles(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	seed(t, store, "input/a.png", "input/b.png")
	require.NoError(t, New(store, testLogger(), Config{}).EnsureFolder(context.Background(), "input/sub"))

	stager := New(store, testLogger(), Config{})
	files := stager.Files(context.Background(), "input/")

	// Markers are filtered out of the listing.
	assert.Equal(t, []string{"input/a.png", "input/b.png"}, files)
}

func TestFiles_MissingFolder(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	stager := New(store, testLogger(), Config{})

	assert.Empty(t, stager.Files(context.Background(), "input/"))
}

func TestFiles_Limit(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	seed(t, store, "input/a.png", "input/b.png", "input/c.png")
	stager := New(store, testLogger(), Config{ListLimit: 2})

	files := stager.Files(context.Background(), "input/")
	assert.Len(t, files, 2)
}

func TestFiles_StoreFailure(t *testing.T) {
	store := &failingStore{
		MemStore: objstore.NewMemStore("render-assets"),
		listErr:  errors.New("connection refused"),
	}
	stager := New(store, testLogger(), Config{})

	assert.Empty(t, stager.Files(context.Background(), "input/"))
}

func TestProvision(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	stager := New(store, testLogger(), Config{InputPrefix: "input", OutputRoot: "output"})

	require.NoError(t, stager.Provision(context.Background()))

	for _, marker := range []string{"input/", "output/"} {
		info, err := store.Stat(context.Background(), marker)
		require.NoError(t, err, marker)
		assert.True(t, info.IsMarker, marker)
	}

	// Second run finds the folders and creates nothing new.
	require.NoError(t, stager.Provision(context.Background()))
	objects, err := store.List(context.Background(), objstore.ListOptions{Recursive: true})
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestProvision_SkipsEmptyPrefixes(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	stager := New(store, testLogger(), Config{})

	require.NoError(t, stager.Provision(context.Background()))

	objects, err := store.List(context.Background(), objstore.ListOptions{Recursive: true})
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestProvision_StoreFailure(t *testing.T) {
	store := &failingStore{
		MemStore: objstore.NewMemStore("render-assets"),
		putErr:   errors.New("connection refused"),
	}
	stager := New(store, testLogger(), Config{InputPrefix: "input", OutputRoot: "output"})

	err := stager.Provision(context.Background())
	require.Error(t, err)
}

func TestDownload(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	_, err := store.Put(context.Background(), "input/photo.png", strings.NewReader("image-bytes"), 11, "image/png")
	require.NoError(t, err)

	stager := New(store, testLogger(), Config{})
	localPath := filepath.Join(t.TempDir(), "nested", "photo.png")

	got, err := stager.Download(context.Background(), "input/photo.png", localPath)
	require.NoError(t, err)
	assert.Equal(t, localPath, got)

	data, err := os.ReadFile(localPath)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestDownload_NotFound(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	stager := New(store, testLogger(), Config{})

	_, err := stager.Download(context.Background(), "input/missing.png", filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestDownloadBytes(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	_, err := store.Put(context.Background(), "input/photo.png", strings.NewReader("image-bytes"), 11, "image/png")
	require.NoError(t, err)

	stager := New(store, testLogger(), Config{})

	data, err := stager.DownloadBytes(context.Background(), "input/photo.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)

	_, err = stager.DownloadBytes(context.Background(), "input/missing.png")
	assert.True(t, errs.IsNotFound(err))
}

func TestUpload(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	stager := New(store, testLogger(), Config{})

	localPath := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(localPath, []byte("frame-bytes"), 0o644))

	key, err := stager.Upload(context.Background(), localPath, "output/frame.png", false)
	require.NoError(t, err)
	assert.Equal(t, "output/frame.png", key)

	data, err := objstore.GetBytes(context.Background(), store, "output/frame.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("frame-bytes"), data)

	// deleteLocal false keeps the source file.
	_, err = os.Stat(localPath)
	assert.NoError(t, err)
}

func TestUpload_DeleteLocal(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	stager := New(store, testLogger(), Config{})

	localPath := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(localPath, []byte("frame-bytes"), 0o644))

	_, err := stager.Upload(context.Background(), localPath, "output/frame.png", true)
	require.NoError(t, err)

	_, err = os.Stat(localPath)
	assert.True(t, os.IsNotExist(err))
}

func TestUpload_MissingLocalFile(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	stager := New(store, testLogger(), Config{})

	_, err := stager.Upload(context.Background(), filepath.Join(t.TempDir(), "absent.png"), "output/frame.png", false)
	require.Error(t, err)
}

func TestDownloadPrefix(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	seed(t, store, "input/a.png", "input/sub/b.png")
	stager := New(store, testLogger(), Config{})

	localDir := t.TempDir()
	paths, err := stager.DownloadPrefix(context.Background(), "input/", localDir)
	require.NoError(t, err)

	want := []string{
		filepath.Join(localDir, "a.png"),
		filepath.Join(localDir, "sub", "b.png"),
	}
	assert.Equal(t, want, paths)

	for _, p := range want {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
}

func TestDownloadPrefix_Empty(t *testing.T) {
	store := objstore.NewMemStore("render-assets")
	stager := New(store, testLogger(), Config{})

	paths, err := stager.DownloadPrefix(context.Background(), "input/", t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, paths)
}
