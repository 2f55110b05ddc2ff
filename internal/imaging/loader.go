package imaging

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/renderstack/mediastage/internal/errs"
	"github.com/renderstack/mediastage/internal/logger"
	"github.com/renderstack/mediastage/internal/staging"
)

// FetchMode selects how the Loader moves object bytes to the decoder.
type FetchMode int

const (
	// FetchToDisk downloads the object into the local staging directory
	// before decoding, leaving the file behind for later reuse.
	FetchToDisk FetchMode = iota

	// FetchInMemory streams the object into memory and decodes it there,
	// touching no local disk.
	FetchInMemory
)

// Loader fetches staged input objects and decodes them into frames.
type Loader struct {
	stager   *staging.Stager
	log      *logger.Logger
	localDir string
	mode     FetchMode
}

// NewLoader builds a Loader. localDir is where FetchToDisk places downloads,
// mirroring the bucket's key layout beneath it.
func NewLoader(stager *staging.Stager, log *logger.Logger, localDir string, mode FetchMode) *Loader {
	if log == nil {
		log = logger.New(nil)
	}
	return &Loader{
		stager:   stager,
		log:      log,
		localDir: localDir,
		mode:     mode,
	}
}

// Inputs returns the keys currently staged under the input prefix, sorted.
// Store failures degrade to an empty listing.
func (l *Loader) Inputs(ctx context.Context) []string {
	files := l.stager.Files(ctx, l.stager.InputPrefix())
	sort.Strings(files)
	return files
}

// Load fetches and decodes the object at key. Unlike the scan-style staging
// operations, a missing or unreadable object is a hard error here: the
// caller cannot proceed without the bytes.
func (l *Loader) Load(ctx context.Context, key string) (*Image, error) {
	key = strings.TrimSpace(key)

	var data []byte
	switch l.mode {
	case FetchInMemory:
		b, err := l.stager.DownloadBytes(ctx, key)
		if err != nil {
			return nil, err
		}
		data = b
	default:
		localPath, err := l.stager.Download(ctx, key, filepath.Join(l.localDir, key))
		if err != nil {
			return nil, err
		}
		b, err := os.ReadFile(localPath)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindUnavailable, "failed to read downloaded file", err)
		}
		data = b
	}

	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	l.log.With().
		Str("key", key).
		Int("frames", len(img.Frames)).
		Logger().
		Debug("loaded image")

	return img, nil
}

// Decode turns raw object bytes into frames. Animated GIFs produce one
// frame per animation frame; all other formats produce exactly one.
func Decode(data []byte) (*Image, error) {
	if isGIF(data) {
		return decodeGIF(data)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to decode image", err)
	}

	return &Image{
		Frames: []Frame{frameFromImage(src)},
		Masks:  []Mask{maskFor(src)},
	}, nil
}

func decodeGIF(data []byte) (*Image, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to decode gif", err)
	}
	if len(g.Image) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "gif has no frames")
	}

	img := &Image{
		Frames: make([]Frame, 0, len(g.Image)),
		Masks:  make([]Mask, 0, len(g.Image)),
	}
	// Frames decode standalone, without compositing across disposal modes.
	for _, frame := range g.Image {
		img.Frames = append(img.Frames, frameFromImage(frame))
		img.Masks = append(img.Masks, maskFor(frame))
	}
	return img, nil
}

func isGIF(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "GIF8"
}
