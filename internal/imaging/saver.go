package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/renderstack/mediastage/internal/errs"
	"github.com/renderstack/mediastage/internal/logger"
	"github.com/renderstack/mediastage/internal/staging"
)

// Saver encodes frames as PNG and writes them to the store under
// collision-free keys.
type Saver struct {
	stager *staging.Stager
	log    *logger.Logger
}

// NewSaver builds a Saver on top of the given Stager.
func NewSaver(stager *staging.Stager, log *logger.Logger) *Saver {
	if log == nil {
		log = logger.New(nil)
	}
	return &Saver{stager: stager, log: log}
}

// SaveFrames stores every frame under template, resolving the save path once
// for the batch and assigning consecutive counters from there. The first
// frame's dimensions feed the template's %width% and %height% tokens. Keys
// take the form folder/base_00001_.png, which round-trips through the
// counter scan on the next resolve.
//
// Returns the keys written. On a mid-batch failure the keys uploaded so far
// are returned alongside the error.
func (s *Saver) SaveFrames(ctx context.Context, template string, frames []Frame) ([]string, error) {
	if len(frames) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "no frames to save")
	}

	sp := s.stager.ResolveSavePath(ctx, template, frames[0].Width, frames[0].Height)

	keys := make([]string, 0, len(frames))
	counter := sp.Counter
	for _, frame := range frames {
		var buf bytes.Buffer
		if err := png.Encode(&buf, frame.ToNRGBA()); err != nil {
			return keys, errs.Wrap(errs.ErrKindInvalidInput, "failed to encode frame", err)
		}

		key := sp.ObjectKey(fmt.Sprintf("%s_%05d_.png", sp.Filename, counter))
		if _, err := s.stager.UploadBytes(ctx, key, buf.Bytes(), "image/png"); err != nil {
			return keys, err
		}

		keys = append(keys, key)
		counter++
	}

	s.log.With().
		Str("folder", sp.Folder).
		Str("filename", sp.Filename).
		Int("frames", len(keys)).
		Logger().
		Info("saved frames")

	return keys, nil
}
