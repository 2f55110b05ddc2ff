package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/renderstack/mediastage/internal/errs"
	"github.com/renderstack/mediastage/internal/imaging"
)

const (
	// presignTTL bounds the lifetime of presigned download URLs.
	presignTTL = 15 * time.Minute

	// maxRenderBytes caps the request body accepted by the render upload
	// endpoint.
	maxRenderBytes = 128 << 20
)

type healthResponse struct {
	Status string `json:"status"`
	Bucket string `json:"bucket"`
}

type inputsResponse struct {
	Inputs []string `json:"inputs"`
}

type savePathRequest struct {
	Template string `json:"template"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type savePathResponse struct {
	Folder    string `json:"folder"`
	Filename  string `json:"filename"`
	Counter   int    `json:"counter"`
	Subfolder string `json:"subfolder"`
	Resolved  string `json:"resolved"`
}

type rendersResponse struct {
	Keys []string `json:"keys"`
}

type objectResponse struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	ETag string `json:"etag"`
}

type presignResponse struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.ErrorWith("health check failed", err, map[string]interface{}{
			"bucket": s.store.Bucket(),
		})
		http.Error(w, "store unreachable", http.StatusServiceUnavailable)
		return
	}

	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Bucket: s.store.Bucket()})
}

func (s *Server) handleInputs(w http.ResponseWriter, r *http.Request) {
	files := s.stager.Files(r.Context(), s.stager.InputPrefix())
	sort.Strings(files)
	if files == nil {
		files = []string{}
	}

	s.writeJSON(w, http.StatusOK, inputsResponse{Inputs: files})
}

func (s *Server) handleSavePath(w http.ResponseWriter, r *http.Request) {
	var req savePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Template == "" {
		http.Error(w, "template is required", http.StatusBadRequest)
		return
	}

	sp := s.stager.ResolveSavePath(r.Context(), req.Template, req.Width, req.Height)

	s.writeJSON(w, http.StatusOK, savePathResponse{
		Folder:    sp.Folder,
		Filename:  sp.Filename,
		Counter:   sp.Counter,
		Subfolder: sp.Subfolder,
		Resolved:  sp.Resolved,
	})
}

// handleSaveRender accepts a raw PNG/JPEG/GIF body, decodes it, and saves
// every frame under the resolved save path. Animated GIFs fan out to one
// object per frame.
func (s *Server) handleSaveRender(w http.ResponseWriter, r *http.Request) {
	template := r.URL.Query().Get("template")
	if template == "" {
		template = "render"
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRenderBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "image payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	img, err := imaging.Decode(data)
	if err != nil {
		s.respondError(w, r, "undecodable image payload", err)
		return
	}

	keys, err := s.saver.SaveFrames(r.Context(), template, img.Frames)
	if err != nil {
		s.respondError(w, r, "failed to save frames", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, rendersResponse{Keys: keys})
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		http.Error(w, "missing object key", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("presign") != "" {
		url, err := s.store.PresignGet(r.Context(), key, presignTTL)
		if err != nil {
			s.respondError(w, r, "failed to presign object", err)
			return
		}
		s.writeJSON(w, http.StatusOK, presignResponse{
			Key:       key,
			URL:       url,
			ExpiresIn: int(presignTTL.Seconds()),
		})
		return
	}

	obj, err := s.store.Get(r.Context(), key)
	if err != nil {
		s.respondError(w, r, "failed to fetch object", err)
		return
	}
	defer obj.Close()

	info := obj.Info()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}

	if _, err := io.Copy(w, obj); err != nil {
		// Headers are already out; nothing to send the client.
		s.log.WarnWith("object stream aborted", err, map[string]interface{}{
			"key": key,
		})
	}
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		http.Error(w, "missing object key", http.StatusBadRequest)
		return
	}

	info, err := s.store.Put(r.Context(), key, r.Body, r.ContentLength, r.Header.Get("Content-Type"))
	if err != nil {
		s.respondError(w, r, "failed to store object", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, objectResponse{
		Key:  info.Key,
		Size: info.Size,
		ETag: info.ETag,
	})
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		http.Error(w, "missing object key", http.StatusBadRequest)
		return
	}

	if err := s.store.Remove(r.Context(), key); err != nil {
		s.respondError(w, r, "failed to delete object", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warnf("failed to encode response: %v", err)
	}
}

// respondError maps a typed error onto an HTTP status and a fixed message.
// Operator-side failures get logged; client-side ones only get the status.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError || status == http.StatusUnauthorized {
		s.log.ErrorWith(msg, err, map[string]interface{}{
			"path":       r.URL.Path,
			"request_id": r.Header.Get(requestIDHeader),
		})
	}
	http.Error(w, msg, status)
}

func statusFor(err error) int {
	switch {
	case errs.IsNotFound(err):
		return http.StatusNotFound
	case errs.IsInvalidInput(err):
		return http.StatusBadRequest
	case errs.IsCredentials(err):
		return http.StatusUnauthorized
	case errs.IsTimeout(err), errs.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
