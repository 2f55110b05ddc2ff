// Package server exposes the staging layer over HTTP.
//
// The API is a thin shell: listing staged inputs, resolving save paths,
// uploading rendered frames, and raw object access on the bound bucket.
// All storage semantics live in the staging and objstore packages; handlers
// only translate between HTTP and those calls.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/renderstack/mediastage/internal/imaging"
	"github.com/renderstack/mediastage/internal/logger"
	"github.com/renderstack/mediastage/internal/objstore"
	"github.com/renderstack/mediastage/internal/staging"
)

// Server routes staging API requests. It implements http.Handler.
type Server struct {
	store  objstore.Store
	stager *staging.Stager
	saver  *imaging.Saver
	log    *logger.Logger
	router chi.Router
}

// New builds a Server with all routes and middleware registered.
func New(store objstore.Store, stager *staging.Stager, saver *imaging.Saver, log *logger.Logger) *Server {
	if log == nil {
		log = logger.New(nil)
	}

	s := &Server{
		store:  store,
		stager: stager,
		saver:  saver,
		log:    log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/inputs", s.handleInputs)
		r.Post("/savepath", s.handleSavePath)
		r.Post("/renders", s.handleSaveRender)

		r.Route("/objects", func(r chi.Router) {
			r.Get("/*", s.handleGetObject)
			r.Put("/*", s.handlePutObject)
			r.Delete("/*", s.handleDeleteObject)
		})
	})

	return r
}
