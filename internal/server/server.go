package server

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/sw33tLie/tabscope/internal/utils"
	"github.com/sw33tLie/tabscope/pkg/core"
	"github.com/sw33tLie/tabscope/pkg/errs"
)

type Server struct {
	Core     *core.Core
	Username string
	Password string
}

func New(c *core.Core, user, pass string) *Server {
	return &Server{
		Core:     c,
		Username: user,
		Password: pass,
	}
}

// Handler builds the HTTP API.
func (s *Server) Handler() http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(s.basicAuth)

	cfg := huma.DefaultConfig("tabscope API", "1.0.0")
	api := humachi.New(router, cfg)

	registerPageHandlers(api, s.Core)
	registerOperationHandlers(api, s.Core)
	registerGroupHandlers(api, s.Core)
	registerMiscHandlers(api, s.Core)

	return router
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	utils.Log.Infof("Starting server on %s", addr)
	return srv.ListenAndServe()
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		utils.Log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	e, ok := errs.As(err)
	if !ok {
		return huma.Error500InternalServerError(err.Error())
	}
	switch e.Code {
	case errs.CodeInvalidArgument, errs.CodeConfiguration:
		return huma.Error400BadRequest(e.Message)
	case errs.CodeNotFound:
		return huma.Error404NotFound(e.Message)
	case errs.CodePageConflict, errs.CodeGroupRelation, errs.CodeIntegrityViolation:
		return huma.Error409Conflict(e.Message)
	case errs.CodeUnsupported, errs.CodeUnsupportedContentType:
		return huma.Error501NotImplemented(e.Message)
	case errs.CodeTimeout, errs.CodeAnalysisTimeout:
		return huma.Error504GatewayTimeout(e.Message)
	case errs.CodeNotRunning, errs.CodeInvalidResponse, errs.CodeIncompatibleVersion,
		errs.CodePermissionDenied, errs.CodeFetchFailed, errs.CodeNetwork, errs.CodeVerificationFailed:
		return huma.Error502BadGateway(e.Message)
	case errs.CodeStoreBusy:
		return huma.Error503ServiceUnavailable(e.Message)
	default:
		return huma.Error500InternalServerError(e.Error())
	}
}
