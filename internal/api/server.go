// Package api exposes the map view over HTTP. Navigation requests go through
// the view, so they are serialized with every other input source.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rewired-gh/symbolmap/internal/logger"
	"github.com/rewired-gh/symbolmap/internal/sequence"
	"github.com/rewired-gh/symbolmap/internal/view"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 10

// MapView is the part of *view.View the API drives.
type MapView interface {
	Forward() (sequence.Transition, view.State)
	Reverse() (sequence.Transition, view.State)
	Jump(i int) (sequence.Transition, view.State)
	State() view.State
	GeoJSON() ([]byte, error)
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
}

// jumpRequest is the body of PUT /api/sequence/index.
type jumpRequest struct {
	Index *int `json:"index"`
}

// transitionResponse is returned by every navigation endpoint.
type transitionResponse struct {
	sequence.Transition
	Label   string `json:"label"`
	Skipped int    `json:"skipped"`
}

// NewRouter builds the HTTP handler.
func NewRouter(v MapView, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, v.State())
		})

		r.Get("/symbols", func(w http.ResponseWriter, r *http.Request) {
			data, err := v.GeoJSON()
			if err != nil {
				logger.Error("Failed to encode symbols: %v", err)
				writeError(w, http.StatusInternalServerError, "failed to encode symbols")
				return
			}
			w.Header().Set("Content-Type", "application/geo+json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
		})

		r.Route("/sequence", func(r chi.Router) {
			r.Post("/forward", func(w http.ResponseWriter, r *http.Request) {
				tr, st := v.Forward()
				writeTransition(w, tr, st)
			})
			r.Post("/reverse", func(w http.ResponseWriter, r *http.Request) {
				tr, st := v.Reverse()
				writeTransition(w, tr, st)
			})
			r.Put("/index", func(w http.ResponseWriter, r *http.Request) {
				var req jumpRequest
				if err := decodeJSON(r, &req); err != nil {
					writeError(w, http.StatusBadRequest, err.Error())
					return
				}
				if req.Index == nil {
					writeError(w, http.StatusBadRequest, "index is required")
					return
				}
				tr, st := v.Jump(*req.Index)
				writeTransition(w, tr, st)
			})
		})
	})

	return r
}

// NewServer wraps the router in an http.Server with the configured timeouts.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}
}

func writeTransition(w http.ResponseWriter, tr sequence.Transition, s view.State) {
	writeJSON(w, http.StatusOK, transitionResponse{
		Transition: tr,
		Label:      s.Label,
		Skipped:    tr.Report.SkippedCount(),
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}
