package server

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/nexusbilling/httpx"
	"github.com/diewo77/nexusbilling/internal/handlers"
	"github.com/diewo77/nexusbilling/internal/metrics"
	"github.com/diewo77/nexusbilling/internal/services"
	"github.com/diewo77/nexusbilling/internal/view"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	DB       *gorm.DB
	View     *view.Renderer
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	PageSize int
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(d Deps) http.Handler {
	catalog := services.NewCatalogService(d.DB, d.Log)
	invoices := services.NewInvoiceService(d.DB, d.Log, d.PageSize)
	ph := handlers.NewProductHandler(catalog, d.View, d.Metrics, d.Log)
	ih := handlers.NewInvoiceHandler(invoices, catalog, d.View, d.Metrics, d.Log)

	r := chi.NewRouter()
	r.Use(withRequestID, withLogging(d.Log), d.Metrics.Middleware, withRecover(d.Log))

	// --- Health endpoints ---
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Get("/", ih.List)
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", ih.List)
		r.Post("/", ih.Create)
		r.Get("/new", ih.New)
		r.Get("/{id}", ih.Show)
		r.Delete("/{id}", ih.Delete)
		r.Get("/{id}/pdf", ih.PDF)
		r.Post("/{id}/status", ih.SetStatus)
		r.Post("/{id}/delete", ih.Delete)
	})
	r.Route("/products", func(r chi.Router) {
		r.Get("/", ph.List)
		r.Post("/", ph.Save)
		r.Delete("/{id}", ph.Delete)
		r.Post("/{id}/delete", ph.Delete)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	return r
}

type requestIDKey struct{}

const requestIDHeader = "X-Request-ID"

// RequestID returns the id assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func withLogging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", RequestID(r.Context())))
		})
	}
}

func withRecover(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("request_id", RequestID(r.Context())),
						zap.Stack("stack"))
					httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
