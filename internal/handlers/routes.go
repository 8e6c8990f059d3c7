package handlers

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	deepseekchat "github.com/MegaGrindStone/deepseek-chat"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes returns the HTTP handler of the application. allowedOrigins lists the origins allowed to call
// the API from another site; when empty only same-origin requests are served.
func (m Main) Routes(allowedOrigins []string) (http.Handler, error) {
	staticFS, err := fs.Sub(deepseekchat.StaticFS, "static")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(m.logRequests)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	r.Get("/", m.HandleHome)
	r.Post("/chats", m.HandleChats)
	r.Post("/settings/stream", m.HandleStreamSetting)
	r.Get("/sse/messages", m.HandleSSE)

	return r, nil
}

func (m Main) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			m.logger.Debug("Request",
				slog.String("requestID", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
