package detectionproxy

import (
	"net/http"

	"github.com/rs/cors"
	"goji.io"
	"goji.io/pat"

	"github.com/invscan/autocount/logging"
	"github.com/invscan/autocount/utils"
)

// NewMux routes count requests at /count and /, plus a health check at /healthz. Any other route
// is a JSON 404. Every response carries JSON and CORS headers, and panics become 500s.
func NewMux(handler http.Handler, logger logging.Logger) *goji.Mux {
	mux := goji.NewMux()
	mux.Use(withDefaultHeaders)
	mux.Use(cors.AllowAll().Handler)
	mux.Use(recoverer(logger))

	mux.HandleFunc(pat.Get("/healthz"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle(pat.New("/count"), handler)
	mux.Handle(pat.New("/"), handler)
	mux.HandleFunc(pat.New("/*"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	})
	return mux
}

func withDefaultHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("Access-Control-Allow-Origin", "*")
		headers.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		headers.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		headers.Set("Content-Type", utils.MimeTypeJSON)
		next.ServeHTTP(w, r)
	})
}

func recoverer(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Errorw("panic while serving request", "path", r.URL.Path, "panic", rec)
					writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
