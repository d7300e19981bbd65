package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"psd-quiz-service/internal/app"
)

// NewRouter mounts the websocket endpoint, a read-only state endpoint and
// the health check.
func NewRouter(service *app.QuizService, log zerolog.Logger) http.Handler {
	wsHandler := NewWSHandler(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(service.Snapshot()); err != nil {
			log.Warn().Err(err).Msg("encode state failed")
		}
	})
	return mux
}
