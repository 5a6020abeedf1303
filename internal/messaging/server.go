package messaging

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

const maxMessageBytes = 32 << 20

// Routes serves POST /messages and GET /healthz.
func (b *Background) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /messages", b.serveMessage)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (b *Background) serveMessage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var msg Message
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err := dec.Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, failed(fmt.Errorf("invalid message: %w", err)))
		return
	}
	writeJSON(w, http.StatusOK, b.Handle(r.Context(), msg))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}
