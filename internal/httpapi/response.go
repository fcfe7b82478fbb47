package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// envelope is the admission adapter's uniform response shape: {ok:true, ...} or {ok:false, error:<code>}.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func ok(w http.ResponseWriter, r *http.Request, status int, fields envelope) {
	body := envelope{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, r, status, body)
}

func fail(w http.ResponseWriter, r *http.Request, status int, code string) {
	writeJSON(w, r, status, envelope{"ok": false, "error": code})
}
