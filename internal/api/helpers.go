package api

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// profileIDFromRequest extracts the owning profile. The gateway in front
// of this service injects X-Profile-ID after auth; query param is the
// dev fallback.
func profileIDFromRequest(r *http.Request) string {
	if id := r.Header.Get("X-Profile-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("profile_id")
}
