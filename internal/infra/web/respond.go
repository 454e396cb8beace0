package web

import (
	"encoding/json"
	"net/http"
)

// writeJSON renders any payload with the JSON content type.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders the uniform failure envelope {success:false, message, error?}.
// detail, when non-nil, carries the gateway's raw response payload since it
// contains the actionable diagnostic codes.
func writeError(w http.ResponseWriter, status int, message string, detail interface{}) {
	writeJSON(w, status, struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Error   interface{} `json:"error,omitempty"`
	}{
		Success: false,
		Message: message,
		Error:   detail,
	})
}

// errorDetail keeps gateway payloads as structured JSON when they are valid
// JSON, falling back to the raw string.
func errorDetail(body string) interface{} {
	if body == "" {
		return nil
	}
	if json.Valid([]byte(body)) {
		return json.RawMessage(body)
	}
	return body
}
