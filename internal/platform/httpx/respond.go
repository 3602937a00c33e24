// Package httpx provides JSON response helpers shared by the journal API.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the envelope every failed API call returns.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

// Fail sends the error envelope.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Success: false, Error: message})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
