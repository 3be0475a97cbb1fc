package utils

import (
	"encoding/json"
	"net/http"
)

// Response is the wire envelope every entrypoint answers with. Success
// carries a message; failure carries a single error string and HTTP 500.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ResponseJSON writes JSON response with custom status code
func ResponseJSON(w http.ResponseWriter, code int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// returns 200 OK
func ResponseSuccess(w http.ResponseWriter, message string) {
	ResponseJSON(w, http.StatusOK, Response{Success: true, Message: message})
}

// returns 500 with the uniform failure envelope
func ResponseError(w http.ResponseWriter, errMsg string) {
	ResponseJSON(w, http.StatusInternalServerError, Response{Success: false, Error: errMsg})
}
