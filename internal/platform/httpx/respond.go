// Package httpx provides the JSON response envelope shared by every API route.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform body returned by every API endpoint.
type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success writes a successful envelope. A nil payload is sent as an empty list.
func Success(w http.ResponseWriter, status int, message string, data any) {
	if data == nil {
		data = []any{}
	}
	JSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

// Failure writes an error envelope without consulting the error table.
func Failure(w http.ResponseWriter, status int, code, message string, data any) {
	if data == nil {
		data = []any{}
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	JSON(w, status, Envelope{Success: false, Data: data, Message: message, ErrorCode: code})
}
