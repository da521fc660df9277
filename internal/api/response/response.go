// Package response writes the JSON envelope shared by every FluxADM
// endpoint: successes carry the payload under "data" (plus pagination
// "meta" on list responses), failures carry a machine-readable code and
// human-readable message under "error".
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// PaginationMeta describes the page window of a list response.
type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

// ErrorDetail is the body of an error envelope. Codes are stable strings
// clients branch on; messages are advisory.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data in a 200 envelope.
func JSON(w http.ResponseWriter, data any) {
	success(w, http.StatusOK, data, nil)
}

// Created writes data in a 201 envelope.
func Created(w http.ResponseWriter, data any) {
	success(w, http.StatusCreated, data, nil)
}

// Accepted writes data in a 202 envelope. Used by submit, where enrichment
// continues after the response.
func Accepted(w http.ResponseWriter, data any) {
	success(w, http.StatusAccepted, data, nil)
}

// NoContent writes a bare 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Collection writes a list payload with its pagination meta.
func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	success(w, http.StatusOK, data, &meta)
}

// Error writes an error envelope with the given code and message.
func Error(w http.ResponseWriter, status int, code, message string, details any) {
	write(w, status, struct {
		Error ErrorDetail `json:"error"`
	}{Error: ErrorDetail{Code: code, Message: message, Details: details}})
}

func success(w http.ResponseWriter, status int, data any, meta *PaginationMeta) {
	write(w, status, struct {
		Data any             `json:"data"`
		Meta *PaginationMeta `json:"meta,omitempty"`
	}{Data: data, Meta: meta})
}

// write marshals before touching the ResponseWriter so an encoding failure
// can still produce a clean 500 instead of a truncated body.
func write(w http.ResponseWriter, status int, v any) {
	buf, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding response envelope", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf)
}
