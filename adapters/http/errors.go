package authhttp

import (
	"encoding/json"
	"net/http"
)

// Error codes surfaced to the client application. Everything past
// initiation travels as redirect query parameters, never as an HTTP error
// page, because the browser is mid-flow and must land back on the client.
const (
	errDisabledEndpoint     = "disabled-endpoint"
	errInvalidConfiguration = "invalid-oauth-configuration"
	errInvalidRequest       = "invalid-request"
	errInternal             = "internal-error"
)

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendErr(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errResp{Error: code})
}

func badRequest(w http.ResponseWriter, code string)   { sendErr(w, http.StatusBadRequest, code) }
func unauthorized(w http.ResponseWriter, code string) { sendErr(w, http.StatusUnauthorized, code) }
func serverErr(w http.ResponseWriter, code string)    { sendErr(w, http.StatusInternalServerError, code) }
