package responses

import (
	"encoding/json"
	"fmt"
	"net/http"

	"busrelay/internal/app/common"
	"busrelay/internal/bus"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// Failure is the HTTP rendering of a service error.
type Failure struct {
	Status  int
	Message string
}

// Fallback is what WriteFailure uses for errors it does not recognise.
func Fallback(status int, msg string) Failure {
	return Failure{Status: status, Message: msg}
}

// Classify maps relay errors onto statuses. Validation and not-found errors
// carry their own message; bus errors get a fixed one so broker details stay
// in the logs.
func Classify(err error, fallback Failure) Failure {
	switch {
	case common.IsValidation(err):
		return Failure{Status: http.StatusBadRequest, Message: err.Error()}
	case common.IsNotFound(err):
		return Failure{Status: http.StatusNotFound, Message: err.Error()}
	case bus.IsProfileResolution(err):
		return Failure{Status: http.StatusUnprocessableEntity, Message: "unknown recipient"}
	case bus.IsTransport(err):
		return Failure{Status: http.StatusBadGateway, Message: "message bus unavailable"}
	}
	return fallback
}

// WriteFailure writes the classified error and returns its status.
func WriteFailure(w http.ResponseWriter, err error, fallback Failure) int {
	f := Classify(err, fallback)
	WriteError(w, f.Status, f.Message)
	return f.Status
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

func WriteNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}

func WriteBadRequest(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusBadRequest, msg)
}
