// Package httpresp writes the JSON envelopes returned by every API endpoint.
package httpresp

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"social-link-bot/internal/apperr"

	"github.com/rs/zerolog"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Result    any    `json:"result,omitempty"`
	Error     any    `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path,omitempty"`
}

// ErrorBody is how an *apperr.Error is rendered in the "error" field.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type Writer struct {
	Production bool
	Log        zerolog.Logger
}

func New(production bool, log zerolog.Logger) *Writer {
	return &Writer{Production: production, Log: log}
}

// OK writes a 200 success envelope.
func (rw *Writer) OK(w http.ResponseWriter, r *http.Request, message string, result any) {
	rw.write(w, r, http.StatusOK, Envelope{Success: true, Message: message, Result: result})
}

// BadRequest writes a 400 failure envelope.
func (rw *Writer) BadRequest(w http.ResponseWriter, r *http.Request, message string, details any) {
	rw.Log.Warn().Str("path", r.URL.Path).Interface("details", details).Msg(message)
	rw.write(w, r, http.StatusBadRequest, Envelope{Message: message, Error: details})
}

// Unauthorized writes a 401 failure envelope.
func (rw *Writer) Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	rw.Log.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg(message)
	rw.write(w, r, http.StatusUnauthorized, Envelope{Message: message, Error: "unauthorized"})
}

func (rw *Writer) NotFound(w http.ResponseWriter, r *http.Request) {
	rw.write(w, r, http.StatusNotFound, Envelope{Message: "Ruta no encontrada", Error: "not_found"})
}

// InternalServerError writes a 500 failure envelope. Details are dropped in production.
func (rw *Writer) InternalServerError(w http.ResponseWriter, r *http.Request, message string, details any) {
	rw.Log.Error().Str("path", r.URL.Path).Interface("details", details).Msg(message)
	if rw.Production {
		details = nil
	}
	rw.write(w, r, http.StatusInternalServerError, Envelope{Message: message, Error: details})
}

// Error writes a failure envelope for err, choosing the status from its kind.
func (rw *Writer) Error(w http.ResponseWriter, r *http.Request, message string, err error) {
	body := Body(err)
	if StatusFor(err) == http.StatusInternalServerError {
		rw.InternalServerError(w, r, message, body)
		return
	}
	rw.BadRequest(w, r, message, body)
}

// StatusFor maps a failure to the HTTP status returned by the controllers.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput, apperr.KindInvalidCode, apperr.KindProvider:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Body renders err for the "error" field.
func Body(err error) any {
	if err == nil {
		return nil
	}
	kind := apperr.KindOf(err)
	if kind == apperr.KindUnknown {
		return err.Error()
	}
	b := ErrorBody{Kind: kind.String(), Message: err.Error(), Details: apperr.DetailsOf(err)}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		b.Code = ae.Code
	}
	return b
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (rw *Writer) write(w http.ResponseWriter, r *http.Request, status int, env Envelope) {
	env.Timestamp = time.Now().UTC().Format(time.RFC3339)
	env.Path = r.URL.Path
	JSON(w, status, env)
}
