package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// KindBadRequest marks a request body that could not be decoded.
const KindBadRequest core.ErrorKind = "bad_request"

// KindInternal marks a failure with no domain kind.
const KindInternal core.ErrorKind = "internal"

const maxBodyBytes = 1 << 20

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable kind and a human-readable message.
type ErrorDetail struct {
	Kind    core.ErrorKind `json:"kind"`
	Message string         `json:"message"`
}

// statusFor maps an error to its HTTP status and kind.
func statusFor(err error) (int, core.ErrorKind) {
	var bad *badRequestError
	if errors.As(err, &bad) {
		return http.StatusBadRequest, KindBadRequest
	}
	kind, ok := core.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, KindInternal
	}
	switch kind {
	case core.KindSpecNotFound:
		return http.StatusNotFound, kind
	case core.KindExecution:
		return http.StatusBadGateway, kind
	default:
		return http.StatusBadRequest, kind
	}
}

type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// decodeJSON reads a single JSON object from the request body. An empty
// body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &badRequestError{err: err}
	}
	if dec.More() {
		return &badRequestError{err: fmt.Errorf("unexpected data after JSON object")}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", kind, "error", err)
	} else {
		logger.Debug("request rejected", "kind", kind, "error", err)
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: err.Error()}})
}
