package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/target/track-analysis-api/internal/errors"
)

// DecodeJSON strictly decodes a single JSON value from the body into dst.
// On failure it writes the 4xx response itself and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err == nil && dec.More() {
		err = errors.New("request body must contain a single JSON value")
	}
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		WriteError(w, ErrorParams{Code: http.StatusRequestEntityTooLarge, ErrCode: "body_too_large", Err: err})
	case errors.Is(err, io.EOF):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: errors.New("request body is empty")})
	default:
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
	}
	return false
}

// WriteJSON encodes v before touching w, so an encoding failure still
// yields a clean 500.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
	Field   string
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

func WriteError(w http.ResponseWriter, p ErrorParams) {
	body := errorBody{Error: p.ErrCode, Field: p.Field}
	if p.Err != nil {
		body.Message = p.Err.Error()
	}
	WriteJSON(w, p.Code, body)
}

func writeUnauthorized(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
}

type errorMapping struct {
	status int
	code   string
}

// statusByCode maps the application error taxonomy onto HTTP. Forbidden
// shares not_found so another user's job ids are not confirmed to exist.
var statusByCode = map[apperrors.ErrorCode]errorMapping{
	apperrors.ErrCodeInvalidInput:       {http.StatusBadRequest, "invalid_input"},
	apperrors.ErrCodeNotFound:           {http.StatusNotFound, "not_found"},
	apperrors.ErrCodeForbidden:          {http.StatusNotFound, "not_found"},
	apperrors.ErrCodeConflict:           {http.StatusConflict, "conflict"},
	apperrors.ErrCodeStaleJob:           {http.StatusConflict, "stale_job"},
	apperrors.ErrCodeTransportFailure:   {http.StatusServiceUnavailable, "transport_failure"},
	apperrors.ErrCodePersistenceFailure: {http.StatusServiceUnavailable, "persistence_failure"},
	apperrors.ErrCodeTimeout:            {http.StatusGatewayTimeout, "timeout"},
	apperrors.ErrCodeCanceled:           {http.StatusServiceUnavailable, "canceled"},
}

func appErrorStatus(err error) (int, string) {
	if m, ok := statusByCode[apperrors.GetCode(err)]; ok {
		return m.status, m.code
	}
	return http.StatusInternalServerError, "internal"
}

// WriteAppError renders err through the taxonomy. Internal detail never
// reaches the client; only the error's user message does.
func WriteAppError(w http.ResponseWriter, err error) {
	status, code := appErrorStatus(err)
	body := errorBody{Error: code, Message: apperrors.UserMessage(err)}
	switch {
	case apperrors.IsForbidden(err):
		body.Message = "Resource not found"
	case apperrors.IsInvalidInput(err):
		body.Field = apperrors.GetField(err)
	}
	WriteJSON(w, status, body)
}
