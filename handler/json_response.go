package handler

import (
	"encoding/json"
	"net/http"
)

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithJSONStatus sets a custom HTTP status code.
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

// JSON renders v as the response body with status 200 unless overridden.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: v}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSONError renders err as {"error": "..."}. An HTTPError in the chain
// supplies the status and message; anything else is a 500.
func JSONError(err error, opts ...JSONOption) Response {
	status, msg := statusOf(err)
	r := &jsonResponse{status: status, body: ErrorBody{Error: msg}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
