package binder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"
)

// DefaultMaxJSONSize is the default maximum size for JSON request bodies (1MB).
const DefaultMaxJSONSize = 1 << 20

// JSON creates a strict JSON body binder. Unknown fields and trailing data are
// rejected, and top-level string fields are trimmed of surrounding whitespace.
//
// A request with neither a body nor a Content-Type header yields
// ErrBinderNotApplicable so the binder can be chained with others.
//
//	r.Post("/api/level", handler.Wrap(createLevel,
//		handler.WithBinders[handler.Context, CreateLevelRequest](binder.JSON()),
//	))
func JSON() func(r *http.Request, v any) error {
	return JSONWithLimit(DefaultMaxJSONSize)
}

// JSONWithLimit is JSON with a custom body size limit in bytes.
func JSONWithLimit(limit int64) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if err := r.Context().Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
				return ErrBinderNotApplicable
			}
			return fmt.Errorf("%w: missing content-type header, expected application/json", ErrMissingContentType)
		}

		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedMediaType, err)
		}
		if mediaType != "application/json" {
			return fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, mediaType)
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
		if err != nil {
			return fmt.Errorf("%w: failed to read request body: %v", ErrInvalidJSON, err)
		}
		if int64(len(body)) > limit {
			return fmt.Errorf("%w: request body too large (max %d bytes)", ErrInvalidJSON, limit)
		}

		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.DisallowUnknownFields()

		if err := decoder.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: empty body", ErrInvalidJSON)
			}
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}

		var extra json.RawMessage
		if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
		}

		trimStrings(v)
		return nil
	}
}

// trimStrings trims whitespace from the exported string fields of a struct
// pointer, one level deep. Nested values keep their raw content.
func trimStrings(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return
	}
	for i := range rv.NumField() {
		field := rv.Field(i)
		if field.Kind() == reflect.String && field.CanSet() {
			field.SetString(strings.TrimSpace(field.String()))
		}
	}
}
