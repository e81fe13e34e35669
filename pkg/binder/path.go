package binder

import (
	"fmt"
	"net/http"
)

// Path creates a path parameter binder using the router's extractor, such as
// chi.URLParam.
//
// Struct tags select the parameter name:
//   - `path:"name"` binds to path parameter "name"
//   - `path:"-"` skips the field
//
// Fields without a tag are matched by their lowercased name. Supported field
// types are strings, integers, floats, bools and pointers to them.
//
//	type LevelRequest struct {
//		LevelID string `path:"levelId" json:"-"`
//	}
//
//	r.Post("/api/publish/{levelId}", handler.Wrap(publish,
//		handler.WithBinders[handler.Context, LevelRequest](binder.Path(chi.URLParam)),
//	))
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: extractor function is nil", ErrInvalidPath)
		}

		rv, err := structValue(v)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		rt := rv.Type()

		for i := range rv.NumField() {
			field := rv.Field(i)
			fieldType := rt.Field(i)
			if !field.CanSet() {
				continue
			}

			name, skip := parseFieldTag(fieldType, "path")
			if skip {
				continue
			}

			value := extractor(r, name)
			if value == "" {
				continue
			}

			if err := setFieldValue(field, fieldType.Type, value); err != nil {
				return fmt.Errorf("%w: field %s: %v", ErrInvalidPath, fieldType.Name, err)
			}
		}

		return nil
	}
}
