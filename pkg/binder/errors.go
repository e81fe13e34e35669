package binder

import "errors"

// Common binding errors
var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrMissingContentType   = errors.New("missing content type")
	ErrInvalidJSON          = errors.New("invalid JSON request body")
	ErrInvalidPath          = errors.New("invalid path parameter")

	// ErrBinderNotApplicable tells the caller to skip this binder for the
	// current request, e.g. a JSON binder on a request without a body.
	ErrBinderNotApplicable = errors.New("binder not applicable to request")
)
