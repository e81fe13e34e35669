// Package binder turns HTTP requests into typed request structs for the
// handler package.
//
// Two binders are provided. JSON decodes a strict, size-limited JSON body.
// Path copies router path parameters into fields tagged `path:"..."`.
// Binders are chained with handler.WithBinders and run in order:
//
//	type ScheduleRequest struct {
//		LevelID   string `path:"levelId" json:"-"`
//		PublishAt string `json:"publishAt"`
//	}
//
//	handler.Wrap(schedule, handler.WithBinders[handler.Context, ScheduleRequest](
//		binder.Path(chi.URLParam),
//		binder.JSON(),
//	))
//
// Failures wrap ErrInvalidJSON, ErrInvalidPath, ErrMissingContentType or
// ErrUnsupportedMediaType. ErrBinderNotApplicable asks the caller to skip the
// binder for this request.
package binder
