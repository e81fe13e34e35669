// Package handler provides typed HTTP handlers for the JSON API.
//
// A HandlerFunc receives a Context and a request struct populated by the
// configured binders, and returns a Response. Wrap adapts it to
// http.HandlerFunc:
//
//	type LevelRequest struct {
//		LevelID string `path:"levelId"`
//	}
//
//	func publish(ctx handler.Context, req LevelRequest) handler.Response {
//		if err := svc.Publish(ctx, req.LevelID); err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(map[string]string{"message": "Level published"})
//	}
//
//	r.Post("/api/publish/{levelId}", handler.Wrap(publish,
//		handler.WithBinders[handler.Context, LevelRequest](binder.Path(chi.URLParam)),
//	))
//
// # Errors
//
// Every error response has the body {"error": "<message>"}. An HTTPError
// anywhere in the error chain supplies the status code and message. Any
// other error is rendered as a generic 500 so internal details stay in the
// logs. Binding failures surface as 400.
package handler
