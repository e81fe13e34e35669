package handler

import "net/http"

type redirectResponse struct {
	url  string
	code int
}

func (r redirectResponse) Render(w http.ResponseWriter, req *http.Request) error {
	http.Redirect(w, req, r.url, r.code)
	return nil
}

// Redirect responds with 303 See Other.
func Redirect(url string) Response {
	return redirectResponse{url: url, code: http.StatusSeeOther}
}

// RedirectWithCode responds with the given 3xx status, e.g. 307 to keep the
// request method.
func RedirectWithCode(url string, code int) Response {
	return redirectResponse{url: url, code: code}
}
