package email

import (
	"html/template"
	"strings"
)

var notificationTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; line-height: 1.5;">
<h2>{{.Title}}</h2>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}</body>
</html>`))

// RenderNotification wraps a plain-text body into the notification HTML
// layout. Blank lines separate paragraphs; content is HTML-escaped.
func RenderNotification(title, body string) (string, error) {
	var paragraphs []string
	for p := range strings.SplitSeq(body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var sb strings.Builder
	err := notificationTemplate.Execute(&sb, struct {
		Title      string
		Paragraphs []string
	}{title, paragraphs})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
