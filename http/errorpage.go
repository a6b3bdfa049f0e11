package http

import (
	"fmt"
	"html"
	"io"
	"net/http"
)

const errorPageHTML = `<html>
<head><title>%[1]d %[2]s</title></head>
<body>
<center><h1>%[1]d %[2]s</h1></center>
<hr><center>%[3]s</center>
</body>
</html>`

func writeErrorPage(w http.ResponseWriter, status int, footer string) {
	if footer == "" {
		footer = "static"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, fmt.Sprintf(errorPageHTML, status, http.StatusText(status), html.EscapeString(footer)))
}
