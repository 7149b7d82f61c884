package site

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

// pageNames lists every template that is rendered inside layout.html.
var pageNames = []string{
	"home.html",
	"map.html",
	"line.html",
	"email.html",
	"subscribe.html",
	"requestpage.html",
	"unsubscribe.html",
	"subscribeform.html",
	"requestform.html",
	"unsubscribeform.html",
	"message.html",
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04") },
}

var pages = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		out[name] = template.Must(template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
	return out
}()

// render executes a page into a buffer first so a template error never
// leaves a half written response.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	t, ok := pages[name]
	if !ok {
		h.logger.Error(r.Context(), "unknown page", logger.String("page", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		h.logger.Error(r.Context(), "render page", logger.String("page", name),
			logger.Error(fmt.Errorf("%w: %v", ErrRender, err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
