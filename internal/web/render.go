package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
	"github.com/shopspring/decimal"
)

//go:embed templates
var templateFS embed.FS

const (
	displayDate = "02/01/2006"
	inputDate   = "2006-01-02"
)

func formatDate(layout string) func(v interface{}) string {
	return func(v interface{}) string {
		switch t := v.(type) {
		case time.Time:
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		case *time.Time:
			if t == nil || t.IsZero() {
				return ""
			}
			return t.Format(layout)
		}
		return ""
	}
}

// withQuery returns "?"+raw with the given key/value pairs replaced. An
// empty value removes the key.
func withQuery(raw string, pairs ...string) string {
	values, _ := url.ParseQuery(raw)
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			values.Del(pairs[i])
			continue
		}
		values.Set(pairs[i], pairs[i+1])
	}
	if len(values) == 0 {
		return "?"
	}
	return "?" + values.Encode()
}

var funcs = template.FuncMap{
	"date":       formatDate(displayDate),
	"iso":        formatDate(inputDate),
	"money":      func(d decimal.Decimal) string { return d.StringFixed(2) },
	"markdown":   service.RenderMarkdown,
	"monthName":  models.MonthName,
	"withQuery":  withQuery,
	"upper":      strings.ToUpper,
	"roles":      models.Roles,
	"categories": models.ExpenseCategories,
	"meals": func() []models.MealType {
		return []models.MealType{models.MealLunch, models.MealDinner}
	},
}

// views holds one template set per page, each made of the layout, the
// partials and the page itself.
type views struct {
	pages map[string]*template.Template
}

func loadViews() (*views, error) {
	base, err := template.New("layout.html").Funcs(funcs).
		ParseFS(templateFS, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	files, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	v := &views{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		v.pages[strings.TrimSuffix(path.Base(file), ".html")] = t
	}
	return v, nil
}

func (v *views) render(w io.Writer, name string, data interface{}) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}
	return t.ExecuteTemplate(w, "layout.html", data)
}
