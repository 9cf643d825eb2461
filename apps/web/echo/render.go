package echoweb

import (
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/music"
	"github.com/humanistchoir/members/core/page"
)

const (
	webTemplatesDir = "templates/web"
	csrfField       = "csrfmiddlewaretoken"
	csrfCookie      = "csrftoken"
	csrfContextKey  = "csrf" // echo's CSRF middleware default
)

type viewData map[string]interface{}

var funcs = template.FuncMap{
	"markdown": func(src string) template.HTML {
		html, err := page.Markdown(src)
		if err != nil {
			return template.HTML(template.HTMLEscapeString(src))
		}
		return html
	},
	"readableName": func(p string) string { return music.ReadableName(path.Base(p)) },
	"naturaltime":  humanize.Time,
	"ordinal":      humanize.Ordinal,
	"date":         func(t time.Time, layout string) string { return t.Format(layout) },
	"raw":          func(s string) template.HTML { return template.HTML(s) },
	"isZero":       func(t time.Time) bool { return t.IsZero() },
}

// renderer executes the page templates under fs/templates/web, each wrapped in _base.gohtml.
type renderer struct {
	templates map[string]*template.Template
}

func newRenderer(fsys fs.FS) (*renderer, error) {
	r := &renderer{templates: make(map[string]*template.Template)}
	base := path.Join(webTemplatesDir, "_base.gohtml")

	fps, err := fs.Glob(fsys, path.Join(webTemplatesDir, "*.gohtml"))
	if err != nil {
		return nil, errors.Wrap(err, "listing templates")
	}
	for _, fp := range fps {
		fname := path.Base(fp)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		tmpl, err := template.New(fname).Funcs(funcs).ParseFS(fsys, base, fp)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", fname)
		}
		r.templates[strings.TrimSuffix(fname, ".gohtml")] = tmpl
	}
	if _, ok := r.templates["error"]; !ok {
		return nil, errors.Errorf("no error template in %s", webTemplatesDir)
	}
	return r, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return errors.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "_base.gohtml", data)
}

// render adds the session user and CSRF token to data before rendering the named page.
func render(ctx echo.Context, code int, name string, data viewData) error {
	if data == nil {
		data = viewData{}
	}
	if usr, ok := getContextUser(ctx); ok {
		data["User"] = usr
	}
	if token, ok := ctx.Get(csrfContextKey).(string); ok {
		data["CSRFToken"] = token
	}
	data["CSRFField"] = csrfField
	data["Now"] = core.NowFunc()
	data["Path"] = ctx.Request().URL.Path
	return ctx.Render(code, name, data)
}
