package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-desk/library/internal/model"
	"github.com/Astemirdum/library-desk/pkg/validate"
)

//go:embed templates/*.html
var templateFiles embed.FS

const layout = "templates/layout.html"

// Page is the data every template receives.
type Page struct {
	Title    string
	User     string
	CSRF     string
	Messages []model.Message
	Errors   validate.FieldErrors
	Form     interface{}
	Data     interface{}
	Today    time.Time
}

// Renderer implements echo.Renderer with one template set per page,
// each page parsed together with the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan. 2, 2006")
	},
	"dateptr": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format("Jan. 2, 2006")
	},
	"isoDate": func(t time.Time) string {
		return t.Format(time.DateOnly)
	},
	"rupees": func(amount int) string {
		return fmt.Sprintf("₹%d", amount)
	},
	"memberTypes": func() []model.MemberType {
		return model.MemberTypes
	},
}

func NewRenderer() (*Renderer, error) {
	names, err := fs.Glob(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		if name == layout {
			continue
		}
		t, err := template.New(path.Base(layout)).Funcs(funcs).ParseFS(templateFiles, layout, name)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", name)
		}
		r.pages[path.Base(name)] = t
	}
	return r, nil
}

// MustRenderer panics if the embedded templates do not parse.
func MustRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return errors.Errorf("template %q not found", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}
