// Package webview serves a directory of CTemplate templates over HTTP,
// adapting the directory-walk-and-cache pattern of a framework view engine:
// templates are loaded by file extension, cached by name, and re-read from
// disk on every request when Reload is enabled.
package webview

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/ctemplate-go/ctemplate"
	"github.com/ctemplate-go/ctemplate/dict"
)

// Engine loads and caches the templates found under a directory, keyed by
// their path relative to it with the extension stripped.
type Engine struct {
	directory string
	extension string
	reload    bool
	debug     bool

	mutex     sync.RWMutex
	templates map[string]*ctemplate.Template
	opts      []ctemplate.Option
}

// New creates an Engine over directory. extension defaults to ".ctpl" if
// not given.
func New(directory string, extension ...string) *Engine {
	ext := ".ctpl"
	if len(extension) > 0 {
		ext = extension[0]
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
	}
	return &Engine{
		directory: directory,
		extension: ext,
		templates: make(map[string]*ctemplate.Template),
	}
}

// Reload toggles whether templates are re-read from disk on every Render.
func (e *Engine) Reload(reload bool) *Engine {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.reload = reload
	if reload {
		e.templates = make(map[string]*ctemplate.Template)
	}
	return e
}

// Debug toggles whether Load logs a warning for templates that fail to
// parse instead of returning on the first failure.
func (e *Engine) Debug(debug bool) *Engine {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.debug = debug
	return e
}

// WithOptions applies ctemplate.Options to every template this Engine
// loads.
func (e *Engine) WithOptions(opts ...ctemplate.Option) *Engine {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.opts = opts
	return e
}

// Load walks the directory, parsing every file under extension and caching
// it by its path relative to the directory, separators normalized to "/".
// Skipped in Reload mode, where templates load lazily per request instead.
func (e *Engine) Load() error {
	if e.reload {
		return nil
	}
	return filepath.Walk(e.directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, e.extension) {
			return nil
		}
		name := e.nameFor(path)
		tmpl, err := ctemplate.LoadTemplateFromPath(path, e.opts...)
		if err != nil {
			if e.debug {
				fmt.Printf("webview: failed to load template %s: %v\n", name, err)
				return nil
			}
			return errors.Wrapf(err, "webview: loading template %s", name)
		}
		e.mutex.Lock()
		e.templates[name] = tmpl
		e.mutex.Unlock()
		return nil
	})
}

func (e *Engine) nameFor(path string) string {
	name := strings.TrimPrefix(path, e.directory+string(filepath.Separator))
	name = strings.TrimSuffix(name, e.extension)
	return strings.ReplaceAll(name, string(filepath.Separator), "/")
}

// get returns the named template, loading it from disk if Reload is
// enabled or it isn't cached yet.
func (e *Engine) get(name string) (*ctemplate.Template, error) {
	if !e.reload {
		e.mutex.RLock()
		tmpl, ok := e.templates[name]
		e.mutex.RUnlock()
		if ok {
			return tmpl, nil
		}
	}
	path := filepath.Join(e.directory, name+e.extension)
	tmpl, err := ctemplate.LoadTemplateFromPath(path, e.opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "webview: loading template %s", name)
	}
	if !e.reload {
		e.mutex.Lock()
		e.templates[name] = tmpl
		e.mutex.Unlock()
	}
	return tmpl, nil
}

// Render expands the named template against d and writes the result to w.
func (e *Engine) Render(w io.Writer, name string, d *dict.Dictionary) error {
	tmpl, err := e.get(name)
	if err != nil {
		return err
	}
	return tmpl.Expand(w, d)
}

// DictFunc builds the dictionary used to expand a template for a given
// request.
type DictFunc func(r *http.Request) *dict.Dictionary

// HTTPHandler returns an http.Handler that renders the named template,
// building its dictionary from the incoming request via buildDict. The
// dictionary is request-scoped: once the response is written it is torn
// down, releasing any cached include bodies fetched while rendering.
func (e *Engine) HTTPHandler(name string, buildDict DictFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := buildDict(r)
		if d == nil {
			d = ctemplate.NewDictionary()
		}
		defer d.Destroy()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := e.Render(w, name, d); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// Templates returns the names of every template currently cached.
func (e *Engine) Templates() []string {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	names := make([]string, 0, len(e.templates))
	for name := range e.templates {
		names = append(names, name)
	}
	return names
}
