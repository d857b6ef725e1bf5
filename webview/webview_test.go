package webview

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctemplate-go/ctemplate/dict"
)

func writeTemplate(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestEngine_LoadAndRender(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "home.ctpl", "Hello {{NAME}}!")

	e := New(dir)
	require.NoError(t, e.Load())

	d := dict.NewRoot()
	require.NoError(t, d.SetString("NAME", "World"))

	var buf strings.Builder
	require.NoError(t, e.Render(&buf, "home", d))
	require.Equal(t, "Hello World!", buf.String())
}

func TestEngine_HTTPHandler(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "greet.ctpl", "hi {{NAME}}")

	e := New(dir)
	require.NoError(t, e.Load())

	handler := e.HTTPHandler("greet", func(r *http.Request) *dict.Dictionary {
		d := dict.NewRoot()
		d.SetString("NAME", r.URL.Query().Get("name"))
		return d
	})

	req := httptest.NewRequest(http.MethodGet, "/?name=Ada", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hi Ada", rec.Body.String())
}

func TestEngine_ReloadModeReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "v.ctpl", "one")

	e := New(dir)
	e.Reload(true)

	d := dict.NewRoot()
	var buf strings.Builder
	require.NoError(t, e.Render(&buf, "v", d))
	require.Equal(t, "one", buf.String())

	writeTemplate(t, dir, "v.ctpl", "two")
	buf = strings.Builder{}
	require.NoError(t, e.Render(&buf, "v", d))
	require.Equal(t, "two", buf.String())
}
