package ctemplate

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadTemplateText_ExpandToString(t *testing.T) {
	tmpl, err := LoadTemplateText("Hello {{NAME}}!")
	require.NoError(t, err)

	d := NewDictionary()
	require.NoError(t, d.SetString("NAME", "World"))

	out, err := tmpl.ExpandToString(d)
	require.NoError(t, err)
	require.Equal(t, "Hello World!", out)
}

func TestTemplate_SetDelimitersReparses(t *testing.T) {
	tmpl, err := LoadTemplateText("<%NAME%>")
	require.NoError(t, err)
	require.NoError(t, tmpl.SetDelimiters("<%", "%>"))

	d := NewDictionary()
	require.NoError(t, d.SetString("NAME", "ok"))
	out, err := tmpl.ExpandToString(d)
	require.NoError(t, err)
	require.Equal(t, "ok", out)
}

func TestTemplate_WithVariableMissingFunc(t *testing.T) {
	tmpl, err := LoadTemplateText("[{{X}}]", WithVariableMissingFunc(func(marker string) (string, bool) {
		return "?" + marker + "?", true
	}))
	require.NoError(t, err)

	out, err := tmpl.ExpandToString(NewDictionary())
	require.NoError(t, err)
	require.Equal(t, "[?X?]", out)
}

func TestTemplate_WithModifier(t *testing.T) {
	tmpl, err := LoadTemplateText("{{V:shout}}", WithModifier("shout", func(_, _, _, value string, out io.Writer) {
		out.Write([]byte(value + "!"))
	}))
	require.NoError(t, err)

	d := NewDictionary()
	require.NoError(t, d.SetString("V", "hi"))
	out, err := tmpl.ExpandToString(d)
	require.NoError(t, err)
	require.Equal(t, "hi!", out)
}

func TestLoadTemplateText_ParseErrorOnMismatchedSection(t *testing.T) {
	_, err := LoadTemplateText("{{#A}}{{/B}}")
	require.Error(t, err)
}
