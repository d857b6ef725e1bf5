// Package ctemplate implements a CTemplate-dialect text template engine: an
// immutable template string plus a hierarchical data dictionary expand into
// output through variable substitution, section iteration, comments,
// includes, modifier pipelines, and dynamic delimiter reconfiguration.
//
// # Basic Usage
//
//	tmpl, err := ctemplate.LoadTemplateText("Hello {{NAME}}!\n")
//	d := ctemplate.NewDictionary()
//	d.SetString("NAME", "World")
//	out, err := tmpl.ExpandToString(d)
//
// # Template Syntax
//
// CTemplate recognizes the following markers inside a delimiter pair
// (default "{{" and "}}", reconfigurable per Template and mid-template via
// "{{=NEW_START NEW_END=}}"):
//
//   - {{NAME}} - variable substitution, optionally piped through modifiers
//   - {{NAME:modifier[=args]}} - a modifier pipeline applied to NAME's value
//   - {{#NAME}}...{{/NAME}} - a section, expanded once per child dictionary
//   - {{#NAME_separator}}...{{/NAME_separator}} - a section's separator
//     sub-section, nested directly in NAME and suppressed after the
//     section's final child
//   - {{!comment}} - dropped, produces no output
//   - {{>NAME}} - an include, fetched and memoized once per dictionary
//   - {{=NEW_START NEW_END=}} - switches the active delimiter pair
package ctemplate

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/ctemplate-go/ctemplate/dict"
	"github.com/ctemplate-go/ctemplate/engine"
	"github.com/ctemplate-go/ctemplate/lexer"
	"github.com/ctemplate-go/ctemplate/modifier"
	"github.com/ctemplate-go/ctemplate/parser"
)

// Version is the current version of ctemplate.
const Version = "1.0.0"

// Dictionary is an alias for dict.Dictionary, re-exported so callers never
// need to import the dict package directly for ordinary use.
type Dictionary = dict.Dictionary

// NewDictionary creates an empty dictionary rooted under the process-wide
// global dictionary (seeded with BI_SPACE and BI_NEWLINE).
func NewDictionary() *Dictionary {
	return dict.NewRoot()
}

// Option configures a Template at construction time.
type Option func(*Template)

// WithDelimiters sets the delimiter pair used when expansion begins, before
// any "{{=NEW_START NEW_END=}}" marker in the template switches it again.
func WithDelimiters(start, end string) Option {
	return func(t *Template) { t.delims = lexer.Delims{Start: start, End: end} }
}

// WithVariableMissingFunc installs the template-wide fallback for a missing
// variable, consulted only when no dictionary in the parse-context chain has
// its own variable-missing callback.
func WithVariableMissingFunc(fn dict.VariableMissingFunc) Option {
	return func(t *Template) { t.variableMissing = fn }
}

// WithModifierMissingFunc installs the template-wide fallback for an
// unregistered modifier name, consulted only when no dictionary in the
// parse-context chain has its own modifier-missing callback.
func WithModifierMissingFunc(fn dict.ModifierMissingFunc) Option {
	return func(t *Template) { t.modifierMissing = fn }
}

// WithModifier registers an additional modifier, alongside the built-in
// "none" and "cstring_escape", before the template is first expanded.
func WithModifier(name string, fn modifier.Func) Option {
	return func(t *Template) { t.modifiers.Register(name, fn) }
}

// Template is an immutable template string paired with the delimiter pair
// and modifier registry used to expand it. A Template's text never changes
// after construction; SetDelimiters re-parses the same text, while changing
// callbacks or modifiers does not re-parse it.
type Template struct {
	text   string
	delims lexer.Delims
	nodes  []parser.Node

	modifiers       *modifier.Registry
	variableMissing dict.VariableMissingFunc
	modifierMissing dict.ModifierMissingFunc
}

// New creates a Template with no text. LoadTemplateText and
// LoadTemplateFromPath build their own Template through New; there is no
// method that loads text into a Template New returned.
func New(opts ...Option) *Template {
	t := &Template{delims: lexer.Default(), modifiers: modifier.NewRegistry()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LoadTemplateText creates a new Template with opts applied and parses text
// as its content. Each call returns a fresh Template; the text of an
// existing Template is never replaced.
func LoadTemplateText(text string, opts ...Option) (*Template, error) {
	t := New(opts...)
	if err := t.reload(text); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadTemplateFromPath reads the file at path and loads it as the
// template's text.
func LoadTemplateFromPath(path string, opts ...Option) (*Template, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "ctemplate: reading %s", path)
	}
	return LoadTemplateText(string(content), opts...)
}

func (t *Template) reload(text string) error {
	nodes, err := lexParse(text, t.delims)
	if err != nil {
		return err
	}
	t.text = text
	t.nodes = nodes
	return nil
}

func lexParse(text string, delims lexer.Delims) ([]parser.Node, error) {
	tokens, err := lexer.NewWithDelims(text, delims).Tokenize()
	if err != nil {
		return nil, errors.Wrap(err, "ctemplate: tokenizing template")
	}
	nodes, err := parser.ParseTokens(tokens)
	if err != nil {
		return nil, errors.Wrap(err, "ctemplate: parsing template")
	}
	return nodes, nil
}

// SetDelimiters changes the delimiter pair used when expansion begins and
// re-parses the template's existing text against it.
func (t *Template) SetDelimiters(start, end string) error {
	t.delims = lexer.Delims{Start: start, End: end}
	return t.reload(t.text)
}

// AddModifier registers an additional modifier on this Template.
func (t *Template) AddModifier(name string, fn modifier.Func) {
	t.modifiers.Register(name, fn)
}

// SetVariableMissingFunc installs this Template's fallback for unresolved
// variables, consulted only when no dictionary in the parse-context chain
// has its own variable-missing callback.
func (t *Template) SetVariableMissingFunc(fn dict.VariableMissingFunc) {
	t.variableMissing = fn
}

// SetModifierMissingFunc installs this Template's fallback for unregistered
// modifier names, consulted only when no dictionary in the parse-context
// chain has its own modifier-missing callback.
func (t *Template) SetModifierMissingFunc(fn dict.ModifierMissingFunc) {
	t.modifierMissing = fn
}

// Expand writes the template's expansion against d to out.
func (t *Template) Expand(out io.Writer, d *dict.Dictionary) error {
	e := &engine.Expander{
		Modifiers:       t.modifiers,
		VariableMissing: t.variableMissing,
		ModifierMissing: t.modifierMissing,
	}
	result, err := e.Expand(t.nodes, d)
	if err != nil {
		return errors.Wrap(err, "ctemplate: expanding template")
	}
	_, err = out.Write(result)
	return err
}

// ExpandToString is Expand into a string.
func (t *Template) ExpandToString(d *dict.Dictionary) (string, error) {
	var buf strings.Builder
	if err := t.Expand(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Markers lists every marker form the lexer recognizes.
var Markers = []string{
	"{{NAME}}",
	"{{NAME:modifier}}",
	"{{NAME:modifier=args}}",
	"{{#NAME}}...{{/NAME}}",
	"{{NAME_separator}}",
	"{{!comment}}",
	"{{>NAME}}",
	"{{=NEW_START NEW_END=}}",
}

// BuiltinModifiers lists the modifiers registered in every new Template.
var BuiltinModifiers = []string{"none", "cstring_escape"}
