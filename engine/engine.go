// Package engine walks a parsed Node tree against a dictionary and produces
// expanded output. It is the expansion half of the split the teacher's
// engine package made between parsing and execution: lexer and parser build
// the Node tree once, and Expander re-walks the same tree once per child
// dictionary a section or include iterates over, rather than re-scanning
// raw template bytes on every pass.
package engine

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ctemplate-go/ctemplate/dict"
	"github.com/ctemplate-go/ctemplate/lexer"
	"github.com/ctemplate-go/ctemplate/modifier"
	"github.com/ctemplate-go/ctemplate/parser"
	"github.com/ctemplate-go/ctemplate/runtime"
)

// ExpandError is a fatal error raised while expanding a Node tree, carrying
// the same line/near diagnostic context as a lexer or parser error when one
// is available (an include's fetched text failing to parse, for instance).
type ExpandError struct {
	Message string
	Line    int
	Near    string
	Err     error
}

func (e *ExpandError) Error() string {
	if e.Near != "" {
		return fmt.Sprintf("ctemplate: %s at line %d near %q: %v", e.Message, e.Line, e.Near, e.Err)
	}
	return fmt.Sprintf("ctemplate: %s at line %d: %v", e.Message, e.Line, e.Err)
}

// Unwrap exposes the underlying lexer/parser error.
func (e *ExpandError) Unwrap() error { return e.Err }

func lineAndNear(err error) (int, string) {
	switch e := err.(type) {
	case *lexer.Error:
		return e.Line, e.Near
	case *parser.Error:
		return e.Line, ""
	default:
		return 0, ""
	}
}

// Expander walks a Node tree against a dictionary, applying a modifier
// registry and a pair of template-wide fallback callbacks, each consulted
// only when no dictionary in the parse-context chain has its own callback.
type Expander struct {
	Modifiers       *modifier.Registry
	VariableMissing dict.VariableMissingFunc
	ModifierMissing dict.ModifierMissingFunc
}

// New creates an Expander whose registry holds only the built-in modifiers;
// callers normally use a Template's own registry instead.
func New() *Expander {
	return &Expander{Modifiers: modifier.NewRegistry()}
}

// context is one frame of the parse-context chain: the dictionary currently
// active for variable/section/include lookups, which section (if any) is
// iterating through context's Body, and the include-indentation state
// inherited from any enclosing include expansion.
type context struct {
	parent *context

	dict          *dict.Dictionary
	sectionName   string
	lastExpansion bool

	expandingInclude bool
	lineWS           string
}

// Expand walks nodes against root and returns the expanded output.
func (e *Expander) Expand(nodes []parser.Node, root *dict.Dictionary) ([]byte, error) {
	out := &bytes.Buffer{}
	ctx := &context{dict: root}
	if err := e.expandNodes(nodes, ctx, out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (e *Expander) expandNodes(nodes []parser.Node, ctx *context, out *bytes.Buffer) error {
	for _, node := range nodes {
		switch node.Kind {
		case parser.NodeText:
			e.emit(ctx, out, []byte(node.Text))
		case parser.NodeVariable:
			if err := e.expandVariable(node, ctx, out); err != nil {
				return err
			}
		case parser.NodeInclude:
			if err := e.expandInclude(node, ctx, out); err != nil {
				return err
			}
		case parser.NodeSection:
			if ctx.sectionName != "" && node.Text == ctx.sectionName+"_separator" {
				if !ctx.lastExpansion {
					if err := e.expandNodes(node.Body, ctx, out); err != nil {
						return err
					}
				}
				continue
			}
			if err := e.expandSection(node, ctx, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// expandVariable resolves node's marker through the active dictionary, then
// the parse-context chain's variable_missing callbacks, then the template's
// own. If the marker is unresolved even after the callback chain, it is
// dropped silently (spec §4.2).
func (e *Expander) expandVariable(node parser.Node, ctx *context, out *bytes.Buffer) error {
	var value string
	var ok bool
	if ctx.dict != nil {
		value, ok = ctx.dict.LookupString(node.Text)
	}
	if !ok {
		value, ok = e.lookupVariableMissing(ctx, node.Text)
	}
	if !ok {
		return nil
	}
	if len(node.Modifiers) == 0 {
		e.emit(ctx, out, []byte(value))
		return nil
	}

	var buf bytes.Buffer
	applied := false
	for _, mod := range node.Modifiers {
		if fn := e.Modifiers.Lookup(mod.Name); fn != nil {
			fn(mod.Name, mod.Args, node.Text, value, &buf)
			applied = true
			continue
		}
		if missing := e.lookupModifierMissing(ctx); missing != nil {
			if missing(mod.Name, mod.Args, node.Text, value, &buf) {
				applied = true
			}
		}
	}
	// An unmatched pipeline (no segment, known or via modifier_missing,
	// produced anything) falls back to the raw value; a pipeline where at
	// least one segment succeeded does not additionally append it.
	if !applied {
		buf.Reset()
		buf.WriteString(value)
	}
	e.emit(ctx, out, buf.Bytes())
	return nil
}

func (e *Expander) lookupVariableMissing(ctx *context, marker string) (string, bool) {
	for c := ctx; c != nil; c = c.parent {
		if c.dict != nil {
			if fn := c.dict.VariableMissingFunc(); fn != nil {
				return fn(marker)
			}
		}
	}
	if e.VariableMissing != nil {
		return e.VariableMissing(marker)
	}
	return "", false
}

func (e *Expander) lookupModifierMissing(ctx *context) dict.ModifierMissingFunc {
	for c := ctx; c != nil; c = c.parent {
		if c.dict != nil {
			if fn := c.dict.ModifierMissingFunc(); fn != nil {
				return fn
			}
		}
	}
	return e.ModifierMissing
}

// expandSection iterates node's body once per child dictionary in the
// active dictionary's section list named node.Text. A section that is empty
// or absent expands its body once, and a hidden section once per child,
// with the active dictionary forced to nil (variable_missing callbacks
// still run; includes are skipped, as no dictionary is there to resolve
// them) and every byte of that output rolled back out, matching a section
// the caller can neither see nor affect.
func (e *Expander) expandSection(node parser.Node, ctx *context, out *bytes.Buffer) error {
	name := node.Text
	var children []*dict.Dictionary
	hidden := false
	if ctx.dict != nil {
		if val, ok := ctx.dict.LookupSections(name); ok {
			children = val.Sections()
			hidden = val.Hidden()
		}
	}

	suppressed := hidden || len(children) == 0
	var rollback int
	if suppressed {
		rollback = out.Len()
	}

	count := len(children)
	if count == 0 {
		count = 1
	}
	it := runtime.NewIteration(count)
	for i := 0; i < count; i++ {
		it = it.Advance()
		var childDict *dict.Dictionary
		if !hidden && len(children) > 0 {
			childDict = children[it.Index]
		}
		childCtx := &context{parent: ctx, dict: childDict, sectionName: name, lastExpansion: it.Last()}
		if err := e.expandNodes(node.Body, childCtx, out); err != nil {
			return err
		}
	}

	if suppressed {
		out.Truncate(rollback)
	}
	return nil
}

// expandInclude fetches and memoizes the include's template text, parses it,
// and expands it exactly like a section: once per child dictionary in the
// include's own section list, or once with no active dictionary if that
// list is empty. Every newline the nested expansion emits is followed by
// the leading whitespace of the line this marker sits on (less whatever an
// enclosing include already adds), so included content inherits the
// indentation of the line it is inserted into. A hidden include expands
// with no active dictionary and its output is rolled back, as a hidden
// section's is.
func (e *Expander) expandInclude(node parser.Node, ctx *context, out *bytes.Buffer) error {
	if ctx.dict == nil {
		return nil
	}
	inc, ok := ctx.dict.LookupInclude(node.Text)
	if !ok {
		return nil
	}
	hidden := false
	if val, ok := ctx.dict.LookupSections(node.Text); ok && val.Include() == inc {
		hidden = val.Hidden()
	}
	text, ok := inc.FetchIncludeNamed(node.Text)
	if !ok {
		return nil
	}
	nodes, err := parser.Parse(text)
	if err != nil {
		line, near := lineAndNear(err)
		return &ExpandError{Message: fmt.Sprintf("parsing include %q", node.Text), Line: line, Near: near, Err: err}
	}

	includeCtx := &context{
		parent:           ctx,
		expandingInclude: true,
		lineWS:           strings.TrimPrefix(lineLeadingWhitespace(out), includeIndent(ctx)),
	}
	rollback := out.Len()

	children := inc.Sections
	count := len(children)
	if count == 0 {
		count = 1
	}
	it := runtime.NewIteration(count)
	for i := 0; i < count; i++ {
		it = it.Advance()
		var childDict *dict.Dictionary
		if !hidden && len(children) > 0 {
			childDict = children[it.Index]
		}
		iterCtx := &context{parent: includeCtx, dict: childDict, sectionName: node.Text, lastExpansion: it.Last()}
		if err := e.expandNodes(nodes, iterCtx, out); err != nil {
			if _, ok := err.(*ExpandError); ok {
				return err
			}
			line, near := lineAndNear(err)
			return &ExpandError{Message: fmt.Sprintf("expanding include %q", node.Text), Line: line, Near: near, Err: err}
		}
	}
	if hidden {
		out.Truncate(rollback)
	}
	return nil
}

// lineLeadingWhitespace returns the run of spaces/tabs at the start of the
// line currently being written to out, i.e. the indentation of the line the
// next byte will land on.
func lineLeadingWhitespace(out *bytes.Buffer) string {
	b := out.Bytes()
	start := bytes.LastIndexByte(b, '\n') + 1
	end := start
	for end < len(b) && (b[end] == ' ' || b[end] == '\t') {
		end++
	}
	return string(b[start:end])
}

// emit writes data to out, reproducing the captured indentation after every
// newline if ctx is nested inside one or more include expansions. Spans
// from multiple nested includes are concatenated outermost-first, so a
// twice-included block picks up both levels of indentation.
func (e *Expander) emit(ctx *context, out *bytes.Buffer, data []byte) {
	ws := includeIndent(ctx)
	if ws == "" {
		out.Write(data)
		return
	}
	for i := 0; i < len(data); i++ {
		out.WriteByte(data[i])
		if data[i] == '\n' {
			out.WriteString(ws)
		}
	}
}

func includeIndent(ctx *context) string {
	var spans []string
	for c := ctx; c != nil; c = c.parent {
		if c.expandingInclude {
			spans = append(spans, c.lineWS)
		}
	}
	if len(spans) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := len(spans) - 1; i >= 0; i-- {
		sb.WriteString(spans[i])
	}
	return sb.String()
}
