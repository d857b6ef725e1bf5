// Package parser builds a tree of Nodes out of the lexer's flat token
// stream, matching SectionStart/SectionEnd pairs (and rejecting mismatches)
// up front so the engine package can walk a Node's Body repeatedly, once
// per child dictionary, without re-validating nesting on every iteration.
package parser

import (
	"fmt"

	"github.com/ctemplate-go/ctemplate/lexer"
)

// NodeKind classifies a Node.
type NodeKind int

const (
	// NodeText is a run of literal bytes.
	NodeText NodeKind = iota
	// NodeVariable is a variable substitution, possibly piped through modifiers.
	NodeVariable
	// NodeSection is a "{{#NAME}}...{{/NAME}}" block.
	NodeSection
	// NodeInclude is a "{{>NAME}}" marker.
	NodeInclude
)

// Node is one element of the parsed template tree.
type Node struct {
	Kind NodeKind

	Text      string // literal text for NodeText, marker name otherwise
	Modifiers []lexer.ModifierRef
	Body      []Node // section body
	Line      int
}

// Error is a fatal parse error: a mismatched, dangling or unterminated
// section. Errors from the lexer are returned unchanged, as *lexer.Error.
type Error struct {
	Message string
	Line    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("template: %s at line %d", e.Message, e.Line)
}

// Parse tokenizes template and builds its Node tree.
func Parse(template string) ([]Node, error) {
	tokens, err := lexer.New(template).Tokenize()
	if err != nil {
		return nil, err
	}
	return ParseTokens(tokens)
}

// ParseTokens builds a Node tree from an already-tokenized stream.
func ParseTokens(tokens []lexer.Token) ([]Node, error) {
	nodes, rest, err := parseBody(tokens, "")
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, &Error{Message: fmt.Sprintf("unexpected end-section %q without a matching start", rest[0].Text), Line: rest[0].Line}
	}
	return nodes, nil
}

// parseBody consumes tokens up to and including the SectionEnd that closes
// sectionName, returning the tokens after it, or until it runs out of
// input. sectionName is the name of the enclosing section, which that
// SectionEnd must match; the empty string means "top level".
func parseBody(tokens []lexer.Token, sectionName string) ([]Node, []lexer.Token, error) {
	var nodes []Node
	for len(tokens) > 0 {
		tok := tokens[0]
		switch tok.Kind {
		case lexer.SectionEnd:
			if tok.Text != sectionName {
				return nil, nil, &Error{
					Message: fmt.Sprintf("mismatched end section {{/%s}}, expected {{/%s}}", tok.Text, sectionName),
					Line:    tok.Line,
				}
			}
			return nodes, tokens[1:], nil
		case lexer.SectionStart:
			body, rest, err := parseBody(tokens[1:], tok.Text)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, Node{Kind: NodeSection, Text: tok.Text, Body: body, Line: tok.Line})
			tokens = rest
		case lexer.Comment:
			tokens = tokens[1:]
		case lexer.Include:
			nodes = append(nodes, Node{Kind: NodeInclude, Text: tok.Text, Line: tok.Line})
			tokens = tokens[1:]
		case lexer.Variable:
			nodes = append(nodes, Node{Kind: NodeVariable, Text: tok.Text, Modifiers: tok.Modifiers, Line: tok.Line})
			tokens = tokens[1:]
		case lexer.Text:
			nodes = append(nodes, Node{Kind: NodeText, Text: tok.Text, Line: tok.Line})
			tokens = tokens[1:]
		}
	}
	if sectionName != "" {
		return nil, nil, &Error{Message: fmt.Sprintf("unterminated section {{#%s}}", sectionName), Line: 0}
	}
	return nodes, nil, nil
}
