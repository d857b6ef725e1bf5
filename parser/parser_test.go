package parser

import "testing"

func TestParse_FlatText(t *testing.T) {
	nodes, err := Parse("hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Kind != NodeText || nodes[0].Text != "hello" {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
}

func TestParse_Section(t *testing.T) {
	nodes, err := Parse("{{#S}}<{{N}}>{{/S}}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Kind != NodeSection || nodes[0].Text != "S" {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
	body := nodes[0].Body
	if len(body) != 3 {
		t.Fatalf("expected 3 body nodes, got %d: %+v", len(body), body)
	}
	if body[0].Text != "<" || body[1].Kind != NodeVariable || body[1].Text != "N" || body[2].Text != ">" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestParse_NestedSections(t *testing.T) {
	nodes, err := Parse("{{#A}}{{#B}}x{{/B}}{{/A}}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Text != "A" {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
	inner := nodes[0].Body
	if len(inner) != 1 || inner[0].Kind != NodeSection || inner[0].Text != "B" {
		t.Fatalf("unexpected inner: %+v", inner)
	}
}

func TestParse_MismatchedEndSection(t *testing.T) {
	_, err := Parse("{{#A}}{{/B}}")
	if err == nil {
		t.Fatal("expected a mismatched-end-section error")
	}
}

func TestParse_UnterminatedSection(t *testing.T) {
	_, err := Parse("{{#A}}body")
	if err == nil {
		t.Fatal("expected an unterminated-section error")
	}
}

func TestParse_DanglingEndSection(t *testing.T) {
	_, err := Parse("{{/A}}")
	if err == nil {
		t.Fatal("expected a dangling-end-section error")
	}
}

func TestParse_Include(t *testing.T) {
	nodes, err := Parse("{{>INC}}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Kind != NodeInclude || nodes[0].Text != "INC" {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
}

func TestParse_CommentDropped(t *testing.T) {
	nodes, err := Parse("a{{! note }}b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 2 || nodes[0].Text != "a" || nodes[1].Text != "b" {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
}
