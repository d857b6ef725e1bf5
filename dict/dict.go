// Package dict implements the hierarchical data dictionary that drives
// template expansion: an ordered marker->value mapping that is
// simultaneously a string table, a list of child dictionaries for section
// iteration, and an include descriptor.
package dict

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MaxMarkerLength is the hard cap on a marker name (sigil excluded).
const MaxMarkerLength = 64

// Kind tags the value currently held by an entry.
type Kind int

const (
	// KindString holds a literal replacement string.
	KindString Kind = iota
	// KindSections holds an ordered list of child dictionaries.
	KindSections
	// KindInclude holds an include descriptor, which is also a section list.
	KindInclude
)

// GetTemplateFunc fetches the template text for an include, given the
// filename (or include name, if no filename was set). The second return
// value is false if the text could not be obtained.
type GetTemplateFunc func(name string) (string, bool)

// CleanupTemplateFunc is called once, when the owning dictionary is
// released, on the cached text returned by a GetTemplateFunc.
type CleanupTemplateFunc func(name string, template string)

// VariableMissingFunc is consulted when a variable marker has no string
// value anywhere in the lookup chain.
type VariableMissingFunc func(marker string) (string, bool)

// ModifierMissingFunc is consulted when a modifier segment in a variable's
// pipeline names a modifier that isn't registered.
type ModifierMissingFunc func(name, args, marker, value string, out io.Writer) bool

// Include is the include descriptor for a KindInclude entry. Sections is
// kept as an ordinary field (not embedded via type-punning, unlike the
// original C implementation) and exposed through Value.Sections so callers
// never need to know whether they're looking at a plain section list or an
// include.
type Include struct {
	Sections        []*Dictionary
	GetTemplate     GetTemplateFunc
	CleanupTemplate CleanupTemplateFunc
	Filename        string

	cached  string
	fetched bool
}

// Value is the tagged variant stored per marker.
type Value struct {
	kind    Kind
	str     string
	strSet  bool
	hidden  bool
	include *Include
}

// Kind reports which variant is populated.
func (v *Value) Kind() Kind { return v.kind }

// String returns the literal string and true if this value is a KindString.
func (v *Value) String() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Sections returns the child-dictionary list for a KindSections or
// KindInclude value, or nil otherwise. Both variants return the same
// underlying list.
func (v *Value) Sections() []*Dictionary {
	switch v.kind {
	case KindSections:
		return v.include.Sections
	case KindInclude:
		return v.include.Sections
	default:
		return nil
	}
}

// Include returns the include descriptor for a KindInclude value, or nil.
func (v *Value) Include() *Include {
	if v.kind != KindInclude {
		return nil
	}
	return v.include
}

// Hidden reports whether set_section_visibility marked this entry HIDDEN.
func (v *Value) Hidden() bool { return v.hidden }

// Dictionary is an ordered marker->Value mapping with a non-owning parent
// pointer used only for lookup chaining. Children added via AddDictionary
// are owned by their parent: destroying a parent destroys its children.
type Dictionary struct {
	order  []string
	values map[string]*Value
	parent *Dictionary

	variableMissing VariableMissingFunc
	modifierMissing ModifierMissingFunc
}

// New creates an empty dictionary with no parent.
func New() *Dictionary {
	return &Dictionary{values: make(map[string]*Value)}
}

func validateMarker(marker string) error {
	if marker == "" {
		return errors.New("dict: marker must not be empty")
	}
	if len(marker) > MaxMarkerLength {
		return errors.Errorf("dict: marker %q exceeds %d bytes", marker, MaxMarkerLength)
	}
	return nil
}

func (d *Dictionary) entry(marker string) *Value {
	return d.values[marker]
}

func (d *Dictionary) put(marker string, v *Value) {
	if _, ok := d.values[marker]; !ok {
		d.order = append(d.order, marker)
	}
	d.values[marker] = v
}

// SetString sets marker to a literal string value. Calling it twice on the
// same marker replaces the prior value; the earlier string is released.
func (d *Dictionary) SetString(marker, value string) error {
	if err := validateMarker(marker); err != nil {
		return err
	}
	if existing := d.entry(marker); existing != nil && existing.kind != KindString {
		return errors.Errorf("dict: marker %q already holds a section/include value", marker)
	}
	d.put(marker, &Value{kind: KindString, str: value, strSet: true})
	return nil
}

// SetStringf is SetString with printf-style formatting.
func (d *Dictionary) SetStringf(marker, format string, args ...interface{}) error {
	return d.SetString(marker, fmt.Sprintf(format, args...))
}

// SetInt sets marker to the decimal representation of value.
func (d *Dictionary) SetInt(marker string, value int) error {
	return d.SetString(marker, strconv.Itoa(value))
}

// AddDictionary appends child as the next entry in marker's section list,
// creating the list if this is the first child. child.parent is set to d.
// Returns an error if marker already holds a KindString value.
func (d *Dictionary) AddDictionary(marker string, child *Dictionary) error {
	if err := validateMarker(marker); err != nil {
		return err
	}
	if child == nil {
		return errors.New("dict: child dictionary must not be nil")
	}
	existing := d.entry(marker)
	switch {
	case existing == nil:
		d.put(marker, &Value{kind: KindSections, include: &Include{Sections: []*Dictionary{child}}})
	case existing.kind == KindString:
		return errors.Errorf("dict: marker %q already holds a string value", marker)
	default:
		existing.include.Sections = append(existing.include.Sections, child)
	}
	child.parent = d
	return nil
}

// SetIncludeCallback promotes marker to (or updates) a KindInclude entry
// with the given callbacks, preserving any section list already present.
// Returns an error if marker already holds a KindString value.
func (d *Dictionary) SetIncludeCallback(marker string, get GetTemplateFunc, cleanup CleanupTemplateFunc) error {
	if err := validateMarker(marker); err != nil {
		return err
	}
	existing := d.entry(marker)
	switch {
	case existing == nil:
		d.put(marker, &Value{kind: KindInclude, include: &Include{GetTemplate: get, CleanupTemplate: cleanup}})
	case existing.kind == KindString:
		return errors.Errorf("dict: marker %q already holds a string value", marker)
	default:
		existing.kind = KindInclude
		existing.include.GetTemplate = get
		existing.include.CleanupTemplate = cleanup
	}
	return nil
}

// SetIncludeFilename promotes marker to a KindInclude entry that loads its
// template text from the given file path using the default loader and
// cleanup pair.
func (d *Dictionary) SetIncludeFilename(marker, filename string) error {
	if err := d.SetIncludeCallback(marker, defaultFileLoader, defaultFileCleanup); err != nil {
		return err
	}
	d.entry(marker).include.Filename = filename
	return nil
}

func defaultFileLoader(name string) (string, bool) {
	content, err := os.ReadFile(name)
	if err != nil {
		return "", false
	}
	return string(content), true
}

func defaultFileCleanup(string, string) {}

// SetSectionVisibility marks marker hidden or visible. A hidden section (or
// include) expands every iteration with its active dictionary suppressed
// (producing no output) while still scanning its body to advance the
// cursor; see the engine package for the expansion rule.
func (d *Dictionary) SetSectionVisibility(marker string, hidden bool) error {
	existing := d.entry(marker)
	if existing == nil || existing.kind == KindString {
		return errors.Errorf("dict: marker %q has no section/include entry to hide", marker)
	}
	existing.hidden = hidden
	return nil
}

// SetVariableMissingFunc stores the variable-missing callback on d.
func (d *Dictionary) SetVariableMissingFunc(fn VariableMissingFunc) { d.variableMissing = fn }

// SetModifierMissingFunc stores the modifier-missing callback on d.
func (d *Dictionary) SetModifierMissingFunc(fn ModifierMissingFunc) { d.modifierMissing = fn }

// VariableMissingFunc returns d's own variable-missing callback, or nil.
func (d *Dictionary) VariableMissingFunc() VariableMissingFunc { return d.variableMissing }

// ModifierMissingFunc returns d's own modifier-missing callback, or nil.
func (d *Dictionary) ModifierMissingFunc() ModifierMissingFunc { return d.modifierMissing }

// Parent returns d's parent dictionary, or nil at the root of the chain.
func (d *Dictionary) Parent() *Dictionary { return d.parent }

// LookupString walks the dictionary chain (self, then parent, ...) looking
// for a KindString entry named marker.
func (d *Dictionary) LookupString(marker string) (string, bool) {
	for cur := d; cur != nil; cur = cur.parent {
		if v := cur.entry(marker); v != nil && v.kind == KindString {
			return v.str, true
		}
	}
	return "", false
}

// LookupValue walks the dictionary chain looking for any entry named
// marker, regardless of kind.
func (d *Dictionary) LookupValue(marker string) (*Value, *Dictionary) {
	for cur := d; cur != nil; cur = cur.parent {
		if v := cur.entry(marker); v != nil {
			return v, cur
		}
	}
	return nil, nil
}

// LookupSections walks the dictionary chain looking for a KindSections or
// KindInclude entry named marker.
func (d *Dictionary) LookupSections(marker string) (*Value, bool) {
	for cur := d; cur != nil; cur = cur.parent {
		if v := cur.entry(marker); v != nil && v.kind != KindString {
			return v, true
		}
	}
	return nil, false
}

// LookupInclude walks the dictionary chain looking for a KindInclude entry
// named marker.
func (d *Dictionary) LookupInclude(marker string) (*Include, bool) {
	for cur := d; cur != nil; cur = cur.parent {
		if v := cur.entry(marker); v != nil && v.kind == KindInclude {
			return v.include, true
		}
	}
	return nil, false
}

// VariableEquals reports whether marker resolves (via the lookup chain) to
// a string value byte-equal to value.
func (d *Dictionary) VariableEquals(marker, value string) bool {
	got, ok := d.LookupString(marker)
	return ok && got == value
}

// FetchIncludeNamed returns the include's template text, fetching and
// caching it on first use (falling back to markerName when no Filename was
// set, matching "get_template(filename ?? NAME)" from spec §4.7). Later
// calls for the same descriptor reuse the cached text; ok is false if the
// template could not be obtained.
func (inc *Include) FetchIncludeNamed(markerName string) (string, bool) {
	if inc.fetched {
		return inc.cached, true
	}
	name := inc.Filename
	if name == "" {
		name = markerName
	}
	return inc.fetchWithName(name)
}

func (inc *Include) fetchWithName(name string) (string, bool) {
	if inc.GetTemplate == nil {
		return "", false
	}
	text, ok := inc.GetTemplate(name)
	if !ok {
		return "", false
	}
	inc.cached = text
	inc.fetched = true
	return text, true
}

// Release runs the include's cleanup callback, if any, on its cached text.
// Called when the owning dictionary is destroyed.
func (inc *Include) Release(name string) {
	if inc.fetched && inc.CleanupTemplate != nil {
		inc.CleanupTemplate(name, inc.cached)
	}
}

// Destroy releases every include's cached template held transitively by d
// and its children. Dictionaries otherwise have no explicit teardown: Go's
// garbage collector reclaims everything else.
func (d *Dictionary) Destroy() {
	for _, marker := range d.order {
		v := d.values[marker]
		switch v.kind {
		case KindInclude:
			v.include.Release(marker)
			for _, child := range v.include.Sections {
				child.Destroy()
			}
		case KindSections:
			for _, child := range v.include.Sections {
				child.Destroy()
			}
		}
	}
}

// Fprint pretty-prints the dictionary's entries, one marker=value pair per
// line, in insertion order. Section and include entries print as
// marker=(section) and nested dictionaries are indented with a tab per
// level of depth.
func (d *Dictionary) Fprint(w io.Writer, depth int) {
	prefix := strings.Repeat("\t", depth)
	for _, marker := range d.order {
		v := d.values[marker]
		switch v.kind {
		case KindString:
			fmt.Fprintf(w, "%s%s=%s\n", prefix, marker, v.str)
		default:
			fmt.Fprintf(w, "%s%s=(section)\n", prefix, marker)
			for _, child := range v.include.Sections {
				child.Fprint(w, depth+1)
			}
		}
	}
}

// New built-in markers seeded into the global dictionary at init.
const (
	biSpace   = "BI_SPACE"
	biNewline = "BI_NEWLINE"
)

var global = newGlobal()

func newGlobal() *Dictionary {
	d := New()
	_ = d.SetString(biSpace, " ")
	_ = d.SetString(biNewline, "\n")
	return d
}

// Global returns the process-wide dictionary seeded with BI_SPACE and
// BI_NEWLINE. It is the implicit ancestor of every lookup chain: NewRoot
// attaches new root dictionaries to it.
func Global() *Dictionary { return global }

// NewRoot creates an empty dictionary whose parent is the global
// dictionary, ready to be used as a template's active root dictionary.
func NewRoot() *Dictionary {
	d := New()
	d.parent = global
	return d
}
