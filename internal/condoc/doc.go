// Package condoc reads and writes the section-nested condition document
// format. Section headers form a dotted path that mirrors the discriminator
// path of the condition model (e.g. [Condition.Memory.Unit.Byte] selects the
// Byte arm of the Unit union inside the Memory variant). Keys are simple
// `Name = value` pairs; enumerated options are validated against
// slash-delimited candidate lists by the callers that know the field.
package condoc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// KV is a single key/value pair inside a section. Order is preserved.
type KV struct {
	Key   string
	Value string
}

// Section is one [A.B.C] block with its keys in document order.
type Section struct {
	Path []string
	Keys []KV
}

// Document is an ordered list of sections.
type Document struct {
	Sections []*Section
}

// ParseError reports a malformed document with the offending line number.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("condition document line %d: %s", e.Line, e.Msg)
}

// Parse reads a document from its textual form. Blank lines and lines
// starting with '#' or ';' are skipped. Keys before any section header are
// rejected.
func Parse(data string) (*Document, error) {
	doc := &Document{}
	var current *Section

	lines := strings.Split(data, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, &ParseError{Line: i + 1, Msg: "unterminated section header"}
			}
			header := strings.TrimSpace(line[1 : len(line)-1])
			if header == "" {
				return nil, &ParseError{Line: i + 1, Msg: "empty section header"}
			}
			path := strings.Split(header, ".")
			for _, seg := range path {
				if strings.TrimSpace(seg) == "" {
					return nil, &ParseError{Line: i + 1, Msg: fmt.Sprintf("malformed section path %q", header)}
				}
			}
			current = &Section{Path: path}
			doc.Sections = append(doc.Sections, current)
			continue
		}

		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, &ParseError{Line: i + 1, Msg: fmt.Sprintf("expected key = value, got %q", line)}
		}
		if current == nil {
			return nil, &ParseError{Line: i + 1, Msg: "key outside of any section"}
		}

		key := strings.TrimSpace(line[:eq])
		if key == "" {
			return nil, &ParseError{Line: i + 1, Msg: "empty key"}
		}
		value := strings.TrimSpace(line[eq+1:])
		value = unquote(value)
		current.Keys = append(current.Keys, KV{Key: key, Value: value})
	}

	return doc, nil
}

// String serializes the document back to its textual form. Sections and keys
// are written in their stored order, so an encode/parse cycle is stable.
func (d *Document) String() string {
	var b strings.Builder
	for i, s := range d.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("[")
		b.WriteString(strings.Join(s.Path, "."))
		b.WriteString("]\n")
		for _, kv := range s.Keys {
			b.WriteString(kv.Key)
			b.WriteString(" = ")
			b.WriteString(quoteIfNeeded(kv.Value))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Add appends a new section with the given path and returns it.
func (d *Document) Add(path ...string) *Section {
	s := &Section{Path: path}
	d.Sections = append(d.Sections, s)
	return s
}

// Find returns the first section with the exact path, or nil.
func (d *Document) Find(path ...string) *Section {
	for _, s := range d.Sections {
		if pathEqual(s.Path, path) {
			return s
		}
	}
	return nil
}

// Children returns sections whose path is exactly one segment longer than
// prefix, in document order.
func (d *Document) Children(prefix ...string) []*Section {
	var out []*Section
	for _, s := range d.Sections {
		if len(s.Path) == len(prefix)+1 && pathEqual(s.Path[:len(prefix)], prefix) {
			out = append(out, s)
		}
	}
	return out
}

// NumberedChildren returns child sections whose final segment is a positive
// integer (repeated-element lists such as clauses, filters, automations),
// sorted by that index.
func (d *Document) NumberedChildren(prefix ...string) []*Section {
	type numbered struct {
		n int
		s *Section
	}
	var items []numbered
	for _, s := range d.Children(prefix...) {
		n, err := strconv.Atoi(s.Path[len(s.Path)-1])
		if err != nil || n < 1 {
			continue
		}
		items = append(items, numbered{n: n, s: s})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].n < items[j].n })
	out := make([]*Section, len(items))
	for i, it := range items {
		out[i] = it.s
	}
	return out
}

// Set appends or replaces a key in the section.
func (s *Section) Set(key, value string) {
	for i := range s.Keys {
		if s.Keys[i].Key == key {
			s.Keys[i].Value = value
			return
		}
	}
	s.Keys = append(s.Keys, KV{Key: key, Value: value})
}

// Get returns the value for key and whether it was present.
func (s *Section) Get(key string) (string, bool) {
	for _, kv := range s.Keys {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Name returns the final segment of the section path.
func (s *Section) Name() string {
	return s.Path[len(s.Path)-1]
}

// SplitOptions splits a slash-delimited candidate list ("Contains / Contains
// none / Equals") into its members.
func SplitOptions(list string) []string {
	parts := strings.Split(list, " / ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateOption checks that value is a member of the slash-delimited
// candidate list, case-insensitively, and returns the canonical spelling.
func ValidateOption(value, list string) (string, error) {
	for _, opt := range SplitOptions(list) {
		if strings.EqualFold(strings.TrimSpace(value), opt) {
			return opt, nil
		}
	}
	return "", fmt.Errorf("value %q is not one of %q", value, list)
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		if u, err := strconv.Unquote(v); err == nil {
			return u
		}
	}
	return v
}

func quoteIfNeeded(v string) string {
	if v == "" {
		return `""`
	}
	if strings.HasPrefix(v, " ") || strings.HasSuffix(v, " ") || strings.ContainsAny(v, "\n\"#;") {
		return strconv.Quote(v)
	}
	return v
}
