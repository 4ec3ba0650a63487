package format

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCaps is returned when a caps string cannot be parsed.
var ErrInvalidCaps = errors.New("format: invalid caps")

// ValueKind classifies a caps field value.
type ValueKind int

const (
	// KindScalar is a single fixed value.
	KindScalar ValueKind = iota
	// KindRange is [min, max] or [min, max, step]. Never fixed.
	KindRange
	// KindList is { a, b, ... }. Fixed only with a single item.
	KindList
	// KindArray is < a, b, ... >. Fixed when all items are.
	KindArray
)

// Value is one caps field value in its serialized form.
type Value struct {
	Type  string // the "(type)" annotation, empty when absent
	Kind  ValueKind
	Raw   string   // scalar text, quotes stripped
	Items []string // range bounds, list or array items
}

// IsFixed reports whether the value describes exactly one concrete value.
func (v Value) IsFixed() bool {
	switch v.Kind {
	case KindRange:
		return false
	case KindList:
		return len(v.Items) == 1
	default:
		return true
	}
}

// Structure is one media-type entry of a caps description.
type Structure struct {
	Name     string
	Features []string
	fields   map[string]Value
	order    []string
}

// Field returns the named field.
func (s Structure) Field(name string) (Value, bool) {
	v, ok := s.fields[name]
	return v, ok
}

// Fields returns field names in declaration order.
func (s Structure) Fields() []string {
	return append([]string(nil), s.order...)
}

// HasFeature reports whether the structure carries the given caps feature.
func (s Structure) HasFeature(feature string) bool {
	for _, f := range s.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// IsFixed reports whether every field is fixed and the features are concrete.
func (s Structure) IsFixed() bool {
	if s.HasFeature("ANY") {
		return false
	}
	for _, v := range s.fields {
		if !v.IsFixed() {
			return false
		}
	}
	return true
}

// Caps is a parsed caps description. Any marks the ANY caps.
type Caps struct {
	Any        bool
	Structures []Structure
}

// IsFixed follows the framework definition: exactly one fixed structure.
func (c Caps) IsFixed() bool {
	return !c.Any && len(c.Structures) == 1 && c.Structures[0].IsFixed()
}

// ParseCaps parses the framework's caps serialization, e.g.
//
//	video/x-raw(meta:GstVideoGLTextureUploadMeta), format=(string)NV12; video/x-raw, format=(string){ BGRx, BGRA }, width=(int)[ 1, 2147483647 ]
func ParseCaps(s string) (Caps, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "ANY":
		return Caps{Any: true}, nil
	case "EMPTY", "NONE", "":
		return Caps{}, nil
	}

	var caps Caps
	for _, part := range splitTopLevel(s, ';') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		st, err := parseStructure(part)
		if err != nil {
			return Caps{}, err
		}
		caps.Structures = append(caps.Structures, st)
	}
	return caps, nil
}

func parseStructure(s string) (Structure, error) {
	parts := splitTopLevel(s, ',')
	head := strings.TrimSpace(parts[0])

	st := Structure{fields: make(map[string]Value)}
	if i := strings.IndexByte(head, '('); i >= 0 {
		if !strings.HasSuffix(head, ")") {
			return Structure{}, fmt.Errorf("%w: unterminated features in %q", ErrInvalidCaps, head)
		}
		for _, f := range strings.Split(head[i+1:len(head)-1], ",") {
			if f = strings.TrimSpace(f); f != "" {
				st.Features = append(st.Features, f)
			}
		}
		head = strings.TrimSpace(head[:i])
	}
	if head == "" {
		return Structure{}, fmt.Errorf("%w: missing structure name in %q", ErrInvalidCaps, s)
	}
	st.Name = head

	for _, field := range parts[1:] {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		eq := strings.IndexByte(field, '=')
		if eq <= 0 {
			return Structure{}, fmt.Errorf("%w: field %q has no value", ErrInvalidCaps, field)
		}
		name := strings.TrimSpace(field[:eq])
		v, err := parseValue(strings.TrimSpace(field[eq+1:]))
		if err != nil {
			return Structure{}, fmt.Errorf("%w: field %s", err, name)
		}
		if _, dup := st.fields[name]; !dup {
			st.order = append(st.order, name)
		}
		st.fields[name] = v
	}
	return st, nil
}

func parseValue(s string) (Value, error) {
	var v Value
	if strings.HasPrefix(s, "(") {
		end := strings.IndexByte(s, ')')
		if end < 0 {
			return Value{}, fmt.Errorf("%w: unterminated type in %q", ErrInvalidCaps, s)
		}
		v.Type = strings.TrimSpace(s[1:end])
		s = strings.TrimSpace(s[end+1:])
	}
	if s == "" {
		return Value{}, fmt.Errorf("%w: empty value", ErrInvalidCaps)
	}

	var closer byte
	switch s[0] {
	case '[':
		v.Kind, closer = KindRange, ']'
	case '{':
		v.Kind, closer = KindList, '}'
	case '<':
		v.Kind, closer = KindArray, '>'
	default:
		v.Kind = KindScalar
		v.Raw = unquote(s)
		return v, nil
	}

	if s[len(s)-1] != closer {
		return Value{}, fmt.Errorf("%w: unterminated %q", ErrInvalidCaps, s)
	}
	for _, item := range splitTopLevel(s[1:len(s)-1], ',') {
		if item = strings.TrimSpace(item); item != "" {
			v.Items = append(v.Items, unquote(item))
		}
	}
	if v.Kind == KindRange && len(v.Items) != 2 && len(v.Items) != 3 {
		return Value{}, fmt.Errorf("%w: range needs 2 or 3 bounds, got %q", ErrInvalidCaps, s)
	}
	if v.Kind == KindList && len(v.Items) == 1 {
		v.Raw = v.Items[0]
	}
	return v, nil
}

// splitTopLevel splits on sep outside brackets, parentheses and quotes.
func splitTopLevel(s string, sep byte) []string {
	var (
		parts   []string
		depth   int
		quoted  bool
		escaped bool
		start   int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(' || c == '[' || c == '{' || c == '<':
			depth++
		case c == ')' || c == ']' || c == '}' || c == '>':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}
