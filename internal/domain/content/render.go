package content

import "strings"

// TextRenderer renders a tree as an indented outline:
//
//	Courses:
//	  - MATH 221
//	  - CS 200
//	Advisor: Dr. Lee
type TextRenderer struct {
	Indent string

	b     strings.Builder
	depth int
}

// Render renders n with two-space indentation.
func Render(n Node) string {
	if n == nil {
		return ""
	}
	r := &TextRenderer{Indent: "  "}
	_ = n.Accept(r)
	return r.String()
}

// String returns the rendered text without a trailing newline.
func (r *TextRenderer) String() string {
	return strings.TrimSuffix(r.b.String(), "\n")
}

func (r *TextRenderer) line(s string) {
	r.b.WriteString(strings.Repeat(r.Indent, r.depth))
	r.b.WriteString(s)
	r.b.WriteByte('\n')
}

func (r *TextRenderer) nested(n Node) error {
	r.depth++
	defer func() { r.depth-- }()
	return n.Accept(r)
}

// VisitScalar writes the scalar on its own line.
func (r *TextRenderer) VisitScalar(s Scalar) error {
	r.line(s.String())
	return nil
}

// VisitSequence writes one bullet per element; non-scalar elements nest
// under an empty bullet.
func (r *TextRenderer) VisitSequence(seq Sequence) error {
	for _, item := range seq {
		if sc, ok := item.(Scalar); ok {
			r.line("- " + sc.String())
			continue
		}
		r.line("-")
		if err := r.nested(item); err != nil {
			return err
		}
	}
	return nil
}

// VisitMapping writes "key: value" for scalars and "key:" followed by an
// indented block otherwise.
func (r *TextRenderer) VisitMapping(m Mapping) error {
	for _, k := range m.Keys {
		child := m.Values[k]
		if sc, ok := child.(Scalar); ok {
			r.line(k + ": " + sc.String())
			continue
		}
		r.line(k + ":")
		if err := r.nested(child); err != nil {
			return err
		}
	}
	return nil
}

// Stats counts the nodes of a tree.
type Stats struct {
	Scalars   int `json:"scalars"`
	Sequences int `json:"sequences"`
	Mappings  int `json:"mappings"`
	MaxDepth  int `json:"max_depth"`

	depth int
}

// Measure walks n and returns its node counts.
func Measure(n Node) Stats {
	var s Stats
	if n != nil {
		_ = n.Accept(&s)
	}
	return s
}

func (s *Stats) enter() {
	s.depth++
	if s.depth > s.MaxDepth {
		s.MaxDepth = s.depth
	}
}

func (s *Stats) VisitScalar(Scalar) error {
	s.enter()
	s.depth--
	s.Scalars++
	return nil
}

func (s *Stats) VisitSequence(seq Sequence) error {
	s.enter()
	defer func() { s.depth-- }()
	s.Sequences++
	for _, item := range seq {
		if err := item.Accept(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stats) VisitMapping(m Mapping) error {
	s.enter()
	defer func() { s.depth-- }()
	s.Mappings++
	for _, k := range m.Keys {
		if err := m.Values[k].Accept(s); err != nil {
			return err
		}
	}
	return nil
}
