// Package content models advisor recommendation content of arbitrary depth.
//
// Recommendations arrive as free-form JSON: lists of courses, keyed notes,
// nested plans. They are parsed once into a tagged variant tree (Sequence,
// Mapping, Scalar) and everything downstream walks that tree with a Visitor
// instead of inspecting shapes again.
package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Kind tags a node variant.
type Kind int

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "scalar"
	}
}

// Node is one element of a content tree.
type Node interface {
	Kind() Kind
	Accept(v Visitor) error
}

// Visitor handles each variant. Implementations recurse by calling Accept on
// children.
type Visitor interface {
	VisitScalar(Scalar) error
	VisitSequence(Sequence) error
	VisitMapping(Mapping) error
}

// Scalar is a leaf: string, number, bool, or nil.
type Scalar struct {
	Value any
}

func (Scalar) Kind() Kind                 { return KindScalar }
func (s Scalar) Accept(v Visitor) error   { return v.VisitScalar(s) }
func (s Sequence) Accept(v Visitor) error { return v.VisitSequence(s) }
func (m Mapping) Accept(v Visitor) error  { return v.VisitMapping(m) }

// String formats the scalar for display. nil renders as an empty string.
func (s Scalar) String() string {
	switch t := s.Value.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Sequence is an ordered list of nodes.
type Sequence []Node

func (Sequence) Kind() Kind { return KindSequence }

// Mapping is a keyed collection that keeps its key order.
type Mapping struct {
	Keys   []string
	Values map[string]Node
}

func (Mapping) Kind() Kind { return KindMapping }

// Get returns the child under key.
func (m Mapping) Get(key string) (Node, bool) {
	n, ok := m.Values[key]
	return n, ok
}

// FromValue converts decoded Go values into a tree, dispatching on runtime
// shape. Map keys are sorted because Go maps carry no order; use Parse to
// keep document order.
func FromValue(v any) Node {
	switch t := v.(type) {
	case Node:
		return t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := Mapping{Keys: keys, Values: make(map[string]Node, len(t))}
		for _, k := range keys {
			m.Values[k] = FromValue(t[k])
		}
		return m
	case []any:
		seq := make(Sequence, len(t))
		for i, item := range t {
			seq[i] = FromValue(item)
		}
		return seq
	case []string:
		seq := make(Sequence, len(t))
		for i, item := range t {
			seq[i] = Scalar{Value: item}
		}
		return seq
	default:
		return Scalar{Value: t}
	}
}

var (
	// ErrTrailingData is returned when a document holds more than one value.
	ErrTrailingData = errors.New("content: trailing data after document")

	// ErrTooDeep is returned when arrays and objects nest past MaxDepth.
	ErrTooDeep = errors.New("content: document nested too deeply")
)

// MaxDepth bounds how many arrays and objects Parse will descend into.
const MaxDepth = 1000

// Parse decodes a JSON document into a tree, keeping object key order.
func Parse(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := parseValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrTrailingData
	}
	return n, nil
}

// parseValue reads one value; depth counts the containers already open.
func parseValue(dec *json.Decoder, depth int) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}

	switch t := tok.(type) {
	case json.Delim:
		if depth >= MaxDepth {
			return nil, fmt.Errorf("%w: more than %d levels", ErrTooDeep, MaxDepth)
		}
		switch t {
		case '{':
			m := Mapping{Values: map[string]Node{}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("content: %w", err)
				}
				key, _ := keyTok.(string)
				child, err := parseValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				if _, dup := m.Values[key]; !dup {
					m.Keys = append(m.Keys, key)
				}
				m.Values[key] = child
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("content: %w", err)
			}
			return m, nil
		case '[':
			seq := Sequence{}
			for dec.More() {
				child, err := parseValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				seq = append(seq, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("content: %w", err)
			}
			return seq, nil
		default:
			return nil, fmt.Errorf("content: unexpected delimiter %q", t)
		}
	default:
		return Scalar{Value: t}, nil
	}
}
