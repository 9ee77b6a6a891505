package graph

import "reflect"

// Type models the small algebra of payload types the validator and the
// executor dispatch table reason about: concrete Go types, unions,
// parameterized containers, and a wildcard. It replaces runtime
// isinstance-style introspection with a closed, inspectable representation
// declared once at registration time.
type Type interface {
	typeString() string
}

// Any matches every other Type in either assignability direction.
type Any struct{}

func (Any) typeString() string { return "Any" }

// Concrete wraps a single Go type, compared by identity or Go assignability
// (which plays the role of the source language's subclass/interface checks).
type Concrete struct {
	RType reflect.Type
}

func (c Concrete) typeString() string {
	if c.RType == nil {
		return "Concrete(nil)"
	}
	return "Concrete(" + c.RType.String() + ")"
}

// Union matches if any one of its Options matches.
type Union struct {
	Options []Type
}

func (Union) typeString() string { return "Union" }

// List matches a Go slice whose element type is assignable to/from Elem.
type List struct {
	Elem Type
}

func (List) typeString() string { return "List" }

// Set matches a logical set-of-Elem; represented the same as List for
// assignability purposes since Go has no native set container.
type Set struct {
	Elem Type
}

func (Set) typeString() string { return "Set" }

// Tuple matches a fixed-arity, positionally-typed sequence.
type Tuple struct {
	Elems []Type
}

func (Tuple) typeString() string { return "Tuple" }

// Map matches a mapping from Key to Value.
type Map struct {
	Key   Type
	Value Type
}

func (Map) typeString() string { return "Map" }

// ConcreteOf builds a Concrete Type from a sample Go value's runtime type.
// Passing nil yields a Concrete with a nil RType, which is assignable to/from
// nothing except Any — callers that need "accepts anything typed" should use
// Any directly instead of ConcreteOf(nil).
func ConcreteOf(v any) Concrete {
	if v == nil {
		return Concrete{}
	}
	return Concrete{RType: reflect.TypeOf(v)}
}

// Assignable reports whether a value declared as src may flow into a
// position declared as tgt. It is the realization of spec.md §4.7 /
// §9's compatibility algebra, grounded on the recursive
// `_is_type_compatible` walk in the original validator: exact equality,
// subclass/interface relation (via Go's AssignableTo), Union on either
// side, Any as a wildcard, and generic container recursion.
func Assignable(src, tgt Type) bool {
	if _, ok := tgt.(Any); ok {
		return true
	}
	if _, ok := src.(Any); ok {
		return true
	}
	_, srcIsUnion := src.(Union)
	if u, ok := tgt.(Union); ok && !srcIsUnion {
		for _, opt := range u.Options {
			if Assignable(src, opt) {
				return true
			}
		}
		return false
	}
	if u, ok := src.(Union); ok {
		for _, opt := range u.Options {
			if !Assignable(opt, tgt) {
				return false
			}
		}
		return true
	}

	switch s := src.(type) {
	case Concrete:
		t, ok := tgt.(Concrete)
		if !ok {
			return false
		}
		return concreteAssignable(s, t)
	case List:
		t, ok := tgt.(List)
		if !ok {
			return false
		}
		return Assignable(s.Elem, t.Elem)
	case Set:
		t, ok := tgt.(Set)
		if !ok {
			return false
		}
		return Assignable(s.Elem, t.Elem)
	case Tuple:
		t, ok := tgt.(Tuple)
		if !ok || len(t.Elems) != len(s.Elems) {
			return false
		}
		for i := range s.Elems {
			if !Assignable(s.Elems[i], t.Elems[i]) {
				return false
			}
		}
		return true
	case Map:
		t, ok := tgt.(Map)
		if !ok {
			return false
		}
		return Assignable(s.Key, t.Key) && Assignable(s.Value, t.Value)
	default:
		return false
	}
}

func concreteAssignable(src, tgt Concrete) bool {
	if src.RType == nil || tgt.RType == nil {
		return false
	}
	if src.RType == tgt.RType {
		return true
	}
	return src.RType.AssignableTo(tgt.RType)
}

// ListOf wraps elem into a List for use as a fan-in target
// acceptance declaration.
func ListOf(elem Type) List { return List{Elem: elem} }
