package payload

import "strings"

type Kind int

const (
	Absent Kind = iota
	Scalar
	List
)

// Value is a field as submitted: nothing, one value, or a repeated/array value.
type Value struct {
	kind  Kind
	items []string
}

func ScalarOf(s string) Value { return Value{kind: Scalar, items: []string{s}} }

func ListOf(items ...string) Value {
	return Value{kind: List, items: append([]string(nil), items...)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == Absent }

// Last returns the final submitted value. A List yields its last element.
func (v Value) Last() (string, bool) {
	if len(v.items) == 0 {
		return "", false
	}
	return v.items[len(v.items)-1], true
}

// Items returns every submitted value; a Scalar is a one-element list.
func (v Value) Items() []string {
	return append([]string(nil), v.items...)
}

func (v Value) append(s string, forceList bool) Value {
	v.items = append(v.items, s)
	if forceList || len(v.items) > 1 {
		v.kind = List
	} else {
		v.kind = Scalar
	}
	return v
}

// BaseName strips a trailing array index marker: "galleryImages[0]" and "urls[]" become
// "galleryImages" and "urls". The second result reports whether a marker was present.
func BaseName(name string) (string, bool) {
	if !strings.HasSuffix(name, "]") {
		return name, false
	}
	open := strings.LastIndexByte(name, '[')
	if open <= 0 {
		return name, false
	}
	for _, r := range name[open+1 : len(name)-1] {
		if r < '0' || r > '9' {
			return name, false
		}
	}
	return name[:open], true
}
