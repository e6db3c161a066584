/*
Package pathkey implements the immutable slash-separated path type used to
address nodes in the synced JSON tree.

A Path is an ordered sequence of string components. It never mutates in
place: every operation that "changes" a path returns a new value.
*/
package pathkey

import (
	"encoding/json"
	"strings"
)

// Path is an immutable sequence of path components, e.g. "a/b/c".
type Path struct {
	parts []string
}

// Empty is the path with zero components, addressing the tree root.
var Empty = Path{}

// New builds a Path from its slash-separated string form. Leading, trailing,
// and repeated slashes are ignored.
func New(s string) Path {
	if s == "" {
		return Empty
	}
	raw := strings.Split(s, "/")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return Path{parts: parts}
}

// FromSlice builds a Path from an already-split component list. The slice is
// copied; the caller's backing array is never aliased.
func FromSlice(components []string) Path {
	if len(components) == 0 {
		return Empty
	}
	parts := make([]string, len(components))
	copy(parts, components)
	return Path{parts: parts}
}

// IsEmpty reports whether p addresses the tree root.
func (p Path) IsEmpty() bool {
	return len(p.parts) == 0
}

// Len returns the number of components in p.
func (p Path) Len() int {
	return len(p.parts)
}

// Front returns the first component of p and true, or ("", false) if p is
// empty.
func (p Path) Front() (string, bool) {
	if len(p.parts) == 0 {
		return "", false
	}
	return p.parts[0], true
}

// Back returns the last component of p and true, or ("", false) if p is
// empty.
func (p Path) Back() (string, bool) {
	if len(p.parts) == 0 {
		return "", false
	}
	return p.parts[len(p.parts)-1], true
}

// PopFront returns p with its first component removed. Popping an empty path
// returns Empty.
func (p Path) PopFront() Path {
	if len(p.parts) == 0 {
		return Empty
	}
	return FromSlice(p.parts[1:])
}

// Parent returns p with its last component removed. The parent of Empty is
// Empty.
func (p Path) Parent() Path {
	if len(p.parts) == 0 {
		return Empty
	}
	return FromSlice(p.parts[:len(p.parts)-1])
}

// Child appends a single component to p.
func (p Path) Child(component string) Path {
	if component == "" {
		return p
	}
	parts := make([]string, len(p.parts)+1)
	copy(parts, p.parts)
	parts[len(p.parts)] = component
	return Path{parts: parts}
}

// Append concatenates other onto the end of p.
func (p Path) Append(other Path) Path {
	if other.IsEmpty() {
		return p
	}
	parts := make([]string, len(p.parts)+len(other.parts))
	copy(parts, p.parts)
	copy(parts[len(p.parts):], other.parts)
	return Path{parts: parts}
}

// Contains reports whether p is other or an ancestor of other.
func (p Path) Contains(other Path) bool {
	if len(p.parts) > len(other.parts) {
		return false
	}
	for i, part := range p.parts {
		if other.parts[i] != part {
			return false
		}
	}
	return true
}

// RelativeTo returns the path of p relative to ancestor, i.e. the components
// of p remaining after stripping ancestor's prefix. The second return value
// is false if ancestor does not contain p.
func (p Path) RelativeTo(ancestor Path) (Path, bool) {
	if !ancestor.Contains(p) {
		return Empty, false
	}
	return FromSlice(p.parts[len(ancestor.parts):]), true
}

// Components returns a copy of p's components.
func (p Path) Components() []string {
	out := make([]string, len(p.parts))
	copy(out, p.parts)
	return out
}

// String renders p in slash-separated form; Empty renders as "/".
func (p Path) String() string {
	if len(p.parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(p.parts, "/")
}

// Equal reports whether p and other address the same path.
func (p Path) Equal(other Path) bool {
	if len(p.parts) != len(other.parts) {
		return false
	}
	for i, part := range p.parts {
		if other.parts[i] != part {
			return false
		}
	}
	return true
}

// Compare returns -1, 0, or 1 according to the lexicographic order of the
// components of p and other, component by component; a path that is a
// strict prefix of another sorts before it.
func (p Path) Compare(other Path) int {
	n := len(p.parts)
	if len(other.parts) < n {
		n = len(other.parts)
	}
	for i := 0; i < n; i++ {
		if p.parts[i] < other.parts[i] {
			return -1
		}
		if p.parts[i] > other.parts[i] {
			return 1
		}
	}
	switch {
	case len(p.parts) < len(other.parts):
		return -1
	case len(p.parts) > len(other.parts):
		return 1
	default:
		return 0
	}
}

// Less reports whether p sorts before other.
func (p Path) Less(other Path) bool {
	return p.Compare(other) < 0
}

// MarshalJSON encodes p as its slash-separated string form.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes p from its slash-separated string form.
func (p *Path) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = New(s)
	return nil
}
