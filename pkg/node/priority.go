package node

import "encoding/json"

// Priority orders children under a node independently of their own value.
// A priority is either a string or a number; numbers sort before strings,
// and within a kind priorities sort by natural order.
type Priority struct {
	isString bool
	str      string
	num      float64
	isNil    bool
}

// NoPriority is the absence of an explicit priority.
var NoPriority = Priority{isNil: true}

// NumberPriority builds a numeric priority.
func NumberPriority(n float64) Priority {
	return Priority{num: n}
}

// StringPriority builds a string priority.
func StringPriority(s string) Priority {
	return Priority{isString: true, str: s}
}

// IsNil reports whether this is the absence of a priority.
func (p Priority) IsNil() bool {
	return p.isNil
}

// Export returns the plain JSON-able representation of p, or nil.
func (p Priority) Export() interface{} {
	if p.isNil {
		return nil
	}
	if p.isString {
		return p.str
	}
	return p.num
}

// Compare orders priorities: nil < numbers < strings; numbers by value,
// strings lexicographically.
func (p Priority) Compare(o Priority) int {
	switch {
	case p.isNil && o.isNil:
		return 0
	case p.isNil:
		return -1
	case o.isNil:
		return 1
	case !p.isString && !o.isString:
		switch {
		case p.num < o.num:
			return -1
		case p.num > o.num:
			return 1
		default:
			return 0
		}
	case p.isString && o.isString:
		switch {
		case p.str < o.str:
			return -1
		case p.str > o.str:
			return 1
		default:
			return 0
		}
	case !p.isString && o.isString:
		return -1 // numbers sort before strings
	default:
		return 1
	}
}

// Equal reports whether p and o are the same priority.
func (p Priority) Equal(o Priority) bool {
	return p.Compare(o) == 0
}

// MarshalJSON encodes p as its exported plain value: null, a string, or a
// number.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Export())
}

// UnmarshalJSON decodes p from its exported plain value.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		*p = StringPriority(val)
	case float64:
		*p = NumberPriority(val)
	default:
		*p = NoPriority
	}
	return nil
}
