/*
Package query implements Query: a (path, parameters) pair describing what
slice of the tree a view is interested in — ordering index, start/end
bounds over that index, and an optional limit.
*/
package query

import (
	"fmt"
	"strings"

	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/pathkey"
)

// DefaultIdentifier is the reserved query identifier for the unfiltered
// query at a path.
const DefaultIdentifier = "default"

// IndexKind names the index a query orders and filters over.
type IndexKind int

const (
	// ByKey orders children by their key.
	ByKey IndexKind = iota
	// ByValue orders children by their leaf value.
	ByValue
	// ByPriority orders children by their priority.
	ByPriority
	// ByChildPath orders children by the value at a named descendant path.
	ByChildPath
)

// LimitKind names which end of the ordered result a limit keeps.
type LimitKind int

const (
	// NoLimit means the query has no limit.
	NoLimit LimitKind = iota
	// LimitToFirst keeps the first N results.
	LimitToFirst
	// LimitToLast keeps the last N results.
	LimitToLast
)

// Bound is one endpoint (start or end) of an index-ordered range.
type Bound struct {
	Set       bool
	Value     node.Priority // the index value to start/end at
	Key       string        // tie-breaking child key, "" if unset
	Inclusive bool
}

// Params holds a query's filter/order/limit parameters. The zero value is
// the default (unfiltered) parameter set.
type Params struct {
	Index     IndexKind
	ChildPath pathkey.Path // only meaningful when Index == ByChildPath
	Start     Bound
	End       Bound
	Limit     int
	LimitKind LimitKind
}

// IsDefault reports whether p carries no parameters at all.
func (p Params) IsDefault() bool {
	return p.Index == ByKey && !p.Start.Set && !p.End.Set && p.LimitKind == NoLimit
}

// LoadsAllData reports whether p selects the entire node at its path,
// i.e. it has no start/end bound and no limit (an index choice alone does
// not restrict which children are included).
func (p Params) LoadsAllData() bool {
	return !p.Start.Set && !p.End.Set && p.LimitKind == NoLimit
}

// Query is a (path, parameters) pair.
type Query struct {
	Path   pathkey.Path
	Params Params
}

// New builds the default (unfiltered) query at path.
func New(path pathkey.Path) Query {
	return Query{Path: path}
}

// WithParams builds a query at path with explicit parameters.
func WithParams(path pathkey.Path, params Params) Query {
	return Query{Path: path, Params: params}
}

// DefaultAtPath builds the default query at path — an alias of New kept for
// call sites that want to make the "default query" intent explicit.
func DefaultAtPath(path pathkey.Path) Query {
	return New(path)
}

// IsDefault reports whether q carries no parameters.
func (q Query) IsDefault() bool {
	return q.Params.IsDefault()
}

// LoadsAllData reports whether q selects the whole node at its path.
func (q Query) LoadsAllData() bool {
	return q.Params.LoadsAllData()
}

// Identifier returns a deterministic fingerprint of q's parameters.
// Two queries with equal Path and equal Identifier are interchangeable.
func (q Query) Identifier() string {
	if q.IsDefault() {
		return DefaultIdentifier
	}

	var b strings.Builder
	switch q.Params.Index {
	case ByKey:
		b.WriteString("ix:key")
	case ByValue:
		b.WriteString("ix:value")
	case ByPriority:
		b.WriteString("ix:priority")
	case ByChildPath:
		fmt.Fprintf(&b, "ix:child:%s", q.Params.ChildPath.String())
	}
	if q.Params.Start.Set {
		fmt.Fprintf(&b, "|s:%v:%s:%v", q.Params.Start.Value.Export(), q.Params.Start.Key, q.Params.Start.Inclusive)
	}
	if q.Params.End.Set {
		fmt.Fprintf(&b, "|e:%v:%s:%v", q.Params.End.Value.Export(), q.Params.End.Key, q.Params.End.Inclusive)
	}
	switch q.Params.LimitKind {
	case LimitToFirst:
		fmt.Fprintf(&b, "|lf:%d", q.Params.Limit)
	case LimitToLast:
		fmt.Fprintf(&b, "|ll:%d", q.Params.Limit)
	}
	return b.String()
}

// Key returns the path+identifier fingerprint SyncTree uses to key its tag
// maps: "path$identifier".
func (q Query) Key() string {
	return q.Path.String() + "$" + q.Identifier()
}

// Equal reports whether q and other address the same path and identifier.
func (q Query) Equal(other Query) bool {
	return q.Path.Equal(other.Path) && q.Identifier() == other.Identifier()
}

// ForListening promotes a non-default query that nonetheless LoadsAllData
// (parameters present, but no filtering effect — e.g. an explicit ordering
// index with no bounds or limit) to the plain default query at its path,
// for the purposes of deciding what to ask the backend to listen on. Two
// such queries are redundant from the listener's point of view even though
// they are not Query-equal.
func ForListening(q Query) Query {
	if q.Params.LoadsAllData() {
		return DefaultAtPath(q.Path)
	}
	return q
}
