// Package claims implements the typed claim value model and the
// per-claim mapping rules that underlie token validation.
package claims

import (
	"sort"
	"time"
)

// Kind tags a ClaimValue's variant.
type Kind int

const (
	KindString Kind = iota
	KindStringList
	KindDateTime
)

// Value is a tagged union: String(s), StringList(original, members), or
// DateTime(original, instant). Every variant retains the original
// lexical form for diagnostics.
type Value struct {
	kind     Kind
	original string
	str      string
	members  []string
	instant  time.Time
	present  bool
}

// EmptyString returns the explicit "empty" value of kind String, used
// when the declared claim is unknown/missing (spec §3).
func EmptyString() Value { return Value{kind: KindString} }

// EmptyStringList returns the explicit empty value of kind StringList.
func EmptyStringList() Value { return Value{kind: KindStringList} }

// EmptyDateTime returns the explicit empty value of kind DateTime.
func EmptyDateTime() Value { return Value{kind: KindDateTime} }

// NewString builds a present String value.
func NewString(s string) Value {
	return Value{kind: KindString, original: s, str: s, present: true}
}

// NewStringList builds a present StringList value, retaining the
// original lexical form (e.g. the raw space-delimited scope string).
func NewStringList(original string, members []string) Value {
	return Value{kind: KindStringList, original: original, members: members, present: true}
}

// NewDateTime builds a present DateTime value from its original lexical
// form (typically the epoch-seconds string) and parsed instant.
func NewDateTime(original string, instant time.Time) Value {
	return Value{kind: KindDateTime, original: original, instant: instant, present: true}
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) Present() bool     { return v.present }
func (v Value) Original() string  { return v.original }
func (v Value) AsString() string  { return v.str }
func (v Value) AsStringList() []string {
	out := make([]string, len(v.members))
	copy(out, v.members)
	return out
}
func (v Value) AsTime() time.Time { return v.instant }

// sortedCopy returns members sorted ascending, used by the Scope mapper
// which must emit a sorted set (spec §4.7).
func sortedCopy(members []string) []string {
	out := make([]string, len(members))
	copy(out, members)
	sort.Strings(out)
	return out
}
