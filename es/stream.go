package es

import "strings"

const (
	// InternalStreamPrefix marks system streams. They are excluded from
	// catalog listings and carry no category.
	InternalStreamPrefix = "$"

	// CategorySeparator splits a stream name into category and identity,
	// e.g. "balance-1b9d6bcd" belongs to the "balance" category.
	CategorySeparator = "-"
)

// StreamName is the logical, human readable name of an event stream.
type StreamName string

// String implements fmt.Stringer.
func (n StreamName) String() string {
	return string(n)
}

// IsInternal reports whether the stream is a system stream.
func (n StreamName) IsInternal() bool {
	return strings.HasPrefix(string(n), InternalStreamPrefix)
}

// Category returns the grouping key derived from the stream name: the text
// before the first separator, or the whole name when it has none.
// Internal streams have no category and return "".
func (n StreamName) Category() string {
	if n == "" || n.IsInternal() {
		return ""
	}
	name := string(n)
	if i := strings.Index(name, CategorySeparator); i > 0 {
		return name[:i]
	}
	return name
}

// StreamNames converts plain strings into stream names.
func StreamNames(names ...string) []StreamName {
	out := make([]StreamName, len(names))
	for i, n := range names {
		out[i] = StreamName(n)
	}
	return out
}
