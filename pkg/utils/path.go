package utils

import "strings"

// PathSeparator is the separator used for logical asset names. Asset names
// always use the forward slash, also on Windows, because names recorded in
// library containers and game data use it.
const PathSeparator = "/"

// JoinPaths joins two path components with exactly one separator between
// them, regardless of a trailing separator on first or a leading separator
// on second.
//
// Example usage:
//
//	JoinPaths("a", "b")   // "a/b"
//	JoinPaths("a/", "b")  // "a/b"
//	JoinPaths("a", "/b")  // "a/b"
func JoinPaths(first, second string) string {
	first = strings.TrimSuffix(first, PathSeparator)
	second = strings.TrimPrefix(second, PathSeparator)
	if first == "" {
		return second
	}
	if second == "" {
		return first
	}
	return first + PathSeparator + second
}

// SplitFirst splits a multi-segment name at the first separator. It returns
// the head segment and the remainder; rest is empty when name holds a single
// segment. Leading separators are not expected in logical names.
func SplitFirst(name string) (head, rest string) {
	if i := strings.Index(name, PathSeparator); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}
