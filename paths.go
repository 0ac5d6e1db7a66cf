package state

import (
	"sort"
	"strings"
)

// Lookup traverses tree along a dotted path and returns the value found
// there. The second return is false when any segment along the path is
// missing or traversal hits a non-object before segments are exhausted.
func Lookup(tree map[string]any, path string) (any, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, false
	}
	var current any = tree
	for _, segment := range segments {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, present := node[segment]
		if !present {
			return nil, false
		}
		current = value
	}
	return current, true
}

// TreePaths returns every intermediate and leaf path of tree in sorted
// order. Arrays are opaque leaves and contribute a single path.
func TreePaths(tree map[string]any) []string {
	paths := collectPaths(tree, "", nil)
	sort.Strings(paths)
	return paths
}

func collectPaths(tree map[string]any, prefix string, out []string) []string {
	for key, value := range tree {
		path := joinPath(prefix, key)
		out = append(out, path)
		if nested, ok := value.(map[string]any); ok {
			out = collectPaths(nested, path, out)
		}
	}
	return out
}

// ancestorPaths returns the proper ancestors of path ordered nearest
// first: "a.b.c" yields ["a.b", "a"].
func ancestorPaths(path string) []string {
	var out []string
	for {
		idx := strings.LastIndex(path, ".")
		if idx < 0 {
			return out
		}
		path = path[:idx]
		out = append(out, path)
	}
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	segments := parts[:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// normalizePath collapses empty segments so "a..b" and "a.b" address the
// same location.
func normalizePath(path string) string {
	return strings.Join(splitPath(path), ".")
}

// setPath writes value into tree at a dotted path, creating intermediate
// objects as needed. Non-object intermediates are replaced.
func setPath(tree map[string]any, path string, value any) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return
	}
	node := tree
	for _, segment := range segments[:len(segments)-1] {
		next, ok := node[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[segment] = next
		}
		node = next
	}
	node[segments[len(segments)-1]] = value
}
