package state

import "sort"

// Merge deep-merges source into target and returns the merged tree.
// Neither input is mutated. Every dotted path whose value differs by
// Equal between the old and new tree is appended to changed, prefixed
// with prefix when non-empty.
//
// Nested objects merge recursively; arrays, primitives, and nil replace
// the target subtree wholesale and record at most one changed path.
// Keys present in target but absent from source are preserved. Merging
// an empty source returns a copy of target with zero changed paths.
//
// Source keys are visited in sorted order so the changed list is
// deterministic.
func Merge(target, source map[string]any, prefix string, changed *[]string) map[string]any {
	out := CloneTree(target)
	if out == nil {
		out = make(map[string]any, len(source))
	}
	keys := make([]string, 0, len(source))
	for key := range source {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		incoming := source[key]
		path := joinPath(prefix, key)

		current, exists := out[key]
		currentMap, currentIsMap := current.(map[string]any)
		incomingMap, incomingIsMap := incoming.(map[string]any)

		if exists && currentIsMap && incomingIsMap && incomingMap != nil {
			out[key] = Merge(currentMap, incomingMap, path, changed)
			continue
		}

		if !exists || !Equal(current, incoming) {
			if changed != nil {
				*changed = append(*changed, path)
			}
		}
		out[key] = Clone(incoming)
	}
	return out
}
