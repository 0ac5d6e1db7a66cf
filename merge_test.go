package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMergeFromFixture(t *testing.T) {
	fx := loadMergeFixture(t, "merge_cases.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			var changed []string
			got := Merge(tc.Target, tc.Source, "", &changed)

			if !reflect.DeepEqual(tc.Expect, got) {
				t.Errorf("merged tree mismatch:\nwant: %#v\n got: %#v", tc.Expect, got)
			}
			if changed == nil {
				changed = []string{}
			}
			if !reflect.DeepEqual(tc.Changed, changed) {
				t.Errorf("changed paths mismatch:\nwant: %v\n got: %v", tc.Changed, changed)
			}
		})
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	target := map[string]any{"a": map[string]any{"b": 1}, "list": []any{1, 2}}
	source := map[string]any{"a": map[string]any{"c": 2}}

	var changed []string
	got := Merge(target, source, "", &changed)

	if _, ok := target["a"].(map[string]any)["c"]; ok {
		t.Fatal("target was mutated by Merge")
	}
	if _, ok := source["a"].(map[string]any)["b"]; ok {
		t.Fatal("source was mutated by Merge")
	}

	got["a"].(map[string]any)["b"] = 99
	if target["a"].(map[string]any)["b"] != 1 {
		t.Fatal("merged tree shares map storage with target")
	}
	got["list"].([]any)[0] = 99
	if target["list"].([]any)[0] != 1 {
		t.Fatal("merged tree shares slice storage with target")
	}
}

func TestMergeNilTarget(t *testing.T) {
	var changed []string
	got := Merge(nil, map[string]any{"a": 1}, "", &changed)
	if !reflect.DeepEqual(map[string]any{"a": 1}, got) {
		t.Fatalf("unexpected tree: %#v", got)
	}
	if !reflect.DeepEqual([]string{"a"}, changed) {
		t.Fatalf("unexpected changed paths: %v", changed)
	}
}

func TestMergeNilChangedCollector(t *testing.T) {
	got := Merge(map[string]any{"a": 1}, map[string]any{"a": 2, "b": 3}, "", nil)
	want := map[string]any{"a": 2, "b": 3}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("unexpected tree: %#v", got)
	}
}

func TestMergePrefix(t *testing.T) {
	var changed []string
	Merge(map[string]any{"b": 1}, map[string]any{"b": 2}, "outer", &changed)
	if !reflect.DeepEqual([]string{"outer.b"}, changed) {
		t.Fatalf("unexpected changed paths: %v", changed)
	}
}

func TestMergeEquivalentNumericKindsRecordNothing(t *testing.T) {
	target := map[string]any{"count": 3}
	source := map[string]any{"count": float64(3)}

	var changed []string
	Merge(target, source, "", &changed)
	if len(changed) != 0 {
		t.Fatalf("expected no changed paths, got %v", changed)
	}
}

type mergeFixture struct {
	Description string             `json:"description"`
	Cases       []mergeFixtureCase `json:"cases"`
}

type mergeFixtureCase struct {
	Name    string         `json:"name"`
	Target  map[string]any `json:"target"`
	Source  map[string]any `json:"source"`
	Expect  map[string]any `json:"expect"`
	Changed []string       `json:"changed"`
}

func loadMergeFixture(t *testing.T, name string) mergeFixture {
	t.Helper()
	path := filepath.Join("testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read merge fixture %q: %v", name, err)
	}
	var fx mergeFixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal merge fixture %q: %v", name, err)
	}
	return fx
}
