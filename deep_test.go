package state

import (
	"math"
	"regexp"
	"testing"
	"time"
)

func TestEqual(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"nil both", nil, nil, true},
		{"nil left", nil, 1, false},
		{"nil right", map[string]any{}, nil, false},
		{"strings equal", "hello", "hello", true},
		{"strings differ", "hello", "world", false},
		{"string vs number", "1", 1, false},
		{"bools equal", true, true, true},
		{"bools differ", true, false, false},
		{"int vs float same magnitude", 1, float64(1), true},
		{"uint vs int same magnitude", uint8(7), int64(7), true},
		{"numbers differ", 1, 2, false},
		{"nan equals nan", math.NaN(), math.NaN(), true},
		{"nan vs number", math.NaN(), 0.0, false},
		{"times same instant different zone", now, now.UTC(), true},
		{"times differ", now, now.Add(time.Second), false},
		{"regexp same source", regexp.MustCompile(`^a+$`), regexp.MustCompile(`^a+$`), true},
		{"regexp differ", regexp.MustCompile(`^a+$`), regexp.MustCompile(`^b+$`), false},
		{"maps order independent", map[string]any{"a": 1, "b": 2}, map[string]any{"b": 2, "a": 1}, true},
		{"maps extra key", map[string]any{"a": 1}, map[string]any{"a": 1, "b": 2}, false},
		{"maps nested differ", map[string]any{"a": map[string]any{"b": 1}}, map[string]any{"a": map[string]any{"b": 2}}, false},
		{"slices equal", []any{1, "x", true}, []any{1, "x", true}, true},
		{"slices order dependent", []any{1, 2}, []any{2, 1}, false},
		{"slices length differ", []any{1}, []any{1, 2}, false},
		{"nested mixed equal",
			map[string]any{"user": map[string]any{"tags": []any{"a", "b"}, "age": 3}},
			map[string]any{"user": map[string]any{"age": float64(3), "tags": []any{"a", "b"}}},
			true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal(tc.a, tc.b); got != tc.want {
				t.Fatalf("Equal(%#v, %#v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := map[string]any{
		"name": "ada",
		"nested": map[string]any{
			"tags": []any{"x", "y"},
		},
	}

	clone := Clone(original).(map[string]any)
	if !Equal(original, clone) {
		t.Fatalf("clone differs from original: %#v", clone)
	}

	clone["name"] = "grace"
	clone["nested"].(map[string]any)["tags"].([]any)[0] = "z"

	if original["name"] != "ada" {
		t.Fatal("clone shares top-level storage with original")
	}
	if original["nested"].(map[string]any)["tags"].([]any)[0] != "x" {
		t.Fatal("clone shares nested slice storage with original")
	}
}

func TestCloneTypedCollections(t *testing.T) {
	ints := []int{1, 2, 3}
	cloned := Clone(ints).([]int)
	cloned[0] = 99
	if ints[0] != 1 {
		t.Fatal("typed slice clone shares storage with original")
	}

	meta := map[string]string{"k": "v"}
	clonedMeta := Clone(meta).(map[string]string)
	clonedMeta["k"] = "other"
	if meta["k"] != "v" {
		t.Fatal("typed map clone shares storage with original")
	}
}

func TestCloneTreeNil(t *testing.T) {
	if CloneTree(nil) != nil {
		t.Fatal("expected nil tree to clone to nil")
	}
}

func TestClonePassesImmutableValuesThrough(t *testing.T) {
	re := regexp.MustCompile(`\d+`)
	if Clone(re) != re {
		t.Fatal("expected compiled regexp to pass through unchanged")
	}
	now := time.Now()
	if Clone(now) != now {
		t.Fatal("expected time to pass through unchanged")
	}
}
