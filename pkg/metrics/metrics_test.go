package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	state "github.com/goliatone/go-state"
)

func histogramSampleCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		metric := family.GetMetric()
		if len(metric) != 1 {
			t.Fatalf("expected one %s series, got %d", name, len(metric))
		}
		return metric[0].GetHistogram().GetSampleCount()
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestCollectorCountsCommits(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	e := state.New(map[string]any{"a": 1})
	detach, err := c.Attach(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer detach()

	e.SetState(map[string]any{"a": 2})
	e.SetState(map[string]any{"a": 3})
	e.Reset(map[string]any{"b": 1})

	if got := testutil.ToFloat64(c.commits.WithLabelValues("update")); got != 2 {
		t.Fatalf("expected 2 update commits, got %v", got)
	}
	if got := testutil.ToFloat64(c.commits.WithLabelValues("reset")); got != 1 {
		t.Fatalf("expected 1 reset commit, got %v", got)
	}
}

func TestCollectorIgnoresNoOps(t *testing.T) {
	c := New(prometheus.NewRegistry())

	e := state.New(map[string]any{"a": 1})
	detach, err := c.Attach(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer detach()

	e.SetState(map[string]any{"a": 1})

	if got := testutil.ToFloat64(c.commits.WithLabelValues("update")); got != 0 {
		t.Fatalf("a no-op must not count as a commit, got %v", got)
	}
}

func TestCollectorCountsSilentCommits(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	e := state.New(map[string]any{"a": 1})
	detach, err := c.Attach(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer detach()

	e.SetState(map[string]any{"a": 2}, state.Silent())

	if got := testutil.ToFloat64(c.commits.WithLabelValues("update")); got != 1 {
		t.Fatalf("a silent commit still emits an event, got %v", got)
	}
	if got := histogramSampleCount(t, reg, "gostate_notify_duration_seconds"); got != 0 {
		t.Fatalf("a silent commit runs no subscriber pass, got %d samples", got)
	}
}

func TestCollectorDetach(t *testing.T) {
	c := New(prometheus.NewRegistry())

	e := state.New(map[string]any{"a": 1})
	detach, err := c.Attach(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.SetState(map[string]any{"a": 2})
	detach()
	e.SetState(map[string]any{"a": 3})
	e.Reset(nil)

	if got := testutil.ToFloat64(c.commits.WithLabelValues("update")); got != 1 {
		t.Fatalf("expected detached collector to stop observing, got %v", got)
	}
}

func TestCollectorObservesNotifyDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	e := state.New(map[string]any{"a": 1})
	if _, err := c.Attach(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.SetState(map[string]any{"a": 2})
	e.Reset(map[string]any{"a": 3})

	if got := histogramSampleCount(t, reg, "gostate_notify_duration_seconds"); got != 2 {
		t.Fatalf("expected one duration sample per subscriber pass, got %d", got)
	}
}

func TestCollectorHistogramObservesChangedPaths(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	e := state.New(map[string]any{})
	if _, err := c.Attach(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.SetState(map[string]any{"a": 1, "b": 2})

	if got := histogramSampleCount(t, reg, "gostate_changed_paths"); got != 1 {
		t.Fatalf("expected one changed-paths sample, got %d", got)
	}
}

func TestCollectorCountsSubscriberFailures(t *testing.T) {
	c := New(prometheus.NewRegistry())

	e := state.New(map[string]any{"a": 1}, state.WithLogger(c.Logger(nil)))
	if _, err := c.Attach(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.Subscribe(func(state.Change) { panic("boom") }, "a")

	e.SetState(map[string]any{"a": 2})

	if got := testutil.ToFloat64(c.subscriberFailures); got != 1 {
		t.Fatalf("expected one recorded subscriber failure, got %v", got)
	}
}
