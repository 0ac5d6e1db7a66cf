// Package metrics exposes a Prometheus collector that observes a state
// engine through its public event surface. The engine itself carries no
// metrics dependency; the collector attaches via On and detaches with
// the returned closure.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	state "github.com/goliatone/go-state"
)

// Collector aggregates engine activity into Prometheus metrics.
type Collector struct {
	commits            *prometheus.CounterVec
	changedPaths       prometheus.Histogram
	notifyDuration     prometheus.Histogram
	subscriberFailures prometheus.Counter
}

// New constructs a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gostate",
			Name:      "commits_total",
			Help:      "Committed state operations by kind (update or reset).",
		}, []string{"kind"}),
		changedPaths: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gostate",
			Name:      "changed_paths",
			Help:      "Number of changed paths per committed operation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		notifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gostate",
			Name:      "notify_duration_seconds",
			Help:      "Time from event emit to the end of the subscriber pass.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		subscriberFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gostate",
			Name:      "subscriber_failures_total",
			Help:      "Subscriber panics recovered during notification.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.commits, c.changedPaths, c.notifyDuration, c.subscriberFailures)
	}
	return c
}

// Attach subscribes the collector to engine events and returns a
// detach closure. A global path subscriber measures the notification
// pass: global subscribers run last, so the span from the event emit to
// that delivery covers every path subscriber. Silent commits emit an
// event but skip the subscriber pass, so they count commits without a
// duration sample.
func (c *Collector) Attach(engine *state.Engine) (func(), error) {
	var mu sync.Mutex
	var emitted time.Time

	observe := func(event state.Event) {
		c.commits.WithLabelValues(event.Type).Inc()
		c.changedPaths.Observe(float64(len(event.ChangedPaths)))
		mu.Lock()
		emitted = time.Now()
		mu.Unlock()
	}
	tail := func(state.Change) {
		mu.Lock()
		started := emitted
		emitted = time.Time{}
		mu.Unlock()
		if !started.IsZero() {
			c.notifyDuration.Observe(time.Since(started).Seconds())
		}
	}

	offUpdate, err := engine.On(state.EventUpdate, observe)
	if err != nil {
		return nil, err
	}
	offReset, err := engine.On(state.EventReset, observe)
	if err != nil {
		offUpdate()
		return nil, err
	}
	unsubscribe, err := engine.Subscribe(tail)
	if err != nil {
		offUpdate()
		offReset()
		return nil, err
	}
	return func() {
		offUpdate()
		offReset()
		unsubscribe()
	}, nil
}

// Logger returns a state.Logger that counts recovered subscriber
// panics before forwarding every entry to next (which may be nil).
// Install it with state.WithLogger when constructing the engine.
func (c *Collector) Logger(next state.Logger) state.Logger {
	return state.LoggerFunc(func(entry state.LogEntry) {
		if entry.Op == "notify" && entry.Err != nil {
			c.subscriberFailures.Inc()
		}
		if next != nil {
			next.Log(entry)
		}
	})
}
