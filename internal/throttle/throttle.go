// Package throttle bounds how many resource-heavy subprocess operations may run at once.
package throttle

import (
	"context"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

// DefaultCapacity is the number of slots used when none is configured.
const DefaultCapacity = 2

var (
	metricSlotsInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "retention",
		Name:      "throttle_slots_in_use",
		Help:      "Throttle slots currently held by media operations.",
	}, []string{"throttle"})
	metricAcquireWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "retention",
		Name:      "throttle_acquire_wait_seconds",
		Help:      "Time spent waiting for a throttle slot.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"throttle"})
)

// Throttle is a counting semaphore over a fixed number of slots.
// Waiters are served as slots free up; there is no priority between them.
type Throttle struct {
	name     string
	capacity int64
	sem      *semaphore.Weighted
	inUse    atomic.Int64
}

// New creates a throttle with the given capacity. Non-positive capacities use DefaultCapacity.
func New(name string, capacity int) *Throttle {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Throttle{
		name:     name,
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (t *Throttle) Acquire(ctx context.Context) error {
	timer := prometheus.NewTimer(metricAcquireWait.WithLabelValues(t.name))
	defer timer.ObserveDuration()

	if err := t.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	metricSlotsInUse.WithLabelValues(t.name).Set(float64(t.inUse.Add(1)))
	return nil
}

// TryAcquire reserves a slot without blocking and reports whether it succeeded.
func (t *Throttle) TryAcquire() bool {
	if !t.sem.TryAcquire(1) {
		return false
	}
	metricSlotsInUse.WithLabelValues(t.name).Set(float64(t.inUse.Add(1)))
	return true
}

// Release frees a slot previously reserved by Acquire or TryAcquire.
func (t *Throttle) Release() {
	metricSlotsInUse.WithLabelValues(t.name).Set(float64(t.inUse.Add(-1)))
	t.sem.Release(1)
}

// Do runs fn while holding a slot.
func (t *Throttle) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := t.Acquire(ctx); err != nil {
		return err
	}
	defer t.Release()
	return fn(ctx)
}

// InUse returns the number of slots currently held
func (t *Throttle) InUse() int {
	return int(t.inUse.Load())
}

// Capacity returns the total number of slots
func (t *Throttle) Capacity() int {
	return int(t.capacity)
}
