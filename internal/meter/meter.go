// Package meter provides AverageMeter, a fixed-capacity sliding window that
// reports the mean of the most recent samples. It is used to time dispatch
// work and drive load shedding in the connection pipeline.
package meter

import "sync"

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 16

// AverageMeter keeps the last N int64 samples in a circular buffer.
// All methods are safe for concurrent use.
type AverageMeter struct {
	mu       sync.Mutex
	samples  []int64
	capacity int
	size     int
	head     int // next write position
	sum      int64
	start    int64
	started  bool
}

// New creates a meter holding at most capacity samples.
func New(capacity int) *AverageMeter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &AverageMeter{
		samples:  make([]int64, capacity),
		capacity: capacity,
	}
}

// SetValue records a sample, evicting the oldest one once the window is full.
func (m *AverageMeter) SetValue(v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(v)
}

func (m *AverageMeter) push(v int64) {
	if m.size == m.capacity {
		m.sum -= m.samples[m.head]
	} else {
		m.size++
	}
	m.samples[m.head] = v
	m.sum += v
	m.head = (m.head + 1) % m.capacity
}

// IntervalStart marks the beginning of a measured interval at time t.
// The unit of t is up to the caller; the pipeline uses nanoseconds.
func (m *AverageMeter) IntervalStart(t int64) {
	m.mu.Lock()
	m.start = t
	m.started = true
	m.mu.Unlock()
}

// IntervalEnd records t minus the last IntervalStart as a sample.
// Calling it without a preceding IntervalStart is a no-op.
func (m *AverageMeter) IntervalEnd(t int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.started = false
	m.push(t - m.start)
}

// AvgValue returns the truncated mean of the samples in the window.
// ok is false when the window is empty.
func (m *AverageMeter) AvgValue() (avg int64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.size == 0 {
		return 0, false
	}
	return m.sum / int64(m.size), true
}

// AvgInterval returns the span of the averaging window in samples. It does
// not depend on how many samples have been recorded.
func (m *AverageMeter) AvgInterval() int {
	return m.capacity
}

// Len reports how many samples the window currently holds.
func (m *AverageMeter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Capacity reports the window size.
func (m *AverageMeter) Capacity() int {
	return m.capacity
}

// Reset empties the window and forgets any open interval.
func (m *AverageMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.samples)
	m.size = 0
	m.head = 0
	m.sum = 0
	m.started = false
}
