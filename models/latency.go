package models

import (
	"math"
	"sort"
	"sync"
	"time"
)

// LatencyStats summarizes recorded round-trip durations, in microseconds.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P95   float64 `json:"p95"`
	Last  float64 `json:"last"`
	Count int     `json:"count"`
}

// LatencyTracker accumulates operation round-trip durations. The zero value
// is ready to use.
type LatencyTracker struct {
	mutex   sync.Mutex
	samples []float64
}

func (t *LatencyTracker) Record(d time.Duration) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.samples = append(t.samples, float64(d.Microseconds()))
}

func (t *LatencyTracker) Count() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return len(t.samples)
}

func (t *LatencyTracker) Stats() LatencyStats {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if len(t.samples) == 0 {
		return LatencyStats{}
	}

	var min, max, mean float64
	for _, latency := range t.samples {
		if latency < min || min == 0 {
			min = latency
		}
		if latency > max {
			max = latency
		}
		mean += latency
	}
	mean = math.Round(mean / float64(len(t.samples)))

	last := t.samples[len(t.samples)-1]

	sorted := make([]float64, len(t.samples))
	copy(sorted, t.samples)
	sort.Float64s(sorted)

	var p95 float64
	index := int(float64(len(sorted)) * 0.95)
	if index < len(sorted) && index > 0 {
		p95 = sorted[index-1]
	}

	return LatencyStats{
		Min:   min,
		Max:   max,
		Mean:  mean,
		P95:   p95,
		Last:  last,
		Count: len(t.samples),
	}
}
