// This file implements the size statistics that engines report in
// db.DatabaseInfo. Sizes are collected while walking a store and summarised
// without keeping every sample.
package util

import (
	"math"
)

// ----------------------------------------------------------------------------
// Stats
// ----------------------------------------------------------------------------

// Stats summarises a series of sizes in bytes.
type Stats struct {
	Count        int     `json:"count"`
	TotalBytes   int64   `json:"total_bytes"`
	Min          int     `json:"min"`
	Max          int     `json:"max"`
	Mean         float64 `json:"mean"`
	StdDeviation float64 `json:"std_deviation"`
}

// SizeCollector accumulates sizes with Welford's online algorithm, so the
// memory needed does not grow with the number of samples.
//
// Thread-safety: not safe for concurrent use, engines fill it inside a single transaction.
type SizeCollector struct {
	count int
	total int64
	min   int
	max   int
	mean  float64
	m2    float64
}

// NewSizeCollector creates an empty collector.
func NewSizeCollector() *SizeCollector {
	return &SizeCollector{min: math.MaxInt}
}

// Add records one size.
func (c *SizeCollector) Add(size int) {
	c.count++
	c.total += int64(size)
	c.min = min(c.min, size)
	c.max = max(c.max, size)

	delta := float64(size) - c.mean
	c.mean += delta / float64(c.count)
	c.m2 += delta * (float64(size) - c.mean)
}

// Stats returns the summary of all sizes added so far.
func (c *SizeCollector) Stats() Stats {
	if c.count == 0 {
		return Stats{}
	}
	return Stats{
		Count:        c.count,
		TotalBytes:   c.total,
		Min:          c.min,
		Max:          c.max,
		Mean:         c.mean,
		StdDeviation: math.Sqrt(c.m2 / float64(c.count)), // population formula
	}
}
