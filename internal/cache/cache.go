// Package cache provides the bounded TTL response cache that sits in front
// of upstream API calls.
package cache

import "time"

// Stats is a snapshot of cache counters. Hits, Misses, Sets, Deletes, and
// Evictions are lifetime totals; Size and Memory track current occupancy.
// HitRate and MissRate are percentages rounded to two decimals, 0 when no
// request has been served yet.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Sets      uint64  `json:"sets"`
	Deletes   uint64  `json:"deletes"`
	Evictions uint64  `json:"evictions"`
	Size      int     `json:"size"`
	Memory    int64   `json:"memory_bytes"`
	HitRate   float64 `json:"hit_rate"`
	MissRate  float64 `json:"miss_rate"`
}

// Info describes a single cache entry for introspection.
type Info struct {
	Exists bool          `json:"exists"`
	Age    time.Duration `json:"age"`
	TTL    time.Duration `json:"ttl"`
	Size   int64         `json:"size_bytes"`
}
