package core

import "math"

// Stats is the derived dashboard summary. It is recomputed from the full
// entry snapshot on every change and never persisted.
type Stats struct {
	TotalEntries int
	TotalBottles int
	TotalRevenue float64
	AvgPerDay    int
}

// ComputeStats reduces the entry snapshot to summary statistics.
// An empty snapshot yields the zero-valued Stats.
//
// AvgPerDay divides total bottles by the entry count, not by distinct
// calendar days. That is the documented source behavior and is kept as is.
func ComputeStats(entries []Entry) Stats {
	var s Stats
	s.TotalEntries = len(entries)
	for _, e := range entries {
		s.TotalBottles += e.Bottles
		s.TotalRevenue += e.Amount
	}
	if s.TotalEntries > 0 {
		divisor := s.TotalEntries
		if divisor < 1 {
			divisor = 1
		}
		s.AvgPerDay = int(math.Round(float64(s.TotalBottles) / float64(divisor)))
	}
	return s
}
