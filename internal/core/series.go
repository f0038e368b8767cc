package core

import "time"

const seriesDays = 7

// SeriesPoint is one calendar-day bucket of the usage chart.
type SeriesPoint struct {
	Date    time.Time // midnight of the bucket day
	Label   string    // short weekday label, e.g. "Mon"
	Bottles int
}

// WeekSeries is the trailing 7-day chart series, ordered oldest to newest.
type WeekSeries []SeriesPoint

const dayKeyFormat = "2006-01-02"

// ComputeSeries buckets entries by calendar day over the trailing 7-day
// window ending on (and including) the day of now. Days are resolved in
// now's location; entry timestamps are converted into that location before
// deriving their calendar date. Entries outside the window are ignored.
func ComputeSeries(entries []Entry, now time.Time) WeekSeries {
	loc := now.Location()

	series := make(WeekSeries, 0, seriesDays)
	index := make(map[string]int, seriesDays)
	for i := seriesDays - 1; i >= 0; i-- {
		d := now.AddDate(0, 0, -i)
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		index[day.Format(dayKeyFormat)] = len(series)
		series = append(series, SeriesPoint{Date: day, Label: day.Format("Mon")})
	}

	for _, e := range entries {
		key := e.Timestamp.In(loc).Format(dayKeyFormat)
		if i, ok := index[key]; ok {
			series[i].Bottles += e.Bottles
		}
	}
	return series
}

// Labels returns the weekday labels in series order.
func (ws WeekSeries) Labels() []string {
	out := make([]string, len(ws))
	for i, p := range ws {
		out[i] = p.Label
	}
	return out
}

// Bottles returns the bottle totals in series order.
func (ws WeekSeries) Bottles() []int {
	out := make([]int, len(ws))
	for i, p := range ws {
		out[i] = p.Bottles
	}
	return out
}
