package http

import (
	"log/slog"
	"net/http"
	"time"

	"milktrack/internal/core"
)

type statsResponse struct {
	TotalEntries int     `json:"totalEntries"`
	TotalBottles int     `json:"totalBottles"`
	TotalRevenue float64 `json:"totalRevenue"`
	AvgPerDay    int     `json:"avgPerDay"`
}

type seriesPointResponse struct {
	Date    string `json:"date"`
	Label   string `json:"label"`
	Bottles int    `json:"bottles"`
}

type snapshotResponse struct {
	Stats  statsResponse         `json:"stats"`
	Series []seriesPointResponse `json:"series"`
	At     time.Time             `json:"at"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r.Context())
	snap, err := s.dash.Snapshot(r.Context(), owner)
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot load failed", "error", err, "owner_id", owner)
		writeError(w, http.StatusInternalServerError, "could not load stats")
		return
	}

	writeJSON(w, http.StatusOK, toStatsResponse(snap.Stats))
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r.Context())
	snap, err := s.dash.Snapshot(r.Context(), owner)
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot load failed", "error", err, "owner_id", owner)
		writeError(w, http.StatusInternalServerError, "could not load chart series")
		return
	}

	writeJSON(w, http.StatusOK, snapshotResponse{
		Stats:  toStatsResponse(snap.Stats),
		Series: toSeriesResponse(snap.Series),
		At:     snap.At,
	})
}

func toStatsResponse(st core.Stats) statsResponse {
	return statsResponse{
		TotalEntries: st.TotalEntries,
		TotalBottles: st.TotalBottles,
		TotalRevenue: st.TotalRevenue,
		AvgPerDay:    st.AvgPerDay,
	}
}

func toSeriesResponse(ws core.WeekSeries) []seriesPointResponse {
	out := make([]seriesPointResponse, 0, len(ws))
	for _, p := range ws {
		out = append(out, seriesPointResponse{Date: p.Date.Format("2006-01-02"), Label: p.Label, Bottles: p.Bottles})
	}
	return out
}
