package api

import (
	"net/http"
	"time"
)

// healthResponse reports the database link and how many symbols the bot
// is watching. Status is "degraded" whenever the store cannot be read.
type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
	Monitored *int           `json:"monitoredSymbols,omitempty"`
}

type healthServices struct {
	Database string `json:"database"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Services:  healthServices{Database: "connected"},
	}

	if err := s.store.Ping(r.Context()); err != nil {
		s.log.WithError(err).Warn("health: database ping failed")
		resp.Status = "degraded"
		resp.Services.Database = "disconnected"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	stocks, err := s.store.ListStocks(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("health: listing symbols failed")
		resp.Status = "degraded"
	} else {
		n := len(stocks)
		resp.Monitored = &n
	}
	writeJSON(w, http.StatusOK, resp)
}
