package api

import (
	"net/http"

	"github.com/kjannette/stockbot/internal/models"
	"github.com/kjannette/stockbot/internal/repository"
)

func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := s.store.ListStocks(r.Context())
	if err != nil {
		s.log.WithError(err).Error("list stocks")
		writeError(w, http.StatusInternalServerError, "failed to fetch stocks")
		return
	}
	if stocks == nil {
		stocks = []models.Stock{}
	}
	writeJSON(w, http.StatusOK, stocks)
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stock, err := s.store.GetStock(r.Context(), id)
	if err != nil {
		s.log.WithError(err).WithField("symbol", id).Error("get stock")
		writeError(w, http.StatusInternalServerError, "failed to fetch stock")
		return
	}
	if stock == nil {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func (s *Server) handleActivityToday(w http.ResponseWriter, r *http.Request) {
	s.writeActivity(w, r, r.PathValue("id"), repository.Day(s.now().In(s.loc)))
}

func (s *Server) handleActivityByDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !validateDate(date) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}
	s.writeActivity(w, r, r.PathValue("id"), date)
}

func (s *Server) writeActivity(w http.ResponseWriter, r *http.Request, id, date string) {
	rows, err := s.store.ActivityByDay(r.Context(), id, date)
	if err != nil {
		s.log.WithError(err).WithField("symbol", id).Errorf("activity for %s", date)
		writeError(w, http.StatusInternalServerError, "failed to fetch activity")
		return
	}
	if rows == nil {
		rows = []models.Activity{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rows, err := s.store.HistoryBySymbol(r.Context(), id, parseLimit(r, defaultHistoryLimit))
	if err != nil {
		s.log.WithError(err).WithField("symbol", id).Error("history")
		writeError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}
	if rows == nil {
		rows = []models.History{}
	}
	writeJSON(w, http.StatusOK, rows)
}
