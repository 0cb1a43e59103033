package adapthttp

import (
	"net/http"
	"time"
)

func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	endDay, err := dayQuery(r, "end", localDayString(time.Now()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	rows, err := s.reports.Weekly(r.Context(), endDay)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"end": endDay, "rows": rows})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	today := localDayString(time.Now())
	weekAgo := localDayString(time.Now().AddDate(0, 0, -6))
	fromDay, err := dayQuery(r, "from", weekAgo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}
	toDay, err := dayQuery(r, "to", today)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	personID := r.URL.Query().Get("person")
	entries, qerr := func() (any, error) {
		if personID != "" {
			return s.history.HistoryForPerson(r.Context(), personID, fromDay, toDay)
		}
		return s.history.HistoryBetween(r.Context(), fromDay, toDay)
	}()
	if qerr != nil {
		writeTransitionError(w, qerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"from": fromDay, "to": toDay, "entries": entries})
}

func (s *Server) handleBreaks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	personID := r.URL.Query().Get("person")
	if personID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request",
			errMissingPerson)
		return
	}
	limit := intQuery(r, "limit", 20)

	items, err := s.breaks.ListRecentBreaks(r.Context(), personID, limit)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
