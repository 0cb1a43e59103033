package adapthttp

import (
	"net/http"

	"attendance/internal/domain"
)

// transitionRequest is the body the chat gateway sends for every
// transition: the requester's stable person id plus their display name
// as of this moment. Reason is only used by break-start.
type transitionRequest struct {
	PersonID    string `json:"personId"`
	DisplayName string `json:"displayName"`
	Reason      string `json:"reason,omitempty"`
}

func (s *Server) handleClockIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body transitionRequest
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	sess, err := s.att.ClockIn(r.Context(), body.PersonID, body.DisplayName)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (s *Server) handleClockOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body transitionRequest
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	entry, err := s.att.ClockOut(r.Context(), body.PersonID)
	if err != nil {
		writeTransitionError(w, err)
		return
	}

	hours, minutes := domain.SplitHoursMinutes(entry.WorkedSeconds)
	writeJSON(w, http.StatusOK, map[string]any{
		"entry":         entry,
		"workedHours":   hours,
		"workedMinutes": minutes,
	})
}

func (s *Server) handleBreak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body transitionRequest
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	sess, err := s.att.StartBreak(r.Context(), body.PersonID, body.DisplayName, body.Reason)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body transitionRequest
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	res, err := s.att.ResumeBreak(r.Context(), body.PersonID)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":      res.Session,
		"breakSeconds": res.BreakSeconds,
	})
}

// handleStatus serves both the self view (?person=) and the full board.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if personID := r.URL.Query().Get("person"); personID != "" {
		st, err := s.att.Status(r.Context(), personID)
		if err != nil {
			writeTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
		return
	}

	board, err := s.att.StatusAll(r.Context())
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"working": board.Working,
		"onBreak": board.OnBreak,
		"total":   len(board.Working) + len(board.OnBreak),
	})
}
