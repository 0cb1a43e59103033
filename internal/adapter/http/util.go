package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"attendance/internal/app"
	"attendance/internal/domain"
)

var errMissingPerson = errors.New("person query parameter is required")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error(), "code": code})
}

// writeTransitionError maps service errors to the typed failures the
// command surface renders. Precondition failures are expected outcomes,
// not server errors.
func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, domain.ErrAlreadyWorking):
		writeError(w, http.StatusConflict, "already_working", err)
	case errors.Is(err, domain.ErrNotWorking):
		writeError(w, http.StatusConflict, "not_working", err)
	case errors.Is(err, domain.ErrAlreadyOnBreak):
		writeError(w, http.StatusConflict, "already_on_break", err)
	case errors.Is(err, domain.ErrNotOnBreak):
		writeError(w, http.StatusConflict, "not_on_break", err)
	case errors.Is(err, domain.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable",
			errors.New("storage unavailable, try again"))
	default:
		writeError(w, http.StatusInternalServerError, "internal", errors.New("internal error"))
	}
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// dayQuery returns a validated "2006-01-02" day parameter, or fallback
// when absent.
func dayQuery(r *http.Request, key, fallback string) (string, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	if _, err := time.ParseInLocation("2006-01-02", v, time.Local); err != nil {
		return "", fmt.Errorf("invalid %s: %q", key, v)
	}
	return v, nil
}

func localDayString(t time.Time) string {
	return t.In(time.Local).Format("2006-01-02")
}
