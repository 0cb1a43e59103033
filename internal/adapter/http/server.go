// Package adapthttp implements the HTTP command surface for the
// application. The chat gateway translates user intents into these
// endpoints and renders the payloads it gets back.
package adapthttp

import (
	"net/http"

	"attendance/internal/app"
	"attendance/internal/domain"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// OIDCConfig carries the SSO provider wiring; Enabled is false when no
// issuer is configured.
type OIDCConfig struct {
	Enabled  bool
	Provider *oidc.Provider
	OAuth2   oauth2.Config
}

// Server is the driving HTTP adapter that routes requests to
// application services.
type Server struct {
	att     *app.AttendanceService
	reports *app.ReportService
	history domain.HistoryRepository
	breaks  domain.BreakRepository
	authSvc *app.AuthService
	oidcCfg OIDCConfig
	log     *zap.Logger

	disableAuth bool
}

// New creates a Server wired to the given application services.
func New(att *app.AttendanceService, reports *app.ReportService, history domain.HistoryRepository, breaks domain.BreakRepository, authSvc *app.AuthService, oidcCfg OIDCConfig, log *zap.Logger) *Server {
	return &Server{
		att:     att,
		reports: reports,
		history: history,
		breaks:  breaks,
		authSvc: authSvc,
		oidcCfg: oidcCfg,
		log:     log,
	}
}

// DisableAuth turns off operator authentication on the API, for tests
// and trusted-network deployments.
func (s *Server) DisableAuth() {
	s.disableAuth = true
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/attendance/clock-in", s.handleClockIn)
	api.HandleFunc("/attendance/clock-out", s.handleClockOut)
	api.HandleFunc("/attendance/break", s.handleBreak)
	api.HandleFunc("/attendance/resume", s.handleResume)
	api.HandleFunc("/attendance/status", s.handleStatus)

	api.HandleFunc("/reports/weekly", s.handleWeeklyReport)
	api.HandleFunc("/history", s.handleHistory)
	api.HandleFunc("/breaks", s.handleBreaks)
	api.HandleFunc("/auth/me", s.handleMe)

	open := http.NewServeMux()
	open.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	open.HandleFunc("/auth/login", s.handleLogin)
	open.HandleFunc("/auth/logout", s.handleLogout)
	open.HandleFunc("/auth/setup", s.handleSetup)
	open.HandleFunc("/auth/sso/login", s.handleSSOLogin)
	open.HandleFunc("/auth/sso/callback", s.handleSSOCallback)
	open.HandleFunc("/config", s.handleConfig)
	open.Handle("/", s.authMiddleware(api))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", open))

	return s.requestIDMiddleware(s.loggingMiddleware(root))
}
