package adapthttp_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	adapthttp "attendance/internal/adapter/http"
	"attendance/internal/adapter/memory"
	"attendance/internal/app"

	"go.uber.org/zap"
)

func newTestServer(t *testing.T, authRequired bool) (*httptest.Server, *memory.DB) {
	t.Helper()
	db := memory.New()
	log := zap.NewNop()
	att := app.NewAttendanceService(db, log)
	reports := app.NewReportService(db)
	authSvc := app.NewAuthService(db, db, time.Hour)

	srv := adapthttp.New(att, reports, db, db, authSvc, adapthttp.OIDCConfig{}, log)
	if !authRequired {
		srv.DisableAuth()
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, db
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func wantStatus(t *testing.T, resp *http.Response, want int) map[string]any {
	t.Helper()
	if resp.StatusCode != want {
		body := decodeBody(t, resp)
		t.Fatalf("status = %d, want %d (body %v)", resp.StatusCode, want, body)
	}
	return decodeBody(t, resp)
}

func TestClockFlow(t *testing.T) {
	ts, _ := newTestServer(t, false)
	c := ts.Client()
	transition := func(path string, body map[string]any) *http.Response {
		return postJSON(t, c, ts.URL+path, body)
	}

	body := wantStatus(t, transition("/api/attendance/clock-in",
		map[string]any{"personId": "u1", "displayName": "Alice"}), http.StatusOK)
	sess := body["session"].(map[string]any)
	if sess["state"] != "working" {
		t.Fatalf("session = %v", sess)
	}

	resp := transition("/api/attendance/clock-in", map[string]any{"personId": "u1"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate clock-in status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["code"] != "already_working" {
		t.Fatalf("code = %v", body["code"])
	}

	resp = transition("/api/attendance/break", map[string]any{"personId": "u1", "displayName": "Alice"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("break without reason status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	body = wantStatus(t, transition("/api/attendance/break",
		map[string]any{"personId": "u1", "displayName": "Alice", "reason": "lunch"}), http.StatusOK)
	if body["session"].(map[string]any)["state"] != "on_break" {
		t.Fatalf("session = %v", body["session"])
	}

	r, err := c.Get(ts.URL + "/api/attendance/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	board := wantStatus(t, r, http.StatusOK)
	if board["total"].(float64) != 1 || len(board["onBreak"].([]any)) != 1 {
		t.Fatalf("board = %v", board)
	}

	wantStatus(t, transition("/api/attendance/resume", map[string]any{"personId": "u1"}), http.StatusOK)

	body = wantStatus(t, transition("/api/attendance/clock-out", map[string]any{"personId": "u1"}), http.StatusOK)
	if _, ok := body["entry"]; !ok {
		t.Fatalf("clock-out body = %v", body)
	}
	if _, ok := body["workedHours"]; !ok {
		t.Fatalf("clock-out body = %v", body)
	}

	resp = transition("/api/attendance/clock-out", map[string]any{"personId": "u1"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second clock-out status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["code"] != "not_working" {
		t.Fatalf("code = %v", body["code"])
	}

	r, err = c.Get(ts.URL + "/api/attendance/status?person=u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	self := wantStatus(t, r, http.StatusOK)
	if self["state"] != "out" {
		t.Fatalf("self status = %v", self)
	}
}

func TestHistoryAndBreaksEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, false)
	c := ts.Client()

	wantStatus(t, postJSON(t, c, ts.URL+"/api/attendance/clock-in",
		map[string]any{"personId": "u1", "displayName": "Alice"}), http.StatusOK)
	wantStatus(t, postJSON(t, c, ts.URL+"/api/attendance/break",
		map[string]any{"personId": "u1", "reason": "coffee"}), http.StatusOK)
	wantStatus(t, postJSON(t, c, ts.URL+"/api/attendance/resume",
		map[string]any{"personId": "u1"}), http.StatusOK)
	wantStatus(t, postJSON(t, c, ts.URL+"/api/attendance/clock-out",
		map[string]any{"personId": "u1"}), http.StatusOK)

	r, err := c.Get(ts.URL + "/api/history?person=u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	hist := wantStatus(t, r, http.StatusOK)
	if len(hist["entries"].([]any)) != 1 {
		t.Fatalf("history = %v", hist)
	}

	r, err = c.Get(ts.URL + "/api/breaks?person=u1")
	if err != nil {
		t.Fatalf("breaks: %v", err)
	}
	breaks := wantStatus(t, r, http.StatusOK)
	items := breaks["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["reason"] != "coffee" {
		t.Fatalf("breaks = %v", breaks)
	}

	r, err = c.Get(ts.URL + "/api/breaks")
	if err != nil {
		t.Fatalf("breaks: %v", err)
	}
	if r.StatusCode != http.StatusBadRequest {
		t.Fatalf("breaks without person status = %d", r.StatusCode)
	}
	r.Body.Close()
}

func TestWeeklyReportRejectsBadDay(t *testing.T) {
	ts, _ := newTestServer(t, false)

	r, err := ts.Client().Get(ts.URL + "/api/reports/weekly?end=bogus")
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}
	if r.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", r.StatusCode)
	}
	r.Body.Close()
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	ts, _ := newTestServer(t, false)

	resp := postJSON(t, ts.Client(), ts.URL+"/api/attendance/clock-in",
		map[string]any{"personId": "u1", "bogus": true})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAuthGuardsAPI(t *testing.T) {
	ts, _ := newTestServer(t, true)
	c := ts.Client()

	// Health and auth endpoints stay open.
	r, err := c.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if r.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", r.StatusCode)
	}
	r.Body.Close()

	r, err = c.Get(ts.URL + "/api/attendance/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if r.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", r.StatusCode)
	}
	r.Body.Close()

	wantStatus(t, postJSON(t, c, ts.URL+"/api/auth/setup",
		map[string]any{"username": "admin", "password": "secret"}), http.StatusOK)
	loginResp := postJSON(t, c, ts.URL+"/api/auth/login",
		map[string]any{"username": "admin", "password": "secret"})
	if loginResp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", loginResp.StatusCode)
	}
	var session *http.Cookie
	for _, ck := range loginResp.Cookies() {
		if ck.Name == "session" {
			session = ck
		}
	}
	loginResp.Body.Close()
	if session == nil {
		t.Fatal("login did not set a session cookie")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/attendance/status", nil)
	req.AddCookie(session)
	r, err = c.Do(req)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if r.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", r.StatusCode)
	}
	r.Body.Close()

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/auth/me", nil)
	req.AddCookie(session)
	r, err = c.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	me := wantStatus(t, r, http.StatusOK)
	if me["authenticated"] != true || me["username"] != "admin" {
		t.Fatalf("me = %v", me)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts, _ := newTestServer(t, false)
	c := ts.Client()

	r, err := c.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	r.Body.Close()
	if r.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected a generated X-Request-ID")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r, err = c.Do(req)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	r.Body.Close()
	if got := r.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("X-Request-ID = %q, want abc-123", got)
	}

	// Oversized inbound ids are replaced.
	long := ""
	for i := 0; i < 10; i++ {
		long += fmt.Sprintf("%d-0123456789", i)
	}
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	req.Header.Set("X-Request-ID", long)
	r, err = c.Do(req)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	r.Body.Close()
	if got := r.Header.Get("X-Request-ID"); got == long || got == "" {
		t.Fatalf("oversized request id not replaced: %q", got)
	}
}
