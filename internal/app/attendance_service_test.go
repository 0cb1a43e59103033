package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"attendance/internal/domain"

	"go.uber.org/zap"
)

// mockAttendanceRepo lets each test plug in just the calls it expects.
type mockAttendanceRepo struct {
	clockIn       func(ctx context.Context, personID, displayName string, at time.Time) (*domain.Session, error)
	clockOut      func(ctx context.Context, personID string, at time.Time) (*domain.ClockOutResult, error)
	forceClockOut func(ctx context.Context, personID string, ref time.Time) (*domain.ClockOutResult, error)
	startBreak    func(ctx context.Context, personID, displayName, reason string, at time.Time) (*domain.Session, error)
	resumeBreak   func(ctx context.Context, personID string, at time.Time) (*domain.ResumeResult, error)
	getSession    func(ctx context.Context, personID string) (*domain.Session, error)
	list          func(ctx context.Context) ([]domain.Session, error)
}

func (m *mockAttendanceRepo) ClockIn(ctx context.Context, personID, displayName string, at time.Time) (*domain.Session, error) {
	return m.clockIn(ctx, personID, displayName, at)
}

func (m *mockAttendanceRepo) ClockOut(ctx context.Context, personID string, at time.Time) (*domain.ClockOutResult, error) {
	return m.clockOut(ctx, personID, at)
}

func (m *mockAttendanceRepo) ForceClockOut(ctx context.Context, personID string, ref time.Time) (*domain.ClockOutResult, error) {
	return m.forceClockOut(ctx, personID, ref)
}

func (m *mockAttendanceRepo) StartBreak(ctx context.Context, personID, displayName, reason string, at time.Time) (*domain.Session, error) {
	return m.startBreak(ctx, personID, displayName, reason, at)
}

func (m *mockAttendanceRepo) ResumeBreak(ctx context.Context, personID string, at time.Time) (*domain.ResumeResult, error) {
	return m.resumeBreak(ctx, personID, at)
}

func (m *mockAttendanceRepo) GetSession(ctx context.Context, personID string) (*domain.Session, error) {
	return m.getSession(ctx, personID)
}

func (m *mockAttendanceRepo) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return m.list(ctx)
}

func newTestService(repo domain.AttendanceRepository, now time.Time) *AttendanceService {
	s := NewAttendanceService(repo, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func TestClockInValidation(t *testing.T) {
	called := false
	repo := &mockAttendanceRepo{
		clockIn: func(ctx context.Context, personID, displayName string, at time.Time) (*domain.Session, error) {
			called = true
			return &domain.Session{}, nil
		},
	}
	svc := newTestService(repo, time.Now())

	if _, err := svc.ClockIn(context.Background(), "", "Alice"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.ClockIn(context.Background(), "   ", "Alice"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if called {
		t.Fatal("store must not be called for an invalid request")
	}
}

func TestClockInTrimsAndDefaultsDisplayName(t *testing.T) {
	var gotID, gotName string
	repo := &mockAttendanceRepo{
		clockIn: func(ctx context.Context, personID, displayName string, at time.Time) (*domain.Session, error) {
			gotID, gotName = personID, displayName
			return &domain.Session{PersonID: personID}, nil
		},
	}
	svc := newTestService(repo, time.Now())

	if _, err := svc.ClockIn(context.Background(), "  u1  ", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != "u1" || gotName != "u1" {
		t.Fatalf("got id=%q name=%q, want u1/u1", gotID, gotName)
	}
}

func TestStartBreakRequiresReason(t *testing.T) {
	repo := &mockAttendanceRepo{
		startBreak: func(ctx context.Context, personID, displayName, reason string, at time.Time) (*domain.Session, error) {
			t.Fatal("store must not be called")
			return nil, nil
		},
	}
	svc := newTestService(repo, time.Now())

	if _, err := svc.StartBreak(context.Background(), "u1", "Alice", ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.StartBreak(context.Background(), "u1", "Alice", "   "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestPreconditionErrorsPassThrough(t *testing.T) {
	repo := &mockAttendanceRepo{
		clockIn: func(ctx context.Context, personID, displayName string, at time.Time) (*domain.Session, error) {
			return nil, domain.ErrAlreadyWorking
		},
		clockOut: func(ctx context.Context, personID string, at time.Time) (*domain.ClockOutResult, error) {
			return nil, domain.ErrNotWorking
		},
		resumeBreak: func(ctx context.Context, personID string, at time.Time) (*domain.ResumeResult, error) {
			return nil, domain.ErrNotOnBreak
		},
	}
	svc := newTestService(repo, time.Now())
	ctx := context.Background()

	if _, err := svc.ClockIn(ctx, "u1", ""); !errors.Is(err, domain.ErrAlreadyWorking) {
		t.Fatalf("expected ErrAlreadyWorking, got %v", err)
	}
	if _, err := svc.ClockOut(ctx, "u1"); !errors.Is(err, domain.ErrNotWorking) {
		t.Fatalf("expected ErrNotWorking, got %v", err)
	}
	if _, err := svc.ResumeBreak(ctx, "u1"); !errors.Is(err, domain.ErrNotOnBreak) {
		t.Fatalf("expected ErrNotOnBreak, got %v", err)
	}
}

func TestStatusWhenOut(t *testing.T) {
	repo := &mockAttendanceRepo{
		getSession: func(ctx context.Context, personID string) (*domain.Session, error) {
			return nil, nil
		},
	}
	svc := newTestService(repo, time.Now())

	st, err := svc.Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.State != "out" || st.PersonID != "u1" || st.StartedAt != nil {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestStatusWhileOnBreak(t *testing.T) {
	start := time.Date(2026, 8, 24, 9, 0, 0, 0, time.Local)
	breakStart := time.Date(2026, 8, 24, 12, 0, 0, 0, time.Local)
	now := time.Date(2026, 8, 24, 12, 30, 0, 0, time.Local)

	repo := &mockAttendanceRepo{
		getSession: func(ctx context.Context, personID string) (*domain.Session, error) {
			return &domain.Session{
				PersonID:     "u1",
				DisplayName:  "Alice",
				State:        domain.StateOnBreak,
				StartedAt:    start,
				BreakStart:   &breakStart,
				BreakSeconds: 600,
			}, nil
		},
	}
	svc := newTestService(repo, now)

	st, err := svc.Status(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 3.5h elapsed, 10min folded plus 30min open break excluded.
	if want := int64(3*3600 + 30*60 - 600 - 30*60); st.WorkedSeconds != want {
		t.Fatalf("worked = %d, want %d", st.WorkedSeconds, want)
	}
	if st.CurrentBreakSeconds != 30*60 {
		t.Fatalf("current break = %d, want %d", st.CurrentBreakSeconds, 30*60)
	}
	if st.State != string(domain.StateOnBreak) {
		t.Fatalf("state = %q", st.State)
	}
}

func TestStatusAllPartition(t *testing.T) {
	now := time.Date(2026, 8, 24, 14, 0, 0, 0, time.Local)
	breakStart := now.Add(-10 * time.Minute)
	repo := &mockAttendanceRepo{
		list: func(ctx context.Context) ([]domain.Session, error) {
			return []domain.Session{
				{PersonID: "u1", State: domain.StateWorking, StartedAt: now.Add(-2 * time.Hour)},
				{PersonID: "u2", State: domain.StateOnBreak, StartedAt: now.Add(-3 * time.Hour), BreakStart: &breakStart},
			}, nil
		},
	}
	svc := newTestService(repo, now)

	board, err := svc.StatusAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(board.Working) != 1 || board.Working[0].PersonID != "u1" {
		t.Fatalf("working = %+v", board.Working)
	}
	if len(board.OnBreak) != 1 || board.OnBreak[0].PersonID != "u2" {
		t.Fatalf("onBreak = %+v", board.OnBreak)
	}
	if board.OnBreak[0].CurrentBreakSeconds != 600 {
		t.Fatalf("current break = %d, want 600", board.OnBreak[0].CurrentBreakSeconds)
	}
}

func TestForceCloseUsesGivenReference(t *testing.T) {
	ref := time.Date(2026, 8, 23, 23, 59, 59, 0, time.Local)
	var gotAt time.Time
	repo := &mockAttendanceRepo{
		forceClockOut: func(ctx context.Context, personID string, at time.Time) (*domain.ClockOutResult, error) {
			gotAt = at
			return &domain.ClockOutResult{Entry: domain.HistoryEntry{PersonID: personID, EndedAt: at}}, nil
		},
	}
	svc := newTestService(repo, time.Now())

	entry, err := svc.ForceClose(context.Background(), "u1", ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotAt.Equal(ref) || !entry.EndedAt.Equal(ref) {
		t.Fatalf("forced close used %v, want %v", gotAt, ref)
	}
}
