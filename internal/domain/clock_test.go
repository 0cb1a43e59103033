package domain

import (
	"testing"
	"time"
)

func ts(h, m, s int) time.Time {
	return time.Date(2026, 8, 24, h, m, s, 0, time.Local)
}

func TestNetWorkedSeconds(t *testing.T) {
	start := ts(9, 0, 0)

	tests := []struct {
		name       string
		breakSecs  int64
		breakStart *time.Time
		ref        time.Time
		want       int64
		clamped    bool
	}{
		{"no breaks", 0, nil, ts(17, 0, 0), 8 * 3600, false},
		{"accumulated break", 1800, nil, ts(17, 0, 0), 8*3600 - 1800, false},
		{"currently on break", 600, ptr(ts(12, 0, 0)), ts(12, 30, 0), 3*3600 + 1800 - 600 - 1800, false},
		{"sub-second truncation", 0, nil, ts(9, 0, 0).Add(90*time.Second + 700*time.Millisecond), 90, false},
		{"negative clamps to zero", 10 * 3600, nil, ts(10, 0, 0), 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, clamped := NetWorkedSeconds(start, tc.breakSecs, tc.breakStart, tc.ref)
			if got != tc.want || clamped != tc.clamped {
				t.Fatalf("got (%d, %v), want (%d, %v)", got, clamped, tc.want, tc.clamped)
			}
		})
	}
}

func TestNetWorkedSecondsMonotoneOnBreak(t *testing.T) {
	start := ts(9, 0, 0)
	breakStart := ts(12, 0, 0)

	prev := int64(-1)
	for i := 0; i < 5; i++ {
		ref := breakStart.Add(time.Duration(i) * time.Minute)
		worked, _ := NetWorkedSeconds(start, 0, &breakStart, ref)
		if worked != 3*3600 {
			t.Fatalf("worked time advanced during break: %d", worked)
		}
		open := int64(ref.Sub(breakStart) / time.Second)
		if open <= prev {
			t.Fatalf("open break not monotone: %d after %d", open, prev)
		}
		prev = open
	}
}

func TestFoldedBreakSeconds(t *testing.T) {
	folded, clamped := FoldedBreakSeconds(300, ts(12, 0, 0), ts(12, 10, 0))
	if folded != 900 || clamped {
		t.Fatalf("got (%d, %v), want (900, false)", folded, clamped)
	}

	// Clock skew: break apparently started after ref. Keep the
	// accumulated total and flag it.
	folded, clamped = FoldedBreakSeconds(300, ts(12, 10, 0), ts(12, 0, 0))
	if folded != 300 || !clamped {
		t.Fatalf("got (%d, %v), want (300, true)", folded, clamped)
	}
}

func TestSplitHoursMinutes(t *testing.T) {
	tests := []struct {
		secs    int64
		h, m    int64
	}{
		{0, 0, 0},
		{59, 0, 0},
		{60, 0, 1},
		{3600, 1, 0},
		{8*3600 + 1800, 8, 30},
	}
	for _, tc := range tests {
		h, m := SplitHoursMinutes(tc.secs)
		if h != tc.h || m != tc.m {
			t.Fatalf("SplitHoursMinutes(%d) = (%d, %d), want (%d, %d)", tc.secs, h, m, tc.h, tc.m)
		}
	}
}

func TestEndOfPreviousDay(t *testing.T) {
	fire := time.Date(2026, 8, 24, 0, 0, 2, 0, time.Local)
	got := EndOfPreviousDay(fire)
	want := time.Date(2026, 8, 23, 23, 59, 59, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// Month boundary.
	fire = time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)
	want = time.Date(2026, 8, 31, 23, 59, 59, 0, time.Local)
	if got := EndOfPreviousDay(fire); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func ptr(t time.Time) *time.Time { return &t }
