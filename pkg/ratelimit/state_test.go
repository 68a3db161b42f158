package ratelimit

import (
	"testing"
	"time"
)

func TestNewState(t *testing.T) {
	now := time.Now()
	s := NewState(now)

	if s.Available != DefaultMaximumAvailable {
		t.Errorf("Available = %v, want %v", s.Available, DefaultMaximumAvailable)
	}
	if !s.LastObservedAt.Equal(now) {
		t.Errorf("LastObservedAt = %v, want %v", s.LastObservedAt, now)
	}
	if s.IsZero() {
		t.Error("NewState should not be zero")
	}
	if !(State{}).IsZero() {
		t.Error("State{} should be zero")
	}
}

func TestState_Replenish(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		available float64
		elapsed   time.Duration
		expected  float64
	}{
		{name: "empty bucket one second", available: 0, elapsed: time.Second, expected: 50},
		{name: "partial refill", available: 100, elapsed: 2 * time.Second, expected: 200},
		{name: "capped at maximum", available: 990, elapsed: time.Second, expected: 1000},
		{name: "full stays full", available: 1000, elapsed: time.Hour, expected: 1000},
		{name: "no time elapsed", available: 7, elapsed: 0, expected: 7},
		{name: "clock went backwards", available: 7, elapsed: -5 * time.Second, expected: 7},
		{name: "negative input clamped", available: -20, elapsed: 0, expected: 0},
		{name: "above maximum clamped", available: 5000, elapsed: 0, expected: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{Available: tt.available, LastObservedAt: base}
			now := base.Add(tt.elapsed)

			got := s.Replenish(now)

			if got.Available != tt.expected {
				t.Errorf("Available = %v, want %v", got.Available, tt.expected)
			}
			if !got.LastObservedAt.Equal(now) {
				t.Errorf("LastObservedAt = %v, want %v", got.LastObservedAt, now)
			}
		})
	}
}

func TestState_ReplenishNeverLeavesBounds(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for available := 0.0; available <= DefaultMaximumAvailable; available += 37.5 {
		for elapsedMs := 0; elapsedMs <= 30000; elapsedMs += 1750 {
			s := State{Available: available, LastObservedAt: base}
			got := s.Replenish(base.Add(time.Duration(elapsedMs) * time.Millisecond))

			want := available + float64(elapsedMs)/1000*DefaultRestoreRate
			if want > DefaultMaximumAvailable {
				want = DefaultMaximumAvailable
			}
			if got.Available != want {
				t.Fatalf("Replenish(%v, %dms) = %v, want %v", available, elapsedMs, got.Available, want)
			}
			if got.Available < 0 || got.Available > DefaultMaximumAvailable {
				t.Fatalf("Replenish(%v, %dms) = %v out of bounds", available, elapsedMs, got.Available)
			}
		}
	}
}

func TestAdmit(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		state       State
		wantProceed bool
		wantWait    time.Duration
	}{
		{
			name:        "empty bucket waits 200ms",
			state:       State{Available: 0, LastObservedAt: now, RestoreRate: 50},
			wantProceed: false,
			wantWait:    200 * time.Millisecond,
		},
		{
			name:        "just below threshold",
			state:       State{Available: 9, LastObservedAt: now},
			wantProceed: false,
			wantWait:    20 * time.Millisecond,
		},
		{
			name:        "at threshold proceeds",
			state:       State{Available: MinimumQueryCost, LastObservedAt: now},
			wantProceed: true,
		},
		{
			name:        "replenished past threshold proceeds",
			state:       State{Available: 0, LastObservedAt: now.Add(-time.Second)},
			wantProceed: true,
		},
		{
			name:        "faster restore rate waits less",
			state:       State{Available: 0, LastObservedAt: now, RestoreRate: 100, MaximumAvailable: 2000},
			wantProceed: false,
			wantWait:    100 * time.Millisecond,
		},
		{
			name:        "fractional wait rounds up",
			state:       State{Available: 9.99, LastObservedAt: now},
			wantProceed: false,
			wantWait:    time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proceed, wait, updated := Admit(tt.state, now)

			if proceed != tt.wantProceed {
				t.Errorf("proceed = %v, want %v", proceed, tt.wantProceed)
			}
			if wait != tt.wantWait {
				t.Errorf("wait = %v, want %v", wait, tt.wantWait)
			}
			if !updated.LastObservedAt.Equal(now) {
				t.Errorf("LastObservedAt = %v, want %v", updated.LastObservedAt, now)
			}
		})
	}
}

func TestAdmit_WaitCrossesThreshold(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := State{Available: 3.3, LastObservedAt: now}

	proceed, wait, updated := Admit(s, now)
	if proceed {
		t.Fatal("expected to wait")
	}

	proceed, _, _ = Admit(updated, now.Add(wait))
	if !proceed {
		t.Errorf("expected to proceed after waiting %v", wait)
	}
}

func TestState_ApplyCost(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	later := base.Add(3 * time.Second)
	s := State{Available: 400, LastObservedAt: base}

	t.Run("server value wins", func(t *testing.T) {
		got := s.ApplyCost(&CostInfo{
			RequestedQueryCost: 52,
			ActualQueryCost:    12,
			ThrottleStatus: &ThrottleStatus{
				MaximumAvailable:   2000,
				CurrentlyAvailable: 1988,
				RestoreRate:        100,
			},
		}, later)

		if got.Available != 1988 {
			t.Errorf("Available = %v, want 1988", got.Available)
		}
		if got.MaximumAvailable != 2000 || got.RestoreRate != 100 {
			t.Errorf("limits = %v/%v, want 2000/100", got.MaximumAvailable, got.RestoreRate)
		}
		if !got.LastObservedAt.Equal(later) {
			t.Errorf("LastObservedAt = %v, want %v", got.LastObservedAt, later)
		}
	})

	t.Run("nil cost keeps estimate", func(t *testing.T) {
		got := s.ApplyCost(nil, later)
		if got != s {
			t.Errorf("ApplyCost(nil) = %+v, want %+v", got, s)
		}
	})

	t.Run("missing throttle status keeps estimate", func(t *testing.T) {
		got := s.ApplyCost(&CostInfo{ActualQueryCost: 10}, later)
		if got != s {
			t.Errorf("ApplyCost() = %+v, want %+v", got, s)
		}
	})

	t.Run("reported value clamped", func(t *testing.T) {
		got := s.ApplyCost(&CostInfo{ThrottleStatus: &ThrottleStatus{CurrentlyAvailable: -3}}, later)
		if got.Available != 0 {
			t.Errorf("Available = %v, want 0", got.Available)
		}
	})
}

func TestState_Exhausted(t *testing.T) {
	now := time.Now()
	s := State{Available: 800, LastObservedAt: now.Add(-time.Minute), MaximumAvailable: 2000, RestoreRate: 100}

	got := s.Exhausted(now)

	if got.Available != 0 {
		t.Errorf("Available = %v, want 0", got.Available)
	}
	if got.MaximumAvailable != 2000 || got.RestoreRate != 100 {
		t.Error("Exhausted should keep learned limits")
	}

	proceed, wait, _ := Admit(got, now)
	if proceed || wait != 100*time.Millisecond {
		t.Errorf("Admit after Exhausted = (%v, %v), want (false, 100ms)", proceed, wait)
	}
}
