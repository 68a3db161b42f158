// Package ratelimit implements the Shopify GraphQL query-cost budget.
// The upstream API charges points per query and replenishes them at a fixed
// restore rate up to a maximum. State estimates the remaining points locally
// between responses and is corrected by the throttle status the server
// reports with every successful response.
package ratelimit

import (
	"math"
	"time"
)

// Budget defaults observed on the standard plan.
const (
	// DefaultMaximumAvailable is the bucket size in points.
	DefaultMaximumAvailable = 1000

	// DefaultRestoreRate is the number of points restored per second.
	DefaultRestoreRate = 50

	// MinimumQueryCost is the cost of the cheapest real query.
	// Requests are held back while the estimate is below this value.
	MinimumQueryCost = 10
)

// State is the caller-held estimate of the remaining query budget for one credential.
// It is passed by value through every call so concurrent callers never share it.
type State struct {
	// Available is the estimated number of points left.
	Available float64 `json:"available"`

	// LastObservedAt is when Available was last computed or reported.
	LastObservedAt time.Time `json:"last_observed_at"`

	// MaximumAvailable is the bucket size; zero means DefaultMaximumAvailable.
	MaximumAvailable float64 `json:"maximum_available,omitempty"`

	// RestoreRate is the refill speed in points per second; zero means DefaultRestoreRate.
	RestoreRate float64 `json:"restore_rate,omitempty"`
}

// CostInfo is the query cost block from the response envelope's extensions.
type CostInfo struct {
	RequestedQueryCost float64         `json:"requestedQueryCost"`
	ActualQueryCost    float64         `json:"actualQueryCost"`
	ThrottleStatus     *ThrottleStatus `json:"throttleStatus"`
}

// ThrottleStatus is the server-reported budget snapshot.
type ThrottleStatus struct {
	MaximumAvailable   float64 `json:"maximumAvailable"`
	CurrentlyAvailable float64 `json:"currentlyAvailable"`
	RestoreRate        float64 `json:"restoreRate"`
}

// NewState returns a full default budget observed at now.
func NewState(now time.Time) State {
	return State{
		Available:        DefaultMaximumAvailable,
		LastObservedAt:   now,
		MaximumAvailable: DefaultMaximumAvailable,
		RestoreRate:      DefaultRestoreRate,
	}
}

// IsZero reports whether the state was never initialized.
func (s State) IsZero() bool {
	return s.LastObservedAt.IsZero() && s.Available == 0
}

func (s State) maximum() float64 {
	if s.MaximumAvailable <= 0 {
		return DefaultMaximumAvailable
	}
	return s.MaximumAvailable
}

func (s State) restoreRate() float64 {
	if s.RestoreRate <= 0 {
		return DefaultRestoreRate
	}
	return s.RestoreRate
}

// Replenish adds the points restored since LastObservedAt, clamped to [0, maximum].
func (s State) Replenish(now time.Time) State {
	elapsed := now.Sub(s.LastObservedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	s.Available = clamp(s.Available+elapsed*s.restoreRate(), 0, s.maximum())
	s.LastObservedAt = now
	return s
}

// Admit decides whether a request may be sent now. When the replenished budget
// is below MinimumQueryCost it returns the exact wait needed to cross it.
func Admit(s State, now time.Time) (bool, time.Duration, State) {
	updated := s.Replenish(now)
	if updated.Available >= MinimumQueryCost {
		return true, 0, updated
	}

	waitMillis := math.Ceil((MinimumQueryCost - updated.Available) * 1000 / updated.restoreRate())
	return false, time.Duration(waitMillis) * time.Millisecond, updated
}

// ApplyCost overwrites the estimate with the server-reported throttle status.
// Without a throttle status the state is returned unchanged.
func (s State) ApplyCost(cost *CostInfo, now time.Time) State {
	if cost == nil || cost.ThrottleStatus == nil {
		return s
	}

	ts := cost.ThrottleStatus
	if ts.MaximumAvailable > 0 {
		s.MaximumAvailable = ts.MaximumAvailable
	}
	if ts.RestoreRate > 0 {
		s.RestoreRate = ts.RestoreRate
	}
	s.Available = clamp(ts.CurrentlyAvailable, 0, s.maximum())
	s.LastObservedAt = now

	budgetAvailable.Set(s.Available)
	return s
}

// Exhausted returns an empty budget at now, keeping the learned limits.
// Used after the server answered 429 and the local estimate can't be trusted.
func (s State) Exhausted(now time.Time) State {
	s.Available = 0
	s.LastObservedAt = now
	return s
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
