package token

import "time"

// RateLimitSnapshot is the most recently observed rate-limit state for one
// remote service. It is process-scoped and never persisted.
type RateLimitSnapshot struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Headroom returns the remaining/limit fraction. A snapshot without a
// positive limit reports full headroom rather than dividing by zero.
func (s *RateLimitSnapshot) Headroom() float64 {
	if s.Limit <= 0 {
		return 1
	}
	return float64(s.Remaining) / float64(s.Limit)
}
