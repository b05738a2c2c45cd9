package parrot

import "time"

// Speaker is the per-parrot speech timer. The parrot is waiting until
// NextSpeak and eligible for one emission attempt once it has passed.
type Speaker struct {
	MinInterval time.Duration `json:"min_interval"`
	MaxInterval time.Duration `json:"max_interval"`
	NextSpeak   time.Time     `json:"next_speak"`
}

// ShouldSpeak reports whether the timer has elapsed.
func (s *Speaker) ShouldSpeak(now time.Time) bool {
	return !now.Before(s.NextSpeak)
}

// Advance re-arms an elapsed timer and reports whether an emission attempt
// is due. The interval is added to the previous deadline so variable tick
// rates do not drift the cadence; if the new deadline is still behind now
// it is moved to now+interval, so a stalled clock yields one emission, not
// a burst.
func (s *Speaker) Advance(now time.Time, rng Rand) bool {
	if !s.ShouldSpeak(now) {
		return false
	}
	interval := s.interval(rng)
	s.NextSpeak = s.NextSpeak.Add(interval)
	if s.NextSpeak.Before(now) {
		s.NextSpeak = now.Add(interval)
	}
	return true
}

// ResetInterval arms the timer a fresh random interval from now.
func (s *Speaker) ResetInterval(now time.Time, rng Rand) {
	s.NextSpeak = now.Add(s.interval(rng))
}

func (s *Speaker) interval(rng Rand) time.Duration {
	return between(rng, s.MinInterval, s.MaxInterval)
}
