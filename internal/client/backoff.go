package client

import "time"

// Backoff maps a consecutive failure count to a reconnect delay. Growth is
// linear with a hard ceiling and no jitter.
type Backoff struct {
	Base    time.Duration
	Ceiling time.Duration
}

// DefaultBackoff waits 5s per failure, up to 30s.
var DefaultBackoff = Backoff{
	Base:    5 * time.Second,
	Ceiling: 30 * time.Second,
}

// Delay returns min(max(failures, 0) * Base, Ceiling). Zero fields fall back
// to DefaultBackoff.
func (b Backoff) Delay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	base, ceiling := b.Base, b.Ceiling
	if base <= 0 {
		base = DefaultBackoff.Base
	}
	if ceiling <= 0 {
		ceiling = DefaultBackoff.Ceiling
	}
	if failures >= int(ceiling/base) {
		return ceiling
	}
	return time.Duration(failures) * base
}
