package worker

import "time"

const minimumBackoff = 100 * time.Millisecond

// backoff tracks the idle delay between empty polls.
type backoff struct {
	floor   time.Duration
	ceiling time.Duration
	current time.Duration
}

func newBackoff(floor, ceiling time.Duration) *backoff {
	if floor < minimumBackoff {
		floor = minimumBackoff
	}
	if ceiling < floor {
		ceiling = floor
	}
	return &backoff{floor: floor, ceiling: ceiling, current: floor}
}

// Current returns the delay to use for the next idle sleep.
func (b *backoff) Current() time.Duration {
	return b.current
}

// Next doubles the delay, bounded by the ceiling.
func (b *backoff) Next() {
	next := b.current * 2
	if next > b.ceiling {
		next = b.ceiling
	}
	if next < b.floor {
		next = b.floor
	}
	b.current = next
}

// Reset returns the delay to the floor.
func (b *backoff) Reset() {
	b.current = b.floor
}
