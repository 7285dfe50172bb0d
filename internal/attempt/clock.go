package attempt

import "time"

// Clock supplies wall-clock time. Remaining exam time is always
// recomputed from a wall-clock reference, never from accumulated tick
// counts, so a suspended execution context cannot drift the countdown.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production clock.
var SystemClock Clock = systemClock{}
