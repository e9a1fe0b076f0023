package chat

import "time"

// Clock abstracts wall time and ticker creation so the typing rate limit
// and the poll loop are deterministic under test.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks at a fixed interval, beginning one interval after
// creation.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) Chan() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()                  { s.t.Stop() }
