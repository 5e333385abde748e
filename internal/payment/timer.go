package payment

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Timer is a repeating callback that can be cancelled.
type Timer interface {
	Stop()
}

// Scheduler runs fn every d until the returned Timer is stopped.
type Scheduler interface {
	Every(d time.Duration, fn func()) Timer
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TickerScheduler runs callbacks on a time.Ticker goroutine.
type TickerScheduler struct{}

func (TickerScheduler) Every(d time.Duration, fn func()) Timer {
	t := &tickerTimer{done: make(chan struct{})}
	ticker := time.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return t
}

type tickerTimer struct {
	once sync.Once
	done chan struct{}
}

// Stop never blocks, so it is safe to call from inside the callback.
func (t *tickerTimer) Stop() {
	t.once.Do(func() { close(t.done) })
}
