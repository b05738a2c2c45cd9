// Package world drives the parrot engine with simulated world time.
package world

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ClockListener receives world tick events.
type ClockListener interface {
	OnTick(worldTime time.Time)
}

// WorldClock advances world time on a real-time ticker and notifies its
// listeners. World time only moves while the clock runs, so a paused round
// does not make every parrot due at once when it resumes.
type WorldClock struct {
	speed     float64 // time multiplier, 1.0 = realtime
	interval  time.Duration
	listeners []ClockListener
	worldTime time.Time
	paused    bool
	ticks     uint64
	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	logger    *zap.Logger
}

// NewWorldClock creates a clock with the given tick interval and speed
// multiplier, starting at start.
func NewWorldClock(interval time.Duration, speed float64, start time.Time, logger *zap.Logger) *WorldClock {
	if speed <= 0 {
		speed = 1
	}
	return &WorldClock{
		speed:     speed,
		interval:  interval,
		worldTime: start,
		logger:    logger,
	}
}

// AddListener registers a tick listener. Listeners run in registration
// order on the clock goroutine.
func (c *WorldClock) AddListener(l ClockListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Now returns the current world time.
func (c *WorldClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.worldTime
}

// Ticks returns how many ticks have been delivered.
func (c *WorldClock) Ticks() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ticks
}

// SetSpeed changes the time multiplier.
func (c *WorldClock) SetSpeed(speed float64) {
	if speed <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
}

// Pause freezes world time until Resume.
func (c *WorldClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume unfreezes world time.
func (c *WorldClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// Paused reports whether the clock is frozen.
func (c *WorldClock) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// Start begins the tick loop in a background goroutine.
func (c *WorldClock) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(ctx)
	c.logger.Info("world clock started",
		zap.Duration("interval", c.interval),
		zap.Float64("speed", c.speed))
}

// Stop halts the tick loop and waits for an in-progress tick to finish.
func (c *WorldClock) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.logger.Info("world clock stopped")
}

func (c *WorldClock) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			step := time.Duration(float64(c.interval) * c.speed)
			paused := c.paused
			c.mu.RUnlock()
			if !paused {
				c.Advance(step)
			}
		}
	}
}

// Advance moves world time forward by d and delivers one tick. The ticker
// loop uses it; tests and operators can call it to step the world by hand.
func (c *WorldClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.worldTime = c.worldTime.Add(d)
	c.ticks++
	wt := c.worldTime
	listeners := make([]ClockListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l.OnTick(wt)
	}
	return wt
}
