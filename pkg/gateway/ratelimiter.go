package gateway

import (
	"sync"
	"time"
)

// RateLimiter applies a sliding-window per-client limit to execute
// requests. List and health endpoints are not limited.
type RateLimiter struct {
	windows map[string][]int64
	max     int

	mu       sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter allowing max requests per minute per
// client.
func NewRateLimiter(max int) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string][]int64),
		max:     max,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a request from the client may proceed and
// records it when it may.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()
	window := prune(rl.windows[client], now)

	if len(window) >= rl.max {
		rl.windows[client] = window
		return false
	}

	rl.windows[client] = append(window, now)
	return true
}

// RetryAfter returns the seconds until the client's window frees up.
func (rl *RateLimiter) RetryAfter(client string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	window := rl.windows[client]
	if len(window) == 0 {
		return 0
	}

	remaining := 60000 - (time.Now().UnixMilli() - window[0])
	if remaining < 0 {
		return 0
	}
	return int((remaining + 999) / 1000)
}

// Stop terminates the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now().UnixMilli()
			for client, window := range rl.windows {
				pruned := prune(window, now)
				if len(pruned) == 0 {
					delete(rl.windows, client)
				} else {
					rl.windows[client] = pruned
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

func prune(window []int64, now int64) []int64 {
	valid := window[:0]
	for _, t := range window {
		if now-t < 60000 {
			valid = append(valid, t)
		}
	}
	return valid
}
