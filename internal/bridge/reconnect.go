package bridge

import (
	"context"
	"time"
)

// backoffDelay returns min(base * 2^(attempt-1), max) for attempt >= 1.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Shifts beyond 62 bits would wrap; they are past the cap anyway.
	if attempt > 32 {
		return max
	}
	delay := base << (attempt - 1)
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}

// scheduleReconnectLocked arms a single retry timer. Generation numbers
// invalidate timers that fire after an explicit Disconnect or a newer
// schedule, the same discipline as the pending-request deadlines.
func (b *Bridge) scheduleReconnectLocked() {
	b.attempt++
	delay := backoffDelay(b.attempt, b.base, b.max)
	b.retryGen++
	gen := b.retryGen
	b.retryTimer = time.AfterFunc(delay, func() { b.retryConnect(gen) })
	b.log.Info().Int("attempt", b.attempt).Dur("delay", delay).Msg("scheduling engine reconnect")
}

// retryConnect is one independent reconnection attempt. Its own handshake
// failure reschedules with the next backoff step; it never recurses
// synchronously.
func (b *Bridge) retryConnect(gen uint64) {
	b.mu.Lock()
	if b.closed || gen != b.retryGen || b.state == StateConnected {
		b.mu.Unlock()
		return
	}
	b.state = StateConnecting
	b.mu.Unlock()

	conn, err := b.dial(context.Background(), b.url, b.handshakeHeader())

	b.mu.Lock()
	if b.closed || gen != b.retryGen {
		b.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		b.state = StateDisconnected
		b.scheduleReconnectLocked()
		b.mu.Unlock()
		b.log.Debug().Err(err).Msg("engine reconnect failed")
		return
	}
	b.installConnLocked(conn)
	b.mu.Unlock()
}
