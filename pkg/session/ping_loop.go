package session

import "time"

// pingInterval is how often a round-trip latency probe is sent to the
// client, matching send_ping/ping_start in the original implementation.
const pingInterval = 10 * time.Second

// runPingLoop periodically stamps and sends a ping until ctx is canceled.
func (s *Session) runPingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.loopPost(s.sendPing)
		}
	}
}

// sendPing stamps pingStart and sends the "ping" control message carrying
// that start time, mirroring send_ping(t)'s {"start_time": t} payload. The
// eventual "pong" reply is matched against pingStart, not against any
// value the client echoes back.
func (s *Session) sendPing() {
	s.pingStart = time.Now()
	s.sendTyped("ping", map[string]float64{
		"start_time": float64(s.pingStart.UnixNano()) / 1e9,
	})
}

// handlePong completes the outstanding ping: roundtrip/2, converted to
// milliseconds, is forwarded as a latency_measurement control message
// (spec.md §4.5 "pong", §6 latency_measurement).
func (s *Session) handlePong() {
	if s.pingStart.IsZero() {
		s.log.Warn("received pong before ping")
		return
	}
	latencyMs := time.Since(s.pingStart).Seconds() / 2 * 1000
	s.sendTyped("latency_measurement", map[string]float64{"latency_ms": latencyMs})
}
