package session

import (
	"encoding/json"
	"time"
)

// statsPushInterval is how often the system/GPU stats control messages are
// sent to the client.
const statsPushInterval = 5 * time.Second

type typedMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// runStatsLoop pushes periodic system_stats/gpu_stats control messages
// until ctx is canceled, mirroring the original implementation's
// send_system_stats/send_gpu_stats data-channel messages.
func (s *Session) runStatsLoop() {
	ticker := time.NewTicker(statsPushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.pushSystemStats()
			s.pushGPUStats()
		}
	}
}

func (s *Session) pushSystemStats() {
	sys, err := s.statsSmp.SampleSystem(s.ctx)
	if err != nil {
		s.log.DebugWS("sample system stats failed", "error", err)
		return
	}
	s.sendTyped("system_stats", sys)
}

func (s *Session) pushGPUStats() {
	gpu, err := s.statsSmp.SampleGPU(s.ctx)
	if err != nil {
		s.log.DebugWS("sample gpu stats failed", "error", err)
		return
	}
	s.sendTyped("gpu_stats", gpu)
}

func (s *Session) sendTyped(kind string, data any) {
	payload, err := json.Marshal(typedMessage{Type: kind, Data: data})
	if err != nil {
		s.log.Warn("marshal stats payload failed", "kind", kind, "error", err)
		return
	}
	if err := s.transport.SendControl(string(payload)); err != nil {
		s.log.DebugWS("stats send failed", "kind", kind, "error", err)
	}
}
