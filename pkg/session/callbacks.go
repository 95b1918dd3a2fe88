package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/selkies-project/selkies-streamer-core/pkg/displayresize"
	"github.com/selkies-project/selkies-streamer-core/pkg/encoder"
	"github.com/selkies-project/selkies-streamer-core/pkg/gamepad"
	"github.com/selkies-project/selkies-streamer-core/pkg/input"
	"github.com/selkies-project/selkies-streamer-core/pkg/wsframer"
)

// buildCallbacks wires the wire-protocol router's callbacks to session
// state. Every callback here runs on the owning loop goroutine (Dispatch
// is only ever invoked from s.HandleControlMessage's loopPost), so none of
// them need their own locking for state this package owns.
func (s *Session) buildCallbacks() input.Callbacks {
	return input.Callbacks{
		SetResolution:       s.setResolution,
		SetFramerate:        s.setFramerate,
		SetVideoBitrateKbps: s.setVideoBitrateKbps,
		SetAudioBitrateKbps: s.setAudioBitrateKbps,
		JoystickConnect:     s.joystickConnect,
		JoystickDisconnect:  s.joystickDisconnect,
		JoystickButton:      s.joystickButton,
		JoystickAxis:        s.joystickAxis,
		ClipboardWrite:      s.clipboardWrite,
		RequestClipboardRead: s.requestClipboardRead,
		Ping:                s.handlePong,
		RequestStatsVideo:   s.requestStatsVideo,
		RequestStatsAudio:   s.requestStatsAudio,
		SetEnableResize:     s.setEnableResize,
	}
}

func (s *Session) setResolution(w, h int) {
	if err := s.resizer.Resize(s.ctx, displayresize.Resolution{Width: w, Height: h}); err != nil {
		s.log.Warn("resize failed", "width", w, "height", h, "error", err)
	}
}

func (s *Session) setEnableResize(enabled bool, resolution string) {
	s.resizeOn = enabled
	if !enabled || resolution == "" {
		return
	}
	parts := strings.Split(resolution, "x")
	if len(parts) != 2 {
		return
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return
	}
	s.setResolution(w, h)
}

func (s *Session) setFramerate(fps int) {
	if err := s.video.SetFramerate(fps); err != nil {
		s.log.Warn("set framerate failed", "fps", fps, "error", err)
	}
}

func (s *Session) setVideoBitrateKbps(kbps int) {
	bps := kbps * 1000
	if err := s.video.SetVideoBitrate(bps, false); err != nil {
		s.log.Warn("set video bitrate failed", "kbps", kbps, "error", err)
		return
	}
	if s.congestion != nil {
		s.congestion.SetVideoBitrate(bps)
	}
	s.sendTyped("pipeline", map[string]string{
		"status": fmt.Sprintf("Video bitrate set to: %d", bps),
	})
}

func (s *Session) setAudioBitrateKbps(kbps int) {
	if s.audio == nil {
		return
	}
	if err := s.audio.SetBitrate(kbps * 1000); err != nil {
		s.log.Warn("set audio bitrate failed", "kbps", kbps, "error", err)
		return
	}
	if s.congestion != nil {
		s.congestion.SetFECAudioBitrate(encoder.FECAudioBitrate(kbps*1000, s.cfg.Video.PacketLossPercent))
	}
}

func (s *Session) joystickConnect(index int, name string, numButtons, numAxes int) {
	if index < 0 || index >= s.maxPads {
		s.log.Warn("joystick index out of range", "index", index, "max", s.maxPads)
		return
	}
	if _, exists := s.gamepads[index]; exists {
		return
	}
	cfg, _ := gamepad.DetectConfig(name)
	cfg.NumButtons, cfg.NumAxes = numButtons, numAxes
	srv := gamepad.NewServer(s.log, s.sockDir, index, cfg)
	if err := srv.Listen(s.sockDir); err != nil {
		s.log.Warn("gamepad listen failed", "index", index, "error", err)
		return
	}
	s.gamepads[index] = srv
}

func (s *Session) joystickDisconnect(index int) {
	srv, ok := s.gamepads[index]
	if !ok {
		return
	}
	if err := srv.Close(); err != nil {
		s.log.Warn("gamepad close failed", "index", index, "error", err)
	}
	delete(s.gamepads, index)
}

func (s *Session) joystickButton(index, button int, value float64) {
	srv, ok := s.gamepads[index]
	if !ok {
		return
	}
	if err := srv.Button(button, value); err != nil {
		s.log.DebugGamepad("button broadcast failed", "index", index, "error", err)
	}
}

func (s *Session) joystickAxis(index, axis int, value float64) {
	srv, ok := s.gamepads[index]
	if !ok {
		return
	}
	if err := srv.Axis(axis, value); err != nil {
		s.log.DebugGamepad("axis broadcast failed", "index", index, "error", err)
	}
}

func (s *Session) clipboardWrite(base64Payload string) {
	raw, err := base64.StdEncoding.DecodeString(base64Payload)
	if err != nil {
		s.log.Warn("invalid base64 clipboard payload", "error", err)
		return
	}
	if err := s.clipMon.Write(s.ctx, string(raw)); err != nil {
		s.log.Warn("clipboard write failed", "error", err)
	}
}

func (s *Session) requestClipboardRead() {
	text, err := s.clipRunner.Read(s.ctx)
	if err != nil {
		s.log.Warn("clipboard read failed", "error", err)
		return
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	if err := s.transport.SendControl(wsframer.EncodeClipboard(encoded)); err != nil {
		s.log.DebugWS("clipboard read reply failed", "error", err)
	}
}

func (s *Session) requestStatsVideo(statsJSON string) {
	s.log.DebugWebRTC("client video stats", "stats", statsJSON)
}

func (s *Session) requestStatsAudio(statsJSON string) {
	s.log.DebugWebRTC("client audio stats", "stats", statsJSON)
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
