// Package webrtcsession implements the WebRTC session orchestrator: the
// offer/answer/ICE state machine, RTP header extension negotiation, RTCP
// feedback handling, and the data channel used for the control protocol.
package webrtcsession

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
	"github.com/selkies-project/selkies-streamer-core/pkg/webrtcsession/sdpmangle"
)

// State is the session's coarse connection state.
type State int

const (
	StateIdle State = iota
	StateOffering
	StateAwaitingAnswer
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrSDPViolation indicates the remote peer sent something that violates
// the session's expectations (e.g. an offer where an answer was required).
// Always fatal to the session.
var ErrSDPViolation = errors.New("sdp violation")

// ErrChannelClosed indicates a write was attempted on a data channel that
// isn't open; isolated to that one channel/client, never fatal.
var ErrChannelClosed = errors.New("data channel not open")

// Callbacks lets the owning session observe ICE candidates, data channel
// messages, and RTCP feedback without the orchestrator depending on the
// session package (which depends on this one).
type Callbacks struct {
	OnICECandidate   func(candidate webrtc.ICECandidateInit)
	OnDataChannelMsg func(text string)
	OnPLI            func()
	OnFIR            func()
	OnREMB           func(bitrateBps int)
}

// Session is the WebRTC orchestrator for one client.
type Session struct {
	mu    sync.Mutex
	state State

	pc       *webrtc.PeerConnection
	dc       *webrtc.DataChannel
	videoSnd *webrtc.RTPSender
	audioSnd *webrtc.RTPSender

	cb  Callbacks
	log *logger.Logger
}

// New constructs a PeerConnection with H.264 (PT 96; no separate RTX payload
// type is registered) and Opus (PT 111) registered, mirroring the codec table this project's RTP
// payloaders produce.
func New(log *logger.Logger, cb Callbacks) (*Session, error) {
	m := &webrtc.MediaEngine{}

	videoCodec := webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeH264,
			ClockRate:   90000,
			SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
		},
		PayloadType: 96,
	}
	if err := m.RegisterCodec(videoCodec, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register video codec: %w", err)
	}

	audioCodec := webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		PayloadType: 111,
	}
	if err := m.RegisterCodec(audioCodec, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register audio codec: %w", err)
	}

	// The default interceptor chain gives every sender a NACK responder
	// (retransmits on receiver NACK, matching the transceiver's
	// do-nack=true) plus receiver-report/TWCC generation, without which
	// the RTCP feedback §4.3/§4.1 depends on never fires.
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir))
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	s := &Session{pc: pc, cb: cb, log: log, state: StateIdle}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if s.cb.OnICECandidate != nil {
			init := c.ToJSON()
			s.cb.OnICECandidate(init)
		}
	})

	pc.OnConnectionStateChange(func(cs webrtc.PeerConnectionState) {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch cs {
		case webrtc.PeerConnectionStateConnecting:
			s.state = StateConnecting
		case webrtc.PeerConnectionStateConnected:
			s.state = StateConnected
		case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			s.state = StateClosed
		}
		s.log.DebugWebRTC("connection state changed", "state", cs.String())
	})

	return s, nil
}

// State returns the session's current coarse state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddVideoTrack adds a local video track and starts its RTCP reader.
func (s *Session) AddVideoTrack(track webrtc.TrackLocal) error {
	sender, err := s.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add video track: %w", err)
	}
	s.mu.Lock()
	s.videoSnd = sender
	s.mu.Unlock()
	go s.readRTCP(sender, "video")
	return nil
}

// AddAudioTrack adds a local audio track and starts its RTCP reader.
func (s *Session) AddAudioTrack(track webrtc.TrackLocal) error {
	sender, err := s.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add audio track: %w", err)
	}
	s.mu.Lock()
	s.audioSnd = sender
	s.mu.Unlock()
	go s.readRTCP(sender, "audio")
	return nil
}

// readRTCP mirrors the teacher's RTCP reader goroutine shape: one loop per
// sender, dispatching on packet type.
func (s *Session) readRTCP(sender *webrtc.RTPSender, kind string) {
	for {
		pkts, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range pkts {
			switch p := pkt.(type) {
			case *rtcp.PictureLossIndication:
				s.log.DebugWebRTC("received PLI", "track", kind)
				if s.cb.OnPLI != nil {
					s.cb.OnPLI()
				}
			case *rtcp.FullIntraRequest:
				s.log.DebugWebRTC("received FIR", "track", kind)
				if s.cb.OnFIR != nil {
					s.cb.OnFIR()
				}
			case *rtcp.ReceiverEstimatedMaximumBitrate:
				s.log.DebugWebRTC("received REMB", "track", kind, "bitrate", p.Bitrate)
				if s.cb.OnREMB != nil {
					s.cb.OnREMB(int(p.Bitrate))
				}
			case *rtcp.ReceiverReport:
				s.log.DebugWebRTC("received receiver report", "track", kind)
			}
		}
	}
}

// CreateDataChannel opens the ordered control data channel used for the
// textual wire protocol, with no retransmits; no channel priority is set.
func (s *Session) CreateDataChannel() error {
	zero := uint16(0)
	dc, err := s.pc.CreateDataChannel("input", &webrtc.DataChannelInit{
		Ordered:       boolPtr(true),
		MaxRetransmits: &zero,
	})
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	s.mu.Lock()
	s.dc = dc
	s.mu.Unlock()

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if s.cb.OnDataChannelMsg != nil {
			s.cb.OnDataChannelMsg(string(msg.Data))
		}
	})
	dc.OnError(func(err error) {
		s.log.Warn("data channel error", "error", err)
	})
	return nil
}

func boolPtr(b bool) *bool { return &b }

// SendControl writes a string over the data channel, silently dropping the
// write (with a warning log) if the channel isn't open — a transport error
// isolated to this client, never fatal to the session.
func (s *Session) SendControl(text string) error {
	s.mu.Lock()
	dc := s.dc
	s.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		s.log.Warn("dropping control message, data channel not open")
		return ErrChannelClosed
	}
	// Clipboard and similarly large payloads over 65400 bytes are dropped
	// rather than fragmented or truncated.
	if len(text) > 65400 {
		s.log.Warn("dropping oversized control message", "size", len(text))
		return nil
	}
	return dc.SendText(text)
}

// CreateOffer drives offering -> awaiting_answer, mangling the local SDP
// before returning it.
func (s *Session) CreateOffer(ctx context.Context) (webrtc.SessionDescription, error) {
	s.mu.Lock()
	s.state = StateOffering
	s.mu.Unlock()

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return webrtc.SessionDescription{}, ctx.Err()
	}

	local := s.pc.LocalDescription()
	mangled := *local
	mangled.SDP = sdpmangle.Mangle(local.SDP)

	s.mu.Lock()
	s.state = StateAwaitingAnswer
	s.mu.Unlock()

	return mangled, nil
}

// SetAnswer accepts the remote answer, requiring SDPTypeAnswer exactly —
// anything else is a protocol violation and fatal to the session.
func (s *Session) SetAnswer(answer webrtc.SessionDescription) error {
	if answer.Type != webrtc.SDPTypeAnswer {
		return fmt.Errorf("%w: expected answer, got %s", ErrSDPViolation, answer.Type)
	}
	if err := s.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// AddICECandidate accepts a trickled ICE candidate from the remote peer.
func (s *Session) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return s.pc.AddICECandidate(candidate)
}

// Close tears down the peer connection.
func (s *Session) Close() error {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	return s.pc.Close()
}
