// Package session ties one client's media pipeline, transport, and input
// router together into a single owning goroutine. Everything that mutates
// session state (the gamepad map, resize/bitrate bookkeeping, the output
// stats scratchpad) runs on that one goroutine; anything called from a
// different goroutine (pion's internal callbacks, the bus poller, the
// cursor/clipboard monitors) hops onto it first through loopPost rather
// than mutating session state directly.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/selkies-project/selkies-streamer-core/pkg/bus"
	"github.com/selkies-project/selkies-streamer-core/pkg/clipboard"
	"github.com/selkies-project/selkies-streamer-core/pkg/config"
	"github.com/selkies-project/selkies-streamer-core/pkg/congestion"
	"github.com/selkies-project/selkies-streamer-core/pkg/cursor"
	"github.com/selkies-project/selkies-streamer-core/pkg/displayresize"
	"github.com/selkies-project/selkies-streamer-core/pkg/encoder"
	"github.com/selkies-project/selkies-streamer-core/pkg/gamepad"
	"github.com/selkies-project/selkies-streamer-core/pkg/input"
	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
	"github.com/selkies-project/selkies-streamer-core/pkg/mediafx"
	"github.com/selkies-project/selkies-streamer-core/pkg/pipeline"
	"github.com/selkies-project/selkies-streamer-core/pkg/stats"
	"github.com/selkies-project/selkies-streamer-core/pkg/webrtcsession"
	"github.com/selkies-project/selkies-streamer-core/pkg/wsframer"
	"github.com/selkies-project/selkies-streamer-core/pkg/xinput"
)

// Mode selects which transport carries media and control traffic for a
// session.
type Mode int

const (
	ModeWebRTC Mode = iota
	ModeWebSocket
)

// RTPSource pulls one encoded RTP packet at a time out of a running
// WebRTC-mode pipeline. The actual media framework (capture, encode,
// payload) is an external collaborator of this project, so this is the
// seam a real binding's "pull a buffer from the payloader's src pad" step
// plugs into; pkg/mediafx/fake provides an in-memory Pipeline/Element
// graph but models no sample flow, which is what this interface is for.
type RTPSource interface {
	ReadRTP(ctx context.Context) (*rtp.Packet, error)
}

// FrameSource pulls one encoded access unit (one video frame, or one audio
// packet) at a time out of a running WebSocket-mode pipeline's appsink.
type FrameSource interface {
	ReadFrame(ctx context.Context) (data []byte, keyframe bool, err error)
}

// controlTransport is the subset of behavior Session needs to deliver a
// control-channel message, letting dispatch code stay mode-agnostic.
type controlTransport interface {
	SendControl(text string) error
}

type wsControlAdapter struct{ conn *wsframer.Conn }

func (a wsControlAdapter) SendControl(text string) error { return a.conn.WriteControl(text) }

// kbpsBitrateSetter adapts the video pipeline's bits/sec SetVideoBitrate to
// congestion.BitrateSetter, which is called with kbit/sec.
type kbpsBitrateSetter struct{ video *pipeline.VideoPipeline }

func (a kbpsBitrateSetter) SetVideoBitrate(kbps int, ccTriggered bool) error {
	return a.video.SetVideoBitrate(kbps*1000, ccTriggered)
}

// Params bundles every collaborator a Session is built from. Exactly one of
// the WebRTC or WebSocket groups should be populated, matching Mode.
type Params struct {
	Mode   Mode
	Config *config.Config
	Log    *logger.Logger

	Injector        xinput.Injector
	CursorSource    cursor.Source
	ClipboardRunner clipboard.Runner
	ResizeRunner    displayresize.Runner
	GPUStats        stats.GPUStatsSource

	Builder     *pipeline.Builder
	NewPipeline func() mediafx.Pipeline
	Profile     encoder.Profile

	// WebRTC mode.
	WebRTC         *webrtcsession.Session
	GCCElement     mediafx.Element
	VideoRTPSource RTPSource
	AudioRTPSource RTPSource

	// WebSocket mode.
	WSConn           *wsframer.Conn
	VideoFrameSource FrameSource
	AudioFrameSource FrameSource

	// OnICECandidate relays a trickled local candidate to the caller's
	// signaling channel (WebRTC mode only).
	OnICECandidate func(webrtc.ICECandidateInit)
}

// Session owns one client's pipeline set, router, gamepads, and transport.
type Session struct {
	id   string
	mode Mode
	log  *logger.Logger
	cfg  *config.Config

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	// loop is the single owning goroutine's work queue; every
	// cross-thread callback posts a closure here instead of mutating
	// session state directly.
	loop chan func()

	video *pipeline.VideoPipeline
	audio *pipeline.AudioPipeline

	router   *input.Router
	gamepads map[int]*gamepad.Server
	maxPads  int
	sockDir  string

	webrtc     *webrtcsession.Session
	wsConn     *wsframer.Conn
	transport  controlTransport
	resizer    *displayresize.Resizer
	resizeOn   bool
	cursorMon  *cursor.Monitor
	clipMon    *clipboard.Monitor
	clipRunner clipboard.Runner
	bus        *bus.Handler
	congestion *congestion.Estimator
	statsSmp   *stats.Sampler

	frameIDs *wsframer.FrameIDCounter
	fps      *wsframer.FPSCounter

	iceCandidateRelay func(webrtc.ICECandidateInit)

	// currentFPS/lastCursorSerial/currentFrameID form the output stats
	// scratchpad; only ever written from the owning loop goroutine.
	currentFPS       float64
	lastCursorSerial uint64
	currentFrameID   uint16

	// pingStart is the send time of the last outbound latency probe, read
	// and written only on the owning loop goroutine (runPingLoop hops
	// through loopPost to set it; the "pong" dispatch runs on the loop
	// already). Zero means no ping is outstanding.
	pingStart time.Time
}

// New constructs a Session and starts its owning goroutine, bus poller,
// and (if configured) cursor/clipboard monitors. Callers drive the
// transport (accepting ICE candidates, reading WebSocket frames) and call
// Close when the client disconnects.
func New(p Params) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       uuid.NewString(),
		mode:     p.Mode,
		log:      p.Log,
		cfg:      p.Config,
		ctx:      ctx,
		cancel:   cancel,
		loop:     make(chan func(), 64),
		gamepads: make(map[int]*gamepad.Server),
		maxPads:  p.Config.Gamepad.MaxPads,
		sockDir:  p.Config.Gamepad.SocketDir,
		webrtc:   p.WebRTC,
		wsConn:   p.WSConn,
		resizer:  displayresize.New(p.Log, p.ResizeRunner),
		resizeOn: true,
		frameIDs:          &wsframer.FrameIDCounter{},
		fps:               wsframer.NewFPSCounter(time.Now()),
		statsSmp:          stats.New(p.GPUStats),
		iceCandidateRelay: p.OnICECandidate,
	}

	encodeParams := encoder.EncodeParams{
		VideoBitrateBps:     p.Config.Video.BitrateKbps * 1000,
		FramerateFPS:        p.Config.Video.FramerateFPS,
		KeyframeDistanceSec: p.Config.Video.KeyframeDistanceSec,
		PacketLossPercent:   p.Config.Video.PacketLossPercent,
	}

	var err error
	switch p.Mode {
	case ModeWebRTC:
		s.transport = p.WebRTC
		s.video, err = p.Builder.BuildWebRTCVideo(p.NewPipeline, pipeline.Params{
			Profile:           p.Profile,
			Encode:            encodeParams,
			PointerVisible:    true,
			SourceElementName: "x11",
		})
	case ModeWebSocket:
		s.transport = wsControlAdapter{conn: p.WSConn}
		s.video, err = p.Builder.BuildWebSocketVideo(p.NewPipeline, pipeline.Params{
			Profile:           p.Profile,
			Encode:            encodeParams,
			PointerVisible:    true,
			SourceElementName: "source",
		})
		if err == nil {
			s.audio, err = p.Builder.BuildAudio(p.NewPipeline, p.Config.Audio.BitrateKbps*1000)
		}
	default:
		return nil, fmt.Errorf("%w: unknown session mode", pipeline.ErrConstruction)
	}
	if err != nil {
		cancel()
		return nil, err
	}

	if err := s.video.Pipeline.SetState(mediafx.StatePlaying); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: start video pipeline: %v", pipeline.ErrConstruction, err)
	}
	if s.audio != nil {
		if err := s.audio.Pipeline.SetState(mediafx.StatePlaying); err != nil {
			cancel()
			return nil, fmt.Errorf("%w: start audio pipeline: %v", pipeline.ErrConstruction, err)
		}
	}

	if p.GCCElement != nil {
		s.congestion = congestion.New(p.GCCElement, kbpsBitrateSetter{video: s.video}, encodeParams.VideoBitrateBps,
			encoder.FECAudioBitrate(p.Config.Audio.BitrateKbps*1000, p.Config.Video.PacketLossPercent))
	}

	s.cursorMon = cursor.New(p.Log, p.CursorSource, p.Config.Display.CursorSize, p.Config.Display.CursorScale)
	s.clipMon = clipboard.New(p.Log, p.ClipboardRunner, true, true)
	s.clipRunner = p.ClipboardRunner
	if s.clipRunner == nil {
		s.clipRunner = clipboard.NewExecRunner()
	}

	busPipelines := []mediafx.Pipeline{s.video.Pipeline}
	if s.audio != nil {
		busPipelines = append(busPipelines, s.audio.Pipeline)
	}
	s.bus = bus.New(p.Log, bus.Callbacks{
		OnFatal:      func(source string, err error) { s.loopPost(func() { s.handleBusFatal(source, err) }) },
		OnSourceLost: func(source string) { s.loopPost(func() { s.handleSourceLost(source) }) },
		OnLatency:    func() { s.loopPost(func() {}) },
	}, busPipelines...)

	s.router = input.New(p.Injector, s.buildCallbacks(), p.Log, 1)

	if p.Mode == ModeWebRTC && p.WebRTC != nil {
		s.wireWebRTC(p.VideoRTPSource, p.AudioRTPSource)
	}

	s.wg.Add(1)
	go func() { defer s.wg.Done(); s.runLoop() }()

	s.wg.Add(1)
	go func() { defer s.wg.Done(); s.bus.Run(s.ctx) }()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.cursorMon.Run(s.ctx, 0, func(msg cursor.Message) {
			s.loopPost(func() { s.handleCursorChange(msg) })
		})
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clipMon.Run(s.ctx, func(text string) {
			s.loopPost(func() { s.handleClipboardChange(text) })
		})
	}()

	if p.Mode == ModeWebSocket {
		s.wg.Add(1)
		go func() { defer s.wg.Done(); s.pumpVideoFrames(p.VideoFrameSource) }()
		if p.AudioFrameSource != nil {
			s.wg.Add(1)
			go func() { defer s.wg.Done(); s.pumpAudioFrames(p.AudioFrameSource) }()
		}
	}

	s.wg.Add(1)
	go func() { defer s.wg.Done(); s.runStatsLoop() }()

	s.wg.Add(1)
	go func() { defer s.wg.Done(); s.runPingLoop() }()

	return s, nil
}

// ID returns the session's generated identifier.
func (s *Session) ID() string { return s.id }

// loopPost enqueues fn to run on the single owning goroutine. Dropped
// silently once the session is closing, matching every other isolated-
// to-one-client error path in this package (a closing session has nothing
// left to observe the side effect anyway).
func (s *Session) loopPost(fn func()) {
	select {
	case s.loop <- fn:
	case <-s.ctx.Done():
	}
}

func (s *Session) runLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.loop:
			fn()
		}
	}
}

// wireWebRTC creates the local RTP tracks and starts the RTP pump
// goroutines for WebRTC mode.
func (s *Session) wireWebRTC(videoSrc, audioSrc RTPSource) {
	if videoSrc != nil {
		track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeH264,
			ClockRate: 90000,
		}, "video", "selkies")
		if err != nil {
			s.log.Warn("create video track failed", "error", err)
		} else if err := s.webrtc.AddVideoTrack(track); err != nil {
			s.log.Warn("add video track failed", "error", err)
		} else {
			s.wg.Add(1)
			go func() { defer s.wg.Done(); s.pumpVideoRTP(videoSrc, track) }()
		}
	}
	if audioSrc != nil {
		track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		}, "audio", "selkies")
		if err != nil {
			s.log.Warn("create audio track failed", "error", err)
		} else if err := s.webrtc.AddAudioTrack(track); err != nil {
			s.log.Warn("add audio track failed", "error", err)
		} else {
			s.wg.Add(1)
			go func() { defer s.wg.Done(); s.pumpAudioRTP(audioSrc, track) }()
		}
	}
}

func (s *Session) pumpVideoRTP(src RTPSource, track *webrtc.TrackLocalStaticRTP) {
	for {
		pkt, err := src.ReadRTP(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.log.Warn("video RTP source error", "error", err)
			return
		}
		if err := track.WriteRTP(pkt); err != nil {
			s.log.DebugWebRTC("write video RTP failed", "error", err)
		}
	}
}

func (s *Session) pumpAudioRTP(src RTPSource, track *webrtc.TrackLocalStaticRTP) {
	for {
		pkt, err := src.ReadRTP(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.log.Warn("audio RTP source error", "error", err)
			return
		}
		if err := track.WriteRTP(pkt); err != nil {
			s.log.DebugWebRTC("write audio RTP failed", "error", err)
		}
	}
}

func (s *Session) pumpVideoFrames(src FrameSource) {
	for {
		data, keyframe, err := src.ReadFrame(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.log.Warn("video frame source error", "error", err)
			return
		}
		id := s.frameIDs.Next()
		now := time.Now()
		s.fps.Tick(now)
		s.loopPost(func() {
			s.currentFrameID = id
			s.currentFPS = s.fps.Current()
		})
		if err := s.wsConn.WriteVideo(wsframer.EncodeVideoFrame(id, keyframe, data)); err != nil {
			s.log.Warn("write video frame failed", "error", err)
		}
	}
}

func (s *Session) pumpAudioFrames(src FrameSource) {
	for {
		data, _, err := src.ReadFrame(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.log.Warn("audio frame source error", "error", err)
			return
		}
		if err := s.wsConn.WriteAudio(wsframer.EncodeAudioFrame(data)); err != nil {
			s.log.Warn("write audio frame failed", "error", err)
		}
	}
}

// OnICECandidate forwards a trickled local ICE candidate to the relay
// configured in Params.OnICECandidate. Exposed as a method (rather than
// requiring the caller to reach into webrtcsession.Callbacks before a
// Session exists) so main.go can wire webrtcsession.New's Callbacks to a
// forward reference that starts pointing at this Session once New
// returns.
func (s *Session) OnICECandidate(candidate webrtc.ICECandidateInit) {
	s.loopPost(func() {
		if s.iceCandidateRelay != nil {
			s.iceCandidateRelay(candidate)
		}
	})
}

// OnPLI/OnFIR/OnREMB mirror webrtcsession.Callbacks; there is no force-
// keyframe mechanism modeled in pkg/pipeline or pkg/encoder (the external
// media framework owns GOP/keyframe requests), so PLI/FIR are logged for
// visibility rather than acted on.
func (s *Session) OnPLI() {
	s.loopPost(func() { s.log.DebugWebRTC("PLI received, no force-keyframe path modeled") })
}

func (s *Session) OnFIR() {
	s.loopPost(func() { s.log.DebugWebRTC("FIR received, no force-keyframe path modeled") })
}

func (s *Session) OnREMB(bitrateBps int) {
	s.loopPost(func() {
		if s.congestion != nil {
			s.congestion.OnEstimate(bitrateBps)
		}
	})
}

// HandleControlMessage routes one inbound control-channel message onto
// the owning loop goroutine. Callers (the WebRTC data channel's OnMessage
// callback, or a WebSocket read loop) call this from whatever goroutine
// they run on; Dispatch itself always executes on the session's loop.
func (s *Session) HandleControlMessage(text string) {
	s.loopPost(func() {
		if err := s.router.Dispatch(text); err != nil {
			s.log.DebugInput("dispatch failed", "error", err)
		}
	})
}

func (s *Session) handleBusFatal(source string, err error) {
	s.log.Error("pipeline fatal, tearing down session", "source", source, "error", err, "session", s.id)
	go s.Close()
}

func (s *Session) handleSourceLost(source string) {
	s.log.Warn("capture source lost, tearing down session", "source", source, "session", s.id)
	go s.Close()
}

func (s *Session) handleCursorChange(msg cursor.Message) {
	s.sendControlJSON(wsframer.EncodeCursor, msg)
}

func (s *Session) handleClipboardChange(text string) {
	if err := s.transport.SendControl(wsframer.EncodeClipboard(text)); err != nil {
		s.log.DebugWS("clipboard forward failed", "error", err)
	}
}

// sendControlJSON marshals v with the given wire-framing helper and sends
// it over the active transport, logging (not failing) a transport error.
func (s *Session) sendControlJSON(encode func(string) string, v any) {
	payload, err := marshalJSON(v)
	if err != nil {
		s.log.Warn("marshal control payload failed", "error", err)
		return
	}
	if err := s.transport.SendControl(encode(payload)); err != nil {
		s.log.DebugWS("control send failed", "error", err)
	}
}

// Close tears the session down: cancels every goroutine, drives both
// pipelines to NULL, closes and unlinks every gamepad socket, and closes
// the transport. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.video.Pipeline.SetState(mediafx.StateNull)
		if s.audio != nil {
			_ = s.audio.Pipeline.SetState(mediafx.StateNull)
		}

		s.wg.Wait()

		for idx, g := range s.gamepads {
			if err := g.Close(); err != nil {
				s.log.Warn("close gamepad socket failed", "index", idx, "error", err)
			}
		}
		s.gamepads = make(map[int]*gamepad.Server)

		if s.webrtc != nil {
			_ = s.webrtc.Close()
		}
		if s.wsConn != nil {
			_ = s.wsConn.Close()
		}
	})
	return s.closeErr
}
