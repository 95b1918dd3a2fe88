// Package pipeline builds the video and audio media pipeline graphs for
// both transport modes (WebRTC RTP payloaders, WebSocket appsink) over the
// pkg/mediafx element-graph abstraction, and exposes the runtime setters a
// session uses to react to client requests and congestion-control
// estimates.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/selkies-project/selkies-streamer-core/pkg/encoder"
	"github.com/selkies-project/selkies-streamer-core/pkg/mediafx"
)

// ErrConstruction is returned when a pipeline cannot be built: a required
// element factory is unavailable, or linking two elements fails. This is
// always fatal to the owning session.
var ErrConstruction = errors.New("pipeline construction failed")

var baseWebRTCPlugins = []string{
	"opus", "nice", "webrtc", "app", "dtls", "srtp", "rtp", "sctp",
	"rtpmanager", "ximagesrc",
}

// Params bundles the configuration a Builder needs to construct a video
// pipeline.
type Params struct {
	Profile           encoder.Profile
	Encode            encoder.EncodeParams
	PointerVisible    bool
	SourceElementName string // "x11" in WebRTC mode, "source" in WebSocket mode
}

// Builder constructs pipelines against an injected element factory — in
// production a real media framework binding, in tests pkg/mediafx/fake.
type Builder struct {
	Factory mediafx.ElementFactory
}

// NewBuilder creates a Builder bound to the given element factory.
func NewBuilder(factory mediafx.ElementFactory) *Builder {
	return &Builder{Factory: factory}
}

// VideoPipeline wraps a constructed mediafx.Pipeline along with typed
// references to the elements the runtime setters need to reach directly,
// avoiding re-querying the graph by name on every call.
type VideoPipeline struct {
	mu       sync.Mutex
	Pipeline mediafx.Pipeline
	Profile  encoder.Profile
	spec     encoder.ProfileSpec

	encoderElement mediafx.Element
	sourceElement  mediafx.Element
	current        encoder.EncodeParams
}

func (b *Builder) preflight(plugins []string) error {
	for _, name := range plugins {
		if _, err := b.Factory.Make(name, name+"0"); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConstruction, name, err)
		}
	}
	return nil
}

func conversionElementName(c encoder.ConversionKind) (factory string, capsMime string) {
	switch c {
	case encoder.ConvNV:
		return "nvvideoconvert", "video/x-raw(memory:NVMM)"
	case encoder.ConvVA:
		return "vapostproc", "video/x-raw(memory:VAMemory)"
	case encoder.ConvCPUNV12:
		return "videoconvert", "video/x-raw"
	default:
		return "videoconvert", "video/x-raw"
	}
}

func payloaderFactoryName(p encoder.PayloaderFamily) string {
	switch p {
	case encoder.PayloaderH264:
		return "rtph264pay"
	case encoder.PayloaderH265:
		return "rtph265pay"
	case encoder.PayloaderVP:
		return "rtpvp8pay"
	case encoder.PayloaderAV1:
		return "rtpav1pay"
	default:
		return "rtph264pay"
	}
}

// link adds and links elements in sequence, aborting on the first failure.
func link(pl mediafx.Pipeline, elements ...mediafx.Element) error {
	for i, e := range elements {
		if err := pl.Add(e); err != nil {
			return fmt.Errorf("%w: add %s: %v", ErrConstruction, e.Name(), err)
		}
		if i > 0 {
			if err := elements[i-1].Link(e); err != nil {
				return fmt.Errorf("%w: link %s -> %s: %v", ErrConstruction, elements[i-1].Name(), e.Name(), err)
			}
		}
	}
	return nil
}

// BuildWebRTCVideo constructs a video pipeline that terminates in an RTP
// payloader for use by pkg/webrtcsession.
func (b *Builder) BuildWebRTCVideo(newPipeline func() mediafx.Pipeline, p Params) (*VideoPipeline, error) {
	spec, err := encoder.Spec(string(p.Profile))
	if err != nil {
		return nil, err
	}

	plugins := append(append([]string{}, baseWebRTCPlugins...), spec.RequiredPlugins...)
	if err := b.preflight(plugins); err != nil {
		return nil, err
	}

	pl := newPipeline()

	src, err := b.Factory.Make("ximagesrc", p.SourceElementName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}
	_ = src.SetProperty("show-pointer", p.PointerVisible)
	_ = src.SetProperty("use-damage", false)

	queue1, err := b.Factory.Make("queue", "queue_pre_convert")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}

	convFactory, _ := conversionElementName(spec.Conversion)
	conv, err := b.Factory.Make(convFactory, convFactory+"0")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}

	encEl, err := b.Factory.Make(string(p.Profile)+"enc", string(p.Profile)+"enc0")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}
	if err := spec.SetProperties(encEl, p.Encode); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}

	pay, err := b.Factory.Make(payloaderFactoryName(spec.Payloader), "pay0")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}
	_ = pay.SetProperty("mtu", 1200)
	_ = pay.SetProperty("config-interval", -1)

	queue2, err := b.Factory.Make("queue", "queue_post_pay")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}

	if err := link(pl, src, queue1, conv, encEl, pay, queue2); err != nil {
		return nil, err
	}

	return &VideoPipeline{
		Pipeline:       pl,
		Profile:        p.Profile,
		spec:           spec,
		encoderElement: encEl,
		sourceElement:  src,
		current:        p.Encode,
	}, nil
}

// BuildWebSocketVideo constructs a video pipeline that terminates in an
// appsink, restricted to the profiles encoder.SupportedForWebSocket allows.
func (b *Builder) BuildWebSocketVideo(newPipeline func() mediafx.Pipeline, p Params) (*VideoPipeline, error) {
	if !encoder.SupportedForWebSocket(p.Profile) {
		return nil, fmt.Errorf("%w: profile %s not supported over WebSocket", ErrConstruction, p.Profile)
	}
	spec, err := encoder.Spec(string(p.Profile))
	if err != nil {
		return nil, err
	}

	plugins := append([]string{"ximagesrc", "appsink"}, spec.RequiredPlugins...)
	if err := b.preflight(plugins); err != nil {
		return nil, err
	}

	pl := newPipeline()

	src, err := b.Factory.Make("ximagesrc", "source")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}
	_ = src.SetProperty("show-pointer", p.PointerVisible)

	queue, err := b.Factory.Make("queue", "queue0")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}

	convFactory, _ := conversionElementName(spec.Conversion)
	conv, err := b.Factory.Make(convFactory, convFactory+"0")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}

	encEl, err := b.Factory.Make(string(p.Profile)+"enc", string(p.Profile)+"enc0")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}
	if err := spec.SetProperties(encEl, p.Encode); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}

	capsfilter, err := b.Factory.Make("capsfilter", "codec_caps")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}

	queue2, err := b.Factory.Make("queue", "queue1")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}

	sink, err := b.Factory.Make("appsink", "appsink0")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}
	_ = sink.SetProperty("sync", false)
	_ = sink.SetProperty("emit-signals", true)

	if err := link(pl, src, queue, conv, encEl, capsfilter, queue2, sink); err != nil {
		return nil, err
	}

	return &VideoPipeline{
		Pipeline:       pl,
		Profile:        p.Profile,
		spec:           spec,
		encoderElement: encEl,
		sourceElement:  src,
		current:        p.Encode,
	}, nil
}

// SetVideoBitrate reprograms the encoder's bitrate property at runtime.
// ccTriggered marks a change originating from the congestion controller's
// bandwidth estimate rather than a client request, which callers use to
// decide whether to also reseed the estimator.
func (vp *VideoPipeline) SetVideoBitrate(bps int, ccTriggered bool) error {
	vp.mu.Lock()
	defer vp.mu.Unlock()
	vp.current.VideoBitrateBps = bps
	return vp.spec.SetProperties(vp.encoderElement, vp.current)
}

// SetFramerate reprograms the source's framerate and, where the encoder
// exposes it, the encoder's GOP accordingly.
func (vp *VideoPipeline) SetFramerate(fps int) error {
	vp.mu.Lock()
	defer vp.mu.Unlock()
	vp.current.FramerateFPS = fps
	if err := vp.sourceElement.SetProperty("framerate", fps); err != nil {
		return err
	}
	return vp.spec.SetProperties(vp.encoderElement, vp.current)
}

// SetPointerVisible toggles whether the display capture source draws the
// cursor into the captured frame.
func (vp *VideoPipeline) SetPointerVisible(visible bool) error {
	vp.mu.Lock()
	defer vp.mu.Unlock()
	return vp.sourceElement.SetProperty("show-pointer", visible)
}

// CurrentBitrate returns the last bitrate applied via SetVideoBitrate or
// the value the pipeline was built with.
func (vp *VideoPipeline) CurrentBitrate() int {
	vp.mu.Lock()
	defer vp.mu.Unlock()
	return vp.current.VideoBitrateBps
}

// AudioPipeline is the (simpler, single-branch) audio counterpart, used
// only in WebSocket mode per the data model's WebSocket-only audio
// restriction.
type AudioPipeline struct {
	mu       sync.Mutex
	Pipeline mediafx.Pipeline
	encoder  mediafx.Element
	bitrate  int
}

// BuildAudio constructs the WebSocket-mode audio pipeline: pulsesrc
// -> audioconvert -> opusenc -> appsink.
func (b *Builder) BuildAudio(newPipeline func() mediafx.Pipeline, bitrateBps int) (*AudioPipeline, error) {
	if err := b.preflight([]string{"pulsesrc", "audioconvert", "opusenc", "appsink"}); err != nil {
		return nil, err
	}

	pl := newPipeline()
	src, _ := b.Factory.Make("pulsesrc", "audiosrc")
	conv, _ := b.Factory.Make("audioconvert", "audioconvert0")
	enc, err := b.Factory.Make("opusenc", "opusenc0")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}
	_ = enc.SetProperty("bitrate", bitrateBps)
	_ = enc.SetProperty("audio-type", "restricted-lowdelay")
	sink, _ := b.Factory.Make("appsink", "audio_appsink0")
	_ = sink.SetProperty("sync", false)
	_ = sink.SetProperty("emit-signals", true)

	if err := link(pl, src, conv, enc, sink); err != nil {
		return nil, err
	}

	return &AudioPipeline{Pipeline: pl, encoder: enc, bitrate: bitrateBps}, nil
}

// SetBitrate reprograms the audio encoder's bitrate, used when the client
// requests a new audio bitrate.
func (ap *AudioPipeline) SetBitrate(bps int) error {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.bitrate = bps
	return ap.encoder.SetProperty("bitrate", bps)
}
