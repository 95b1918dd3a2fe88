// Package encoder defines the EncoderProfile matrix: for each supported
// encoder, which plugins it requires, how raw video is converted into its
// input format, which RTP payloader family it uses, and the formulas for
// translating a requested bitrate/framerate/keyframe-interval into the
// encoder's own property names.
//
// Property names, "infinite GOP" sentinel values, and the VBV/CPB buffer
// formulas are taken from the reference GStreamer pipeline this project's
// encoder selection logic was distilled from.
package encoder

import (
	"fmt"
	"math"

	"github.com/selkies-project/selkies-streamer-core/pkg/mediafx"
)

// Profile identifies one supported encoder.
type Profile string

const (
	NVH264   Profile = "nvh264"
	NVH265   Profile = "nvh265"
	NVAV1    Profile = "nvav1"
	VAH264   Profile = "vah264"
	VAH265   Profile = "vah265"
	VAVP9    Profile = "vavp9"
	VAAV1    Profile = "vaav1"
	X264     Profile = "x264"
	OpenH264 Profile = "openh264"
	X265     Profile = "x265"
	VP8      Profile = "vp8"
	VP9      Profile = "vp9"
	SVTAV1   Profile = "svtav1"
	AV1      Profile = "av1"
	Rav1e    Profile = "rav1e"
)

// ConversionKind selects how raw display capture is converted before
// reaching the encoder's input pad.
type ConversionKind int

const (
	ConvCPUI420 ConversionKind = iota // videoconvert -> I420
	ConvCPUNV12                        // videoconvert -> NV12
	ConvNV                             // nvvideoconvert -> NVMM NV12
	ConvVA                             // vapostproc -> VAMemory NV12
)

// PayloaderFamily selects the RTP payloader used downstream of the encoder.
type PayloaderFamily int

const (
	PayloaderH264 PayloaderFamily = iota
	PayloaderH265
	PayloaderVP
	PayloaderAV1
)

// EncodeParams are the caller-supplied tuning values common to every
// profile; ProfileSpec.SetProperties translates them into the encoder's
// own property names and units.
type EncodeParams struct {
	VideoBitrateBps     int
	FramerateFPS        int
	KeyframeDistanceSec float64 // -1 means infinite GOP
	PacketLossPercent   int
	GPUIndex            int
}

// FECVideoBitrate applies the forward-error-correction bitrate reduction:
// reserving headroom so retransmitted/FEC-protected video still fits the
// nominal bitrate budget when loss is present.
func FECVideoBitrate(videoBitrateBps, lossPercent int) int {
	return int(float64(videoBitrateBps) / (1 + float64(lossPercent)/100))
}

// FECAudioBitrate applies the complementary audio bitrate increase under
// loss, to keep audio intelligible while video backs off.
func FECAudioBitrate(audioBitrateBps, lossPercent int) int {
	return int(float64(audioBitrateBps) * (1 + float64(lossPercent)/100))
}

// KeyframeDistanceFrames converts a keyframe interval in seconds into a
// frame-count GOP size, clamped to a sane floor and honoring -1 as
// "infinite" the same way every profile does.
func KeyframeDistanceFrames(framerate int, distanceSec float64) int {
	if distanceSec < 0 {
		return -1
	}
	frames := int(math.Round(float64(framerate) * distanceSec))
	if frames < 60 {
		frames = 60
	}
	return frames
}

// vbvBufferSize returns the VBV/CPB buffer size in the same units as
// bitrateBps, sized to one frame interval's worth of bits times a
// multiplier that widens for an infinite GOP (more drift to absorb between
// keyframes).
func vbvBufferSize(bitrateBps, framerate int, infiniteGOP bool) int {
	perFrame := int(math.Ceil(float64(bitrateBps) / float64(framerate)))
	if infiniteGOP {
		return int(float64(perFrame) * 1.5)
	}
	return int(float64(perFrame) * 3.0)
}

// ProfileSpec describes one encoder profile: what it needs to construct
// successfully, and how to translate EncodeParams into its properties.
type ProfileSpec struct {
	RequiredPlugins []string
	Conversion      ConversionKind
	Payloader       PayloaderFamily
	SetProperties   func(e mediafx.Element, p EncodeParams) error
}

// Specs is the full profile matrix.
var Specs = map[Profile]ProfileSpec{
	NVH264: {
		RequiredPlugins: []string{"nvh264enc", "nvvideoconvert"},
		Conversion:      ConvNV,
		Payloader:       PayloaderH264,
		SetProperties:   setNVH264,
	},
	NVH265: {
		RequiredPlugins: []string{"nvh265enc", "nvvideoconvert"},
		Conversion:      ConvNV,
		Payloader:       PayloaderH265,
		SetProperties:   setNVH265,
	},
	NVAV1: {
		RequiredPlugins: []string{"nvav1enc", "nvvideoconvert"},
		Conversion:      ConvNV,
		Payloader:       PayloaderAV1,
		SetProperties:   setNVAV1,
	},
	VAH264: {
		RequiredPlugins: []string{"vah264enc", "vapostproc"},
		Conversion:      ConvVA,
		Payloader:       PayloaderH264,
		SetProperties:   setVA("vah264enc"),
	},
	VAH265: {
		RequiredPlugins: []string{"vah265enc", "vapostproc"},
		Conversion:      ConvVA,
		Payloader:       PayloaderH265,
		SetProperties:   setVA("vah265enc"),
	},
	VAVP9: {
		RequiredPlugins: []string{"vavp9enc", "vapostproc"},
		Conversion:      ConvVA,
		Payloader:       PayloaderVP,
		SetProperties:   setVA("vavp9enc"),
	},
	VAAV1: {
		RequiredPlugins: []string{"vaav1enc", "vapostproc"},
		Conversion:      ConvVA,
		Payloader:       PayloaderAV1,
		SetProperties:   setVA("vaav1enc"),
	},
	X264: {
		RequiredPlugins: []string{"x264enc", "videoconvert"},
		Conversion:      ConvCPUI420,
		Payloader:       PayloaderH264,
		SetProperties:   setX264,
	},
	OpenH264: {
		RequiredPlugins: []string{"openh264enc", "videoconvert"},
		Conversion:      ConvCPUI420,
		Payloader:       PayloaderH264,
		SetProperties:   setOpenH264,
	},
	X265: {
		RequiredPlugins: []string{"x265enc", "videoconvert"},
		Conversion:      ConvCPUI420,
		Payloader:       PayloaderH265,
		SetProperties:   setX265,
	},
	VP8: {
		RequiredPlugins: []string{"vp8enc", "videoconvert"},
		Conversion:      ConvCPUI420,
		Payloader:       PayloaderVP,
		SetProperties:   setVPx("vp8enc"),
	},
	VP9: {
		RequiredPlugins: []string{"vp9enc", "videoconvert"},
		Conversion:      ConvCPUI420,
		Payloader:       PayloaderVP,
		SetProperties:   setVPx("vp9enc"),
	},
	SVTAV1: {
		RequiredPlugins: []string{"svtav1enc", "videoconvert"},
		Conversion:      ConvCPUNV12,
		Payloader:       PayloaderAV1,
		SetProperties:   setSVTAV1,
	},
	AV1: {
		RequiredPlugins: []string{"av1enc", "videoconvert"},
		Conversion:      ConvCPUI420,
		Payloader:       PayloaderAV1,
		SetProperties:   setAV1,
	},
	Rav1e: {
		RequiredPlugins: []string{"rav1enc", "videoconvert"},
		Conversion:      ConvCPUI420,
		Payloader:       PayloaderAV1,
		SetProperties:   setRav1e,
	},
}

// Spec looks up the ProfileSpec for a profile name, returning an error for
// anything not in the matrix (an unsupported encoder request from
// configuration, not a missing-plugin construction error).
func Spec(name string) (ProfileSpec, error) {
	spec, ok := Specs[Profile(name)]
	if !ok {
		return ProfileSpec{}, fmt.Errorf("unknown encoder profile %q", name)
	}
	return spec, nil
}

func setCommon(e mediafx.Element, props map[string]any) error {
	for k, v := range props {
		if err := e.SetProperty(k, v); err != nil {
			return fmt.Errorf("set %s=%v: %w", k, v, err)
		}
	}
	return nil
}

func setNVH264(e mediafx.Element, p EncodeParams) error {
	fec := FECVideoBitrate(p.VideoBitrateBps, p.PacketLossPercent)
	gop := KeyframeDistanceFrames(p.FramerateFPS, p.KeyframeDistanceSec)
	return setCommon(e, map[string]any{
		"bitrate":       fec / 1000,
		"rc-mode":       "cbr",
		"gop-size":      gop,
		"zerolatency":   true,
		"bframes":       0,
		"vbv-buffer-size": vbvBufferSize(fec, p.FramerateFPS, gop == -1),
		"gpu-id":        p.GPUIndex,
	})
}

func setNVH265(e mediafx.Element, p EncodeParams) error {
	return setNVH264(e, p) // nvh265enc shares nvh264enc's property names
}

func setNVAV1(e mediafx.Element, p EncodeParams) error {
	return setNVH264(e, p)
}

func setVA(elementName string) func(mediafx.Element, EncodeParams) error {
	return func(e mediafx.Element, p EncodeParams) error {
		fec := FECVideoBitrate(p.VideoBitrateBps, p.PacketLossPercent)
		gop := p.FramerateFPS // va uses a distinct infinite sentinel: 1024
		keyIntMax := 1024
		if p.KeyframeDistanceSec >= 0 {
			keyIntMax = KeyframeDistanceFrames(p.FramerateFPS, p.KeyframeDistanceSec)
		}
		_ = gop
		return setCommon(e, map[string]any{
			"bitrate":      fec / 1000,
			"rate-control": "cbr",
			"key-int-max":  keyIntMax,
			"cpb-size":     vbvBufferSize(fec, p.FramerateFPS, keyIntMax == 1024) / 1000,
		})
	}
}

func setX264(e mediafx.Element, p EncodeParams) error {
	fec := FECVideoBitrate(p.VideoBitrateBps, p.PacketLossPercent)
	gop := KeyframeDistanceFrames(p.FramerateFPS, p.KeyframeDistanceSec)
	return setCommon(e, map[string]any{
		"bitrate":        fec / 1000,
		"pass":           "cbr",
		"byte-stream":    true,
		"threads":        4,
		"key-int-max":    orInfinite(gop),
		"bframes":        0,
		"b-adapt":        false,
		"vbv-buf-capacity": vbvBufferSize(fec, p.FramerateFPS, gop == -1),
		"tune":           "zerolatency",
	})
}

func orInfinite(gop int) int {
	if gop == -1 {
		return 2147483647 // x264enc's practical "no forced keyframe" ceiling
	}
	return gop
}

func setOpenH264(e mediafx.Element, p EncodeParams) error {
	fec := FECVideoBitrate(p.VideoBitrateBps, p.PacketLossPercent)
	gop := KeyframeDistanceFrames(p.FramerateFPS, p.KeyframeDistanceSec)
	return setCommon(e, map[string]any{
		"bitrate":     fec, // openh264enc takes bits/sec, not kbit/sec
		"rate-control": "bitrate",
		"gop-size":    orInfinite(gop),
		"multi-thread": 4,
	})
}

func setX265(e mediafx.Element, p EncodeParams) error {
	fec := FECVideoBitrate(p.VideoBitrateBps, p.PacketLossPercent)
	gop := KeyframeDistanceFrames(p.FramerateFPS, p.KeyframeDistanceSec)
	return setCommon(e, map[string]any{
		"bitrate":  fec / 1000,
		"key-int-max": orInfinite(gop),
		"bframes": 0,
		"tune":    "zerolatency",
	})
}

func setVPx(elementName string) func(mediafx.Element, EncodeParams) error {
	return func(e mediafx.Element, p EncodeParams) error {
		fec := FECVideoBitrate(p.VideoBitrateBps, p.PacketLossPercent)
		gop := KeyframeDistanceFrames(p.FramerateFPS, p.KeyframeDistanceSec)
		return setCommon(e, map[string]any{
			"target-bitrate": fec,
			"end-usage":      "cbr",
			"keyframe-max-dist": orInfinite(gop),
			"deadline":       1, // realtime
			"cpu-used":       8,
			"lag-in-frames":  0,
		})
	}
}

func setSVTAV1(e mediafx.Element, p EncodeParams) error {
	fec := FECVideoBitrate(p.VideoBitrateBps, p.PacketLossPercent)
	gop := KeyframeDistanceFrames(p.FramerateFPS, p.KeyframeDistanceSec)
	return setCommon(e, map[string]any{
		"target-bitrate": fec,
		"rc":             1, // CBR
		"intra-period-length": orInfinite(gop) - 1,
	})
}

func setAV1(e mediafx.Element, p EncodeParams) error {
	fec := FECVideoBitrate(p.VideoBitrateBps, p.PacketLossPercent)
	gop := KeyframeDistanceFrames(p.FramerateFPS, p.KeyframeDistanceSec)
	return setCommon(e, map[string]any{
		"target-bitrate": fec * 1000,
		"end-usage":      "cbr",
		"keyframe-max-dist": orInfinite(gop),
		"cpu-used":       8,
	})
}

func setRav1e(e mediafx.Element, p EncodeParams) error {
	fec := FECVideoBitrate(p.VideoBitrateBps, p.PacketLossPercent)
	gop := KeyframeDistanceFrames(p.FramerateFPS, p.KeyframeDistanceSec)
	return setCommon(e, map[string]any{
		"bitrate":     fec,
		"speed-preset": 10,
		"max-key-frame-interval": orInfinite(gop),
		"low-latency": true,
	})
}

// SupportedForWebSocket reports whether a profile is allowed in the
// WebSocket fallback pipeline (appsink-terminated, no RTP payloader).
func SupportedForWebSocket(p Profile) bool {
	switch p {
	case X264, NVH264, VAH264, OpenH264:
		return true
	default:
		return false
	}
}
