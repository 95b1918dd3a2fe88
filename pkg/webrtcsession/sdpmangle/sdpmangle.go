// Package sdpmangle applies a small set of idempotent text patches to
// locally-generated SDP offers/answers: retransmission timing for RTX
// payloads, H.264/H.265 fmtp parameters clients expect for hardware
// decoders, and Opus packet-time hints. The substitutions are regex passes
// over the raw SDP text (the framework that generated it does not expose a
// structured way to set these fields). Validate parses a result with
// pion/sdp/v3; Mangle does not call it.
package sdpmangle

import (
	"regexp"

	"github.com/pion/sdp/v3"
)

var (
	aptLine      = regexp.MustCompile(`(?m)^(a=fmtp:\d+ apt=\d+)(;rtx-time=\d+)?(\r?)$`)
	h26xFmtpLine = regexp.MustCompile(`(?m)^(a=fmtp:(\d+) )([^\r\n]*packetization-mode=[^\r\n]*)(\r?)$`)
	rtpmapH26x   = regexp.MustCompile(`(?m)^a=rtpmap:(\d+) (H264|H265)/90000$`)
	spropLine    = regexp.MustCompile(`(?m)^(a=fmtp:\d+ [^\r\n]*sprop-[^\r\n]*)(\r?\n|$)(a=ptime:10)?`)
)

// Mangle patches sdpText in place and returns the result. It is idempotent:
// calling Mangle(Mangle(x)) == Mangle(x).
func Mangle(sdpText string) string {
	out := addRTXTime(sdpText)
	out = addH26xParams(out)
	out = addOpusPtime(out)
	return out
}

func addRTXTime(s string) string {
	return aptLine.ReplaceAllString(s, "${1};rtx-time=125${3}")
}

var requiredH26xParams = []string{
	"profile-level-id=42e01f",
	"level-asymmetry-allowed=1",
	"sps-pps-idr-in-keyframe=1",
}

func addH26xParams(s string) string {
	return h26xFmtpLine.ReplaceAllStringFunc(s, func(match string) string {
		groups := h26xFmtpLine.FindStringSubmatch(match)
		prefix, params := groups[1], groups[3]
		for _, needed := range requiredH26xParams {
			key := needed[:indexOfEquals(needed)]
			if !regexp.MustCompile(regexp.QuoteMeta(key) + `=`).MatchString(params) {
				params += ";" + needed
			}
		}
		return prefix + params + groups[4]
	})
}

func indexOfEquals(s string) int {
	for i, c := range s {
		if c == '=' {
			return i
		}
	}
	return len(s)
}

func addOpusPtime(s string) string {
	return spropLine.ReplaceAllStringFunc(s, func(match string) string {
		groups := spropLine.FindStringSubmatch(match)
		if groups[3] != "" {
			return match
		}
		if groups[2] == "" {
			return groups[1] + "\r\na=ptime:10"
		}
		return groups[1] + groups[2] + "a=ptime:10" + groups[2]
	})
}

// Validate parses sdpText with pion/sdp/v3, confirming the mangling passes
// above left it as structurally valid SDP.
func Validate(sdpText string) error {
	var s sdp.SessionDescription
	return s.Unmarshal([]byte(sdpText))
}
