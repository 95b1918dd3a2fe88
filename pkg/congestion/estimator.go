// Package congestion wires the Google Congestion Control bandwidth
// estimate callback into the video pipeline's runtime bitrate setter,
// seeding the estimator's min/max/starting bitrate from the current FEC
// audio bitrate and rate-limiting how often an estimate is allowed to
// actually reprogram the encoder.
package congestion

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/selkies-project/selkies-streamer-core/pkg/mediafx"
)

// BitrateSetter receives the video bitrate OnEstimate derives, in kbit/sec
// (the session adapts it to pipeline.VideoPipeline's bits/sec setter), kept
// as an interface so congestion doesn't import pipeline directly.
type BitrateSetter interface {
	SetVideoBitrate(kbps int, ccTriggered bool) error
}

// Estimator seeds and reacts to a GCC bandwidth estimator element.
type Estimator struct {
	element        mediafx.Element
	pipeline       BitrateSetter
	fecAudioBitrateBps int
	limiter        *rate.Limiter
}

// minInterval bounds how often a bandwidth estimate is allowed to
// reprogram the encoder, avoiding thrashing on every RTCP report.
const minInterval = 200 * time.Millisecond

// New seeds the estimator element's min/max/starting-bitrate properties
// from the initial video bitrate and the current FEC audio bitrate.
func New(element mediafx.Element, pipeline BitrateSetter, initialVideoBitrateBps, fecAudioBitrateBps int) *Estimator {
	e := &Estimator{
		element:            element,
		pipeline:           pipeline,
		fecAudioBitrateBps: fecAudioBitrateBps,
		limiter:            rate.NewLimiter(rate.Every(minInterval), 1),
	}
	e.seed(initialVideoBitrateBps)
	return e
}

// seed reprograms the estimator's {min, max, estimated} bitrate per
// spec.md §4.1's formula: min is the larger of a 100kbps floor or 10% of
// the video bitrate (both plus the FEC audio overhead), max is the full
// video-plus-FEC bitrate, and estimated starts at max.
func (e *Estimator) seed(videoBitrateBps int) {
	floor := 100_000 + e.fecAudioBitrateBps
	tenPercent := int(float64(videoBitrateBps)*0.1) + e.fecAudioBitrateBps
	min := floor
	if tenPercent > min {
		min = tenPercent
	}
	max := videoBitrateBps + e.fecAudioBitrateBps
	_ = e.element.SetProperty("min-bitrate", min)
	_ = e.element.SetProperty("max-bitrate", max)
	_ = e.element.SetProperty("estimated-bitrate", max)
}

// SetVideoBitrate reseeds the estimator when a non-CC-triggered bitrate
// change happens (a client request), so the estimator's starting point
// tracks the new target.
func (e *Estimator) SetVideoBitrate(bps int) {
	e.seed(bps)
}

// OnEstimate is the GCC callback: converts the estimated total bitrate
// into a video-only target by subtracting the FEC audio bitrate, then
// (rate-limited) reprograms the pipeline.
func (e *Estimator) OnEstimate(estimatedTotalBps int) {
	if !e.limiter.Allow() {
		return
	}
	videoBps := (estimatedTotalBps - e.fecAudioBitrateBps)
	if videoBps < 0 {
		videoBps = 0
	}
	_ = e.pipeline.SetVideoBitrate(videoBps/1000, true)
}

// SetFECAudioBitrate updates the audio bitrate subtracted from future
// estimates, called when the client requests a new audio bitrate and the
// audio FEC formula produces a new value.
func (e *Estimator) SetFECAudioBitrate(bps int) {
	e.fecAudioBitrateBps = bps
}
