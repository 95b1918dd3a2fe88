// Package bus implements the cooperative bus-polling loop: a single
// goroutine per session that drains both the video and audio pipelines'
// mediafx.Bus every 100ms and reacts to EOS/error/state-change/latency
// messages.
package bus

import (
	"context"
	"time"

	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
	"github.com/selkies-project/selkies-streamer-core/pkg/mediafx"
)

const pollInterval = 100 * time.Millisecond

// Callbacks lets the owning session react to bus events without this
// package depending on the session package.
type Callbacks struct {
	// OnFatal is called for EOS or an error message; the session must
	// tear itself down in response.
	OnFatal func(source string, err error)
	// OnSourceLost is called when a pipeline transitions PAUSED->READY
	// on the named source element, indicating capture was lost.
	OnSourceLost func(source string)
	// OnLatency is called on a LATENCY message; the handler typically
	// reprograms the pipeline's latency to 0.
	OnLatency func()
}

// Handler polls one or more pipelines' buses on a single goroutine.
type Handler struct {
	pipelines []mediafx.Pipeline
	cb        Callbacks
	log       *logger.Logger
}

// New creates a Handler over the given pipelines (typically the video and,
// in WebSocket mode, audio pipelines of one session).
func New(log *logger.Logger, cb Callbacks, pipelines ...mediafx.Pipeline) *Handler {
	return &Handler{pipelines: pipelines, cb: cb, log: log}
}

// Run blocks, polling every pipeline's bus on a fixed tick until ctx is
// canceled. Intended to be run in its own goroutine and stopped via
// context cancellation, per the session's cancellation contract.
func (h *Handler) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pollOnce()
		}
	}
}

func (h *Handler) pollOnce() {
	for _, pl := range h.pipelines {
		bus := pl.Bus()
		for {
			msg, ok := bus.Pop(0)
			if !ok {
				break
			}
			h.dispatch(msg)
		}
	}
}

func (h *Handler) dispatch(msg mediafx.Message) {
	switch msg.Kind {
	case mediafx.MsgEOS:
		h.log.Warn("pipeline EOS", "source", msg.Source)
		if h.cb.OnFatal != nil {
			h.cb.OnFatal(msg.Source, nil)
		}
	case mediafx.MsgError:
		h.log.Error("pipeline error", "source", msg.Source, "error", msg.Err)
		if h.cb.OnFatal != nil {
			h.cb.OnFatal(msg.Source, msg.Err)
		}
	case mediafx.MsgStateChanged:
		if msg.OldState == mediafx.StatePaused && msg.NewState == mediafx.StateReady {
			h.log.Warn("pipeline dropped to READY", "source", msg.Source)
			if h.cb.OnSourceLost != nil {
				h.cb.OnSourceLost(msg.Source)
			}
		}
	case mediafx.MsgLatency:
		h.log.DebugPipeline("latency message received")
		if h.cb.OnLatency != nil {
			h.cb.OnLatency()
		}
	}
}
