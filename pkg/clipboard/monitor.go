// Package clipboard implements the xsel-backed clipboard bridge: a poller
// that detects outbound clipboard changes and forwards them over the
// control channel, and a writer for inbound clipboard requests from the
// client. Both directions are gated by independent enable flags (a
// deployment may allow only one direction).
package clipboard

import (
	"context"
	"time"

	"github.com/selkies-project/selkies-streamer-core/pkg/exectool"
	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
)

// pollInterval is how often the outbound monitor checks the clipboard for
// changes.
const pollInterval = 500 * time.Millisecond

// Runner abstracts the two xsel invocations this package needs, so tests
// can substitute a fake clipboard without shelling out.
type Runner interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, text string) error
}

// execRunner is the production Runner, shelling out to xsel with a bounded
// timeout per spec.md §4.8.
type execRunner struct{}

func (execRunner) Read(ctx context.Context) (string, error) {
	out, err := exectool.Run(ctx, exectool.DefaultTimeout, "xsel", "--clipboard", "--output")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (execRunner) Write(ctx context.Context, text string) error {
	return exectool.RunStdin(ctx, exectool.DefaultTimeout, text, "xsel", "--clipboard", "--input")
}

// NewExecRunner returns the production Runner backed by the xsel CLI.
func NewExecRunner() Runner { return execRunner{} }

// Monitor polls the clipboard for outbound changes and exposes Write for
// inbound requests. Both directions are independently enabled per
// deployment policy.
type Monitor struct {
	runner          Runner
	log             *logger.Logger
	outboundEnabled bool
	inboundEnabled  bool

	last string
}

// New creates a Monitor. Pass nil runner in production to use the xsel CLI.
func New(log *logger.Logger, runner Runner, outboundEnabled, inboundEnabled bool) *Monitor {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Monitor{runner: runner, log: log, outboundEnabled: outboundEnabled, inboundEnabled: inboundEnabled}
}

// Run polls for outbound clipboard changes every 500ms until ctx is
// canceled, invoking onChange with the full new text whenever it differs
// from the last observed value. A no-op if outbound forwarding is disabled.
func (m *Monitor) Run(ctx context.Context, onChange func(text string)) {
	if !m.outboundEnabled {
		return
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			text, err := m.runner.Read(ctx)
			if err != nil {
				m.log.Warn("clipboard read failed", "error", err)
				continue
			}
			if text != m.last {
				m.last = text
				onChange(text)
			}
		}
	}
}

// Write pushes text to the clipboard if inbound writes are enabled.
// External-tool failures are logged and non-fatal.
func (m *Monitor) Write(ctx context.Context, text string) error {
	if !m.inboundEnabled {
		return nil
	}
	if err := m.runner.Write(ctx, text); err != nil {
		m.log.Warn("clipboard write failed", "error", err)
		return err
	}
	return nil
}
