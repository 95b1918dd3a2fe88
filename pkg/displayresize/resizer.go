// Package displayresize drives the xrandr/cvt/xfconf toolchain to resize
// the X display to a client-requested resolution: parsing current modes,
// clamping to a per-screen cap, generating and registering a new modeline
// when the target isn't already advertised, and switching the output to
// it.
package displayresize

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/selkies-project/selkies-streamer-core/pkg/exectool"
	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
)

// Resolution is a target or current display mode.
type Resolution struct {
	Width, Height int
}

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// Runner abstracts the xrandr/cvt subprocess invocations so tests can
// substitute canned output instead of shelling out to real X11 tooling.
type Runner interface {
	XrandrQuery(ctx context.Context) (string, error)
	CvtModeline(ctx context.Context, w, h, refresh int) (string, error)
	XrandrNewMode(ctx context.Context, name, modeline string) error
	XrandrAddMode(ctx context.Context, screen, name string) error
	XrandrSetMode(ctx context.Context, screen, name string) error
}

// execRunner is the production Runner.
type execRunner struct{}

func (execRunner) XrandrQuery(ctx context.Context) (string, error) {
	out, err := exectool.Run(ctx, exectool.DefaultTimeout, "xrandr", "--query")
	return string(out), err
}

func (execRunner) CvtModeline(ctx context.Context, w, h, refresh int) (string, error) {
	out, err := exectool.Run(ctx, exectool.DefaultTimeout, "cvt", "-r",
		strconv.Itoa(w), strconv.Itoa(h), strconv.Itoa(refresh))
	return string(out), err
}

func (execRunner) XrandrNewMode(ctx context.Context, name, modeline string) error {
	fields := strings.Fields(modeline)
	args := append([]string{"--newmode", name}, fields...)
	_, err := exectool.Run(ctx, exectool.DefaultTimeout, "xrandr", args...)
	return err
}

func (execRunner) XrandrAddMode(ctx context.Context, screen, name string) error {
	_, err := exectool.Run(ctx, exectool.DefaultTimeout, "xrandr", "--addmode", screen, name)
	return err
}

func (execRunner) XrandrSetMode(ctx context.Context, screen, name string) error {
	_, err := exectool.Run(ctx, exectool.DefaultTimeout, "xrandr", "--output", screen, "--mode", name)
	return err
}

// NewExecRunner returns the production Runner backed by real xrandr/cvt
// invocations.
func NewExecRunner() Runner { return execRunner{} }

// Resizer drives the 5-step resize algorithm in spec.md §4.9.
type Resizer struct {
	runner Runner
	log    *logger.Logger
}

// New creates a Resizer. Pass nil to use the production xrandr/cvt runner.
func New(log *logger.Logger, runner Runner) *Resizer {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Resizer{runner: runner, log: log}
}

var (
	connectedScreenRe = regexp.MustCompile(`(?m)^(\S+) connected`)
	currentModeRe     = regexp.MustCompile(`(?m)^\s*(\d+)x(\d+)\S*\s+[\d.]+\*`)
	modeLineRe        = regexp.MustCompile(`(?m)^\s*(\d+)x(\d+)`)
	modelineFieldRe   = regexp.MustCompile(`(?m)Modeline\s+"([^"]+)"\s+(.*)$`)
)

// parsed holds the state xrandr --query yields for the resize decision.
type parsed struct {
	screen  string
	current Resolution
	modes   map[Resolution]bool
}

func parseXrandr(output string) (parsed, error) {
	m := connectedScreenRe.FindStringSubmatch(output)
	if m == nil {
		return parsed{}, fmt.Errorf("%w: no connected screen found in xrandr output", exectool.ErrExternalTool)
	}
	screen := m[1]

	modes := make(map[Resolution]bool)
	var current Resolution
	for _, line := range strings.Split(output, "\n") {
		if cm := currentModeRe.FindStringSubmatch(line); cm != nil {
			w, _ := strconv.Atoi(cm[1])
			h, _ := strconv.Atoi(cm[2])
			current = Resolution{Width: w, Height: h}
		}
		if mm := modeLineRe.FindStringSubmatch(line); mm != nil {
			w, _ := strconv.Atoi(mm[1])
			h, _ := strconv.Atoi(mm[2])
			modes[Resolution{Width: w, Height: h}] = true
		}
	}

	return parsed{screen: screen, current: current, modes: modes}, nil
}

// capFor returns the per-screen resolution cap per spec.md §4.9: a DVI
// output caps at 2560x1600, everything else at 7680x4320.
func capFor(screen string) Resolution {
	if strings.Contains(strings.ToUpper(screen), "DVI") {
		return Resolution{Width: 2560, Height: 1600}
	}
	return Resolution{Width: 7680, Height: 4320}
}

// clamp shrinks target by repeated 0.9999 multiplicative steps until it
// fits within cap, then rounds up to the nearest even pixel count in each
// dimension.
func clamp(target, cap Resolution) Resolution {
	w, h := float64(target.Width), float64(target.Height)
	for w > float64(cap.Width) || h > float64(cap.Height) {
		w *= 0.9999
		h *= 0.9999
	}
	return Resolution{Width: roundUpEven(w), Height: roundUpEven(h)}
}

func roundUpEven(v float64) int {
	n := int(math.Ceil(v))
	if n%2 != 0 {
		n++
	}
	return n
}

// FitRes is the pure clamp-and-round helper exercised directly by tests
// (spec.md §8 property 7): returns pixel-even dimensions <= (maxW, maxH),
// idempotent when already in range.
func FitRes(w, h, maxW, maxH int) Resolution {
	return clamp(Resolution{Width: w, Height: h}, Resolution{Width: maxW, Height: maxH})
}

// parseModeline extracts the mode name and modeline fields from cvt -r's
// output, e.g. `Modeline "1920x1080_60.00"  173.00  1920 2048 2248 2576  1080 1083 1088 1120 -hsync +vsync`.
func parseModeline(cvtOutput string) (name, fields string, err error) {
	m := modelineFieldRe.FindStringSubmatch(cvtOutput)
	if m == nil {
		return "", "", fmt.Errorf("%w: could not parse cvt Modeline output", exectool.ErrExternalTool)
	}
	return m[1], strings.TrimSpace(m[2]), nil
}

// Resize implements the 5-step algorithm: parse current state, clamp the
// target, no-op if already current, generate+register a modeline if
// needed, then switch the output. Any subprocess failure aborts with
// exectool.ErrExternalTool.
func (r *Resizer) Resize(ctx context.Context, target Resolution) error {
	queryOut, err := r.runner.XrandrQuery(ctx)
	if err != nil {
		return err
	}
	state, err := parseXrandr(queryOut)
	if err != nil {
		return err
	}

	clamped := clamp(target, capFor(state.screen))

	if clamped == state.current {
		r.log.DebugPipeline("display already at target resolution", "resolution", clamped.String())
		return nil
	}

	name := clamped.String()
	if !state.modes[clamped] {
		cvtOut, err := r.runner.CvtModeline(ctx, clamped.Width, clamped.Height, 60)
		if err != nil {
			return err
		}
		modeName, fields, err := parseModeline(cvtOut)
		if err != nil {
			return err
		}
		name = modeName
		if err := r.runner.XrandrNewMode(ctx, name, fields); err != nil {
			return err
		}
		if err := r.runner.XrandrAddMode(ctx, state.screen, name); err != nil {
			return err
		}
	}

	if err := r.runner.XrandrSetMode(ctx, state.screen, name); err != nil {
		return err
	}

	r.log.Info("display resized", "screen", state.screen, "resolution", clamped.String())
	return nil
}
