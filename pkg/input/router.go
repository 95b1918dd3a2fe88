// Package input implements the textual wire-protocol router: it parses the
// comma-delimited op codes the client sends over the data channel or
// WebSocket control stream and dispatches them to an xinput.Injector, a
// gamepad mapper, or session-level callbacks (resolution, framerate,
// clipboard, stats requests).
//
// The dispatch table is a tagged-variant map rather than a long if/else
// chain: every op the wire protocol defines gets one entry, keeping the
// router's size linear in the number of ops instead of the number of
// call sites.
package input

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/selkies-project/selkies-streamer-core/pkg/exectool"
	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
	"github.com/selkies-project/selkies-streamer-core/pkg/xinput"
)

var resolutionPattern = regexp.MustCompile(`^\d+x\d+$`)

// ErrProtocol indicates a malformed or unrecognized wire message; logged
// and dropped, never fatal.
type ErrProtocol struct{ Reason string }

func (e *ErrProtocol) Error() string { return "input protocol error: " + e.Reason }

// keysym60 is replaced by keysym60EmittedKeysym (44) on every key down and
// up (kd, ku, kr) before injection. No keymap lookup is made: the
// replacement does not depend on which keycode the local keymap gives
// keysym 60, and keysym60RemappedKeycode is not used by the router.
const keysym60 = 60
const keysym60RemappedKeycode = 94
const keysym60EmittedKeysym = 44

// Callbacks covers everything the router can trigger besides direct
// keyboard/pointer injection.
type Callbacks struct {
	SetResolution   func(w, h int)
	SetFramerate    func(fps int)
	SetVideoBitrateKbps func(kbps int)
	SetAudioBitrateKbps func(kbps int)
	JoystickConnect    func(index int, name string, numButtons, numAxes int)
	JoystickDisconnect func(index int)
	JoystickButton     func(index int, button int, value float64)
	JoystickAxis       func(index int, axis int, value float64)
	ClipboardWrite     func(base64Payload string)
	RequestClipboardRead func()
	Ping               func()
	RequestStatsVideo  func(statsJSON string)
	RequestStatsAudio  func(statsJSON string)
	SetEnableResize    func(enabled bool, resolution string)
}

// Router dispatches wire-protocol ops to an injector and the session's
// callbacks. One Router is owned by exactly one session/client.
type Router struct {
	mu         sync.Mutex
	injector   xinput.Injector
	cb         Callbacks
	log        *logger.Logger
	buttonMask uint8
	scrollMagnitude int
	typeText   func(ctx context.Context, text string) error
}

// New creates a Router. scrollMagnitude is how many wheel press/release
// pairs are emitted per mask-bit transition (default 1 if 0 is passed).
func New(injector xinput.Injector, cb Callbacks, log *logger.Logger, scrollMagnitude int) *Router {
	if scrollMagnitude <= 0 {
		scrollMagnitude = 1
	}
	return &Router{
		injector:        injector,
		cb:              cb,
		log:             log,
		scrollMagnitude: scrollMagnitude,
		typeText:        typeTextExec,
	}
}

// typeTextExec shells out to xdotool type, matching the original
// implementation's "co end" handler. A missing binary or non-zero exit is
// logged and dropped, never fatal.
func typeTextExec(ctx context.Context, text string) error {
	_, err := exectool.Run(ctx, exectool.DefaultTimeout, "xdotool", "type", text)
	return err
}

// SetTypeTextForTest overrides the xdotool invocation; exported for use by
// external test packages only.
func SetTypeTextForTest(r *Router, fn func(ctx context.Context, text string) error) {
	r.typeText = fn
}

// Dispatch parses and routes one wire-protocol message.
func (r *Router) Dispatch(msg string) error {
	fields := strings.Split(msg, ",")
	op := fields[0]
	args := fields[1:]

	r.log.DebugInputOp(op, args)

	switch op {
	case "kd":
		return r.handleKey(args, true)
	case "ku":
		return r.handleKey(args, false)
	case "kr": // key repeat: treat as a down+up pair
		if err := r.handleKey(args, true); err != nil {
			return err
		}
		return r.handleKey(args, false)
	case "m":
		return r.handleMove(args, false)
	case "m2":
		return r.handleMove(args, true)
	case "p":
		return r.handleButtonMask(args)
	case "vb":
		return r.handleBitrate(args, r.cb.SetVideoBitrateKbps)
	case "ab":
		return r.handleBitrate(args, r.cb.SetAudioBitrateKbps)
	case "js":
		return r.handleJoystick(args)
	case "cr":
		if r.cb.RequestClipboardRead != nil {
			r.cb.RequestClipboardRead()
		}
		return nil
	case "cw":
		if len(args) < 1 {
			return &ErrProtocol{Reason: "cw missing payload"}
		}
		if r.cb.ClipboardWrite != nil {
			r.cb.ClipboardWrite(args[0])
		}
		return nil
	case "r":
		return r.handleResolution(args)
	case "s":
		// the router checks that an argument is present and otherwise
		// ignores the op: no callback is invoked and no setting changes.
		if len(args) < 1 {
			return &ErrProtocol{Reason: "s missing argument"}
		}
		return nil
	case "pong":
		if r.cb.Ping != nil {
			r.cb.Ping()
		}
		return nil
	case "_arg_fps":
		return r.handleIntArg(args, r.cb.SetFramerate)
	case "_arg_resize":
		return r.handleEnableResize(args)
	case "_f":
		if r.cb.SetFramerate == nil || len(args) < 1 {
			return &ErrProtocol{Reason: "_f missing argument"}
		}
		return r.handleIntArg(args, r.cb.SetFramerate)
	case "_l":
		return nil // latency probe acknowledgement, no-op besides logging
	case "_stats_video":
		if r.cb.RequestStatsVideo != nil {
			r.cb.RequestStatsVideo(strings.Join(args, ","))
		}
		return nil
	case "_stats_audio":
		if r.cb.RequestStatsAudio != nil {
			r.cb.RequestStatsAudio(strings.Join(args, ","))
		}
		return nil
	case "co":
		if len(args) < 2 || args[0] != "end" {
			return &ErrProtocol{Reason: "unrecognized co subcommand"}
		}
		if err := r.typeText(context.Background(), args[1]); err != nil {
			r.log.Warn("xdotool type failed", "error", err)
		}
		return nil
	default:
		return &ErrProtocol{Reason: fmt.Sprintf("unknown op %q", op)}
	}
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

func (r *Router) handleKey(args []string, down bool) error {
	if len(args) < 1 {
		return &ErrProtocol{Reason: "key op missing keysym"}
	}
	keysym, err := parseUint32(args[0])
	if err != nil {
		return &ErrProtocol{Reason: "invalid keysym"}
	}
	if keysym == keysym60 {
		keysym = keysym60EmittedKeysym
	}
	if down {
		return r.injector.KeyDown(keysym)
	}
	return r.injector.KeyUp(keysym)
}

func (r *Router) handleMove(args []string, relative bool) error {
	if len(args) < 2 {
		return &ErrProtocol{Reason: "move op missing coordinates"}
	}
	x, err1 := strconv.Atoi(args[0])
	y, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return &ErrProtocol{Reason: "invalid move coordinates"}
	}
	if relative {
		return r.injector.MoveRelative(x, y)
	}
	return r.injector.MoveAbsolute(x, y)
}

// handleButtonMask diffs the incoming button+wheel bitmask against the
// previously stored mask: bits 0/1/2 map to left/middle/right button
// press-or-release transitions, bits 3/4 map to wheel-up/down and are
// replayed scrollMagnitude times per transition, matching the original
// wire protocol's encoding.
func (r *Router) handleButtonMask(args []string) error {
	if len(args) < 1 {
		return &ErrProtocol{Reason: "p missing mask"}
	}
	mask64, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return &ErrProtocol{Reason: "invalid button mask"}
	}
	mask := uint8(mask64)

	r.mu.Lock()
	prev := r.buttonMask
	r.buttonMask = mask
	r.mu.Unlock()

	diff := prev ^ mask
	buttonBits := map[uint8]int{1 << 0: 1, 1 << 1: 2, 1 << 2: 3}
	for bit, button := range buttonBits {
		if diff&bit != 0 {
			down := mask&bit != 0
			if err := r.injector.Button(button, down); err != nil {
				return err
			}
		}
	}

	if diff&(1<<3) != 0 && mask&(1<<3) != 0 {
		if err := r.injector.Scroll(1, r.scrollMagnitude); err != nil {
			return err
		}
	}
	if diff&(1<<4) != 0 && mask&(1<<4) != 0 {
		if err := r.injector.Scroll(-1, r.scrollMagnitude); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) handleBitrate(args []string, setter func(int)) error {
	if len(args) < 1 || setter == nil {
		return &ErrProtocol{Reason: "bitrate op missing value"}
	}
	kbps, err := strconv.Atoi(args[0])
	if err != nil {
		return &ErrProtocol{Reason: "invalid bitrate"}
	}
	setter(kbps)
	return nil
}

func (r *Router) handleIntArg(args []string, setter func(int)) error {
	if len(args) < 1 || setter == nil {
		return &ErrProtocol{Reason: "missing integer argument"}
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return &ErrProtocol{Reason: "invalid integer argument"}
	}
	setter(v)
	return nil
}

func (r *Router) handleResolution(args []string) error {
	if len(args) < 1 || r.cb.SetResolution == nil {
		return &ErrProtocol{Reason: "resize missing argument"}
	}
	parts := strings.Split(args[0], "x")
	if len(parts) != 2 {
		return &ErrProtocol{Reason: "invalid resolution format"}
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return &ErrProtocol{Reason: "invalid resolution values"}
	}
	w += w % 2
	h += h % 2
	r.cb.SetResolution(w, h)
	return nil
}

// handleEnableResize parses "_arg_resize,<enabled>,<WxH>": toggles
// automatic resize and, when the resolution is well-formed, rounds each
// dimension up to even and passes it along; a malformed resolution still
// toggles enabled but reports no resolution, matching the original
// implementation's validation.
func (r *Router) handleEnableResize(args []string) error {
	if len(args) != 2 || r.cb.SetEnableResize == nil {
		return &ErrProtocol{Reason: "_arg_resize missing enabled/resolution"}
	}
	enabled := strings.EqualFold(args[0], "true")
	res := args[1]
	if !resolutionPattern.MatchString(res) {
		r.cb.SetEnableResize(enabled, "")
		return nil
	}
	parts := strings.Split(res, "x")
	w, _ := strconv.Atoi(parts[0])
	h, _ := strconv.Atoi(parts[1])
	w += w % 2
	h += h % 2
	r.cb.SetEnableResize(enabled, fmt.Sprintf("%dx%d", w, h))
	return nil
}

// handleJoystick parses "js c/d/b/a,<index>,..." sub-commands: connect,
// disconnect, button, axis.
func (r *Router) handleJoystick(args []string) error {
	if len(args) < 2 {
		return &ErrProtocol{Reason: "js missing subcommand/index"}
	}
	sub := args[0]
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return &ErrProtocol{Reason: "invalid joystick index"}
	}

	switch sub {
	case "c":
		if len(args) < 5 {
			return &ErrProtocol{Reason: "js c missing name/numButtons/numAxes"}
		}
		numButtons, err1 := strconv.Atoi(args[3])
		numAxes, err2 := strconv.Atoi(args[4])
		if err1 != nil || err2 != nil {
			return &ErrProtocol{Reason: "invalid js c counts"}
		}
		if r.cb.JoystickConnect != nil {
			r.cb.JoystickConnect(index, args[2], numButtons, numAxes)
		}
	case "d":
		if r.cb.JoystickDisconnect != nil {
			r.cb.JoystickDisconnect(index)
		}
	case "b":
		if len(args) < 4 {
			return &ErrProtocol{Reason: "js b missing button/value"}
		}
		button, err1 := strconv.Atoi(args[2])
		value, err2 := strconv.ParseFloat(args[3], 64)
		if err1 != nil || err2 != nil {
			return &ErrProtocol{Reason: "invalid js b button/value"}
		}
		if r.cb.JoystickButton != nil {
			r.cb.JoystickButton(index, button, value)
		}
	case "a":
		if len(args) < 4 {
			return &ErrProtocol{Reason: "js a missing axis/value"}
		}
		axis, err1 := strconv.Atoi(args[2])
		value, err2 := strconv.ParseFloat(args[3], 64)
		if err1 != nil || err2 != nil {
			return &ErrProtocol{Reason: "invalid js a axis/value"}
		}
		if r.cb.JoystickAxis != nil {
			r.cb.JoystickAxis(index, axis, value)
		}
	default:
		return &ErrProtocol{Reason: "unrecognized js subcommand"}
	}
	return nil
}
