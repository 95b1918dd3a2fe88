// Package x11 is the default xinput.Injector backend: direct synthetic
// X11 event emission, the style pynput uses in the original implementation.
// The actual X11 connection is an external collaborator kept behind a
// small interface so this package can be exercised without a display.
package x11

import "fmt"

// Display is the minimal X11 connection surface this backend needs.
// A real implementation would wrap XTestFakeKeyEvent/XTestFakeMotionEvent
// (or an XGB/xgbutil connection); no such binding exists in this module
// since the X server itself is out of scope.
type Display interface {
	FakeKeyEvent(keysym uint32, press bool) error
	FakeMotionEvent(x, y int, relative bool) error
	FakeButtonEvent(button int, press bool) error
}

// Injector drives a Display to implement xinput.Injector.
type Injector struct {
	disp Display
}

// New wraps a Display connection.
func New(disp Display) *Injector {
	return &Injector{disp: disp}
}

func (i *Injector) KeyDown(keysym uint32) error { return i.disp.FakeKeyEvent(keysym, true) }
func (i *Injector) KeyUp(keysym uint32) error   { return i.disp.FakeKeyEvent(keysym, false) }

func (i *Injector) MoveAbsolute(x, y int) error { return i.disp.FakeMotionEvent(x, y, false) }
func (i *Injector) MoveRelative(dx, dy int) error { return i.disp.FakeMotionEvent(dx, dy, true) }

func (i *Injector) Button(button int, down bool) error {
	return i.disp.FakeButtonEvent(button, down)
}

// Scroll emits `magnitude` repeated button press/release pairs on the
// wheel-up (4) or wheel-down (5) X11 button, matching the original
// implementation's handling of scroll magnitude.
func (i *Injector) Scroll(direction int, magnitude int) error {
	button := 4
	if direction < 0 {
		button = 5
	}
	for n := 0; n < magnitude; n++ {
		if err := i.disp.FakeButtonEvent(button, true); err != nil {
			return fmt.Errorf("scroll press %d/%d: %w", n+1, magnitude, err)
		}
		if err := i.disp.FakeButtonEvent(button, false); err != nil {
			return fmt.Errorf("scroll release %d/%d: %w", n+1, magnitude, err)
		}
	}
	return nil
}
