// Package xinput specifies the keyboard/pointer injection surface the
// input router drives. The X11 server and uinput kernel device are
// external collaborators; this package only defines the interfaces and two
// concrete backends (direct X11 synthetic events, and a packed Unix-socket
// protocol for a uinput bridge process).
package xinput

// Keyboard injects key press/release events by X11 keysym.
type Keyboard interface {
	KeyDown(keysym uint32) error
	KeyUp(keysym uint32) error
}

// Pointer injects mouse motion, button, and scroll events.
type Pointer interface {
	MoveAbsolute(x, y int) error
	MoveRelative(dx, dy int) error
	Button(button int, down bool) error
	Scroll(direction int, magnitude int) error
}

// Injector combines Keyboard and Pointer, the full surface the input
// router needs from whichever backend is configured.
type Injector interface {
	Keyboard
	Pointer
}
