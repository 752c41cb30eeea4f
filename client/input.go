package client

// MouseButton identifies which button produced a click.
type MouseButton int

const (
	ButtonLeft MouseButton = iota
	ButtonRight
)

// ClickEvent is one mouse click in screen coordinates.
type ClickEvent struct {
	X, Y   float64
	Button MouseButton
}

// KeyEvent is one key press.
type KeyEvent struct {
	Key string
}

// MoveEvent is one pointer movement in screen coordinates.
type MoveEvent struct {
	X, Y float64
}

// InputEvents is the boundary between platform input capture and the command
// layer. Implementations surface raw interaction streams and never touch
// game state themselves; translating events into commands is the consumer's
// job.
type InputEvents interface {
	Clicks() <-chan ClickEvent
	Keys() <-chan KeyEvent
	Moves() <-chan MoveEvent
}

// NewNopInput returns an InputEvents that never emits. Its channels are nil,
// so receives block forever; it suits select-based consumers that also wait
// on other sources.
func NewNopInput() InputEvents {
	return nopInput{}
}

type nopInput struct{}

func (nopInput) Clicks() <-chan ClickEvent { return nil }
func (nopInput) Keys() <-chan KeyEvent     { return nil }
func (nopInput) Moves() <-chan MoveEvent   { return nil }
