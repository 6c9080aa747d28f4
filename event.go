package atm

// Event is something you can do to the ATM: swipe a card or press a key.
//
// The set is closed; SwipeCard and PressKey are the only implementations.
type Event interface {
	event()
}

// SwipeCard presents a card to the machine. The attached value is the
// fingerprint of the PIN that should be keyed in on the keypad next.
type SwipeCard struct {
	Fingerprint uint64
}

// PressKey presses a single key on the keypad.
type PressKey struct {
	Key Key
}

func (SwipeCard) event() {}
func (PressKey) event()  {}

var (
	_ Event = SwipeCard{}
	_ Event = PressKey{}
)
