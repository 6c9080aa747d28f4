package atm

import "fmt"

// Key is a key on the ATM keypad.
//
// The keypad carries the digits one through four, plus Enter to submit
// whatever has been keyed in since the last Enter.
type Key int

const (
	KeyOne Key = iota + 1
	KeyTwo
	KeyThree
	KeyFour
	KeyEnter
)

// Digit returns the numeric value of a digit key, and whether the key is a
// digit at all. Enter reports false.
func (k Key) Digit() (uint64, bool) {
	if k >= KeyOne && k <= KeyFour {
		return uint64(k), true
	}
	return 0, false
}

func (k Key) String() string {
	switch k {
	case KeyOne:
		return "1"
	case KeyTwo:
		return "2"
	case KeyThree:
		return "3"
	case KeyFour:
		return "4"
	case KeyEnter:
		return "Enter"
	default:
		return fmt.Sprintf("Key(%d)", int(k))
	}
}
