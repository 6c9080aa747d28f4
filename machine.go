package atm

// Machine is the complete state of the ATM: how much cash is inside, the
// authentication phase, and every key pressed since the last Enter.
//
// Machine is a plain value. NextState never mutates its input, so callers
// can keep any snapshot they like — undo, replay and property testing all
// fall out of that for free. Two Machine values compare equal when their
// cash, phase and register contents match.
type Machine struct {
	// CashInside is how much cash is left in the machine. It never goes
	// negative and only ever decreases, via withdrawal.
	CashInside uint64
	// Auth is the machine's authentication phase.
	Auth Auth
	// Register holds the keys pressed since the last Enter. It is empty
	// whenever Auth is Waiting.
	Register []Key
}

// New returns a Machine holding the given amount of cash, waiting for a
// card swipe.
func New(cashInside uint64) Machine {
	return Machine{CashInside: cashInside}
}

// NextState applies one event to the machine and returns the resulting
// state, verifying PIN entries with DefaultHasher.
//
// It is total: every event has a defined outcome in every phase, nothing
// fails and nothing panics. Out-of-order input is policy, not error —
// keys pressed before a swipe are ignored, a second swipe mid-session is
// ignored, a wrong PIN returns the card, and an over-withdrawal dispenses
// whatever cash remains.
func NextState(m Machine, e Event) Machine {
	return NextStateWith(DefaultHasher, m, e)
}

// NextStateWith is NextState with an explicit Hasher for verifying the
// keyed-in PIN against the fingerprint presented at swipe. A nil Hasher
// falls back to DefaultHasher.
func NextStateWith(h Hasher, m Machine, e Event) Machine {
	if h == nil {
		h = DefaultHasher
	}
	switch {
	case m.Auth.IsWaiting():
		if swipe, ok := e.(SwipeCard); ok {
			m.Auth = Authenticating(swipe.Fingerprint)
		}
		return m

	case m.Auth.IsAuthenticating():
		press, ok := e.(PressKey)
		if !ok {
			// A session is already in progress; ignore the swipe.
			return m
		}
		if press.Key != KeyEnter {
			m.Register = appendKey(m.Register, press.Key)
			return m
		}
		expected, _ := m.Auth.Fingerprint()
		if h.Fingerprint(m.Register) == expected {
			m.Auth = Authenticated()
		} else {
			// Wrong PIN: return the card, no retry within the session.
			m.Auth = Waiting()
		}
		m.Register = nil
		return m

	default: // Authenticated
		press, ok := e.(PressKey)
		if !ok {
			return m
		}
		if press.Key != KeyEnter {
			m.Register = appendKey(m.Register, press.Key)
			return m
		}
		m.CashInside -= min(amount(m.Register), m.CashInside)
		m.Auth = Waiting()
		m.Register = nil
		return m
	}
}

// appendKey appends without sharing the input's backing array, so the
// returned state grows its register independently of the snapshot it came
// from.
func appendKey(register []Key, k Key) []Key {
	out := make([]Key, len(register), len(register)+1)
	copy(out, register)
	return append(out, k)
}

// amount reads the register as a base-10 withdrawal amount, one digit per
// key. A register with no digits requests nothing.
func amount(register []Key) uint64 {
	var n uint64
	for _, k := range register {
		if d, ok := k.Digit(); ok {
			n = n*10 + d
		}
	}
	return n
}
