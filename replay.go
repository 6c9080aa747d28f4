package atm

// Replay folds a sequence of events over a starting state and returns the
// final state. Because NextState is pure, replaying the same events over
// the same start always lands on the same state.
func Replay(start Machine, events ...Event) Machine {
	return ReplayWith(DefaultHasher, start, events...)
}

// ReplayWith is Replay with an explicit Hasher.
func ReplayWith(h Hasher, start Machine, events ...Event) Machine {
	m := start
	for _, e := range events {
		m = NextStateWith(h, m, e)
	}
	return m
}

// Trace is Replay keeping every intermediate state, starting state
// included: Trace(start, events...)[i] is the state after the first i
// events. It is the time-travel view of a session.
func Trace(start Machine, events ...Event) []Machine {
	return TraceWith(DefaultHasher, start, events...)
}

// TraceWith is Trace with an explicit Hasher.
func TraceWith(h Hasher, start Machine, events ...Event) []Machine {
	states := make([]Machine, 0, len(events)+1)
	states = append(states, start)
	m := start
	for _, e := range events {
		m = NextStateWith(h, m, e)
		states = append(states, m)
	}
	return states
}
