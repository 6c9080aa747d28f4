package teller

import (
	"github.com/google/uuid"

	atm "github.com/tellerkit/go-atm"
)

// Entry is one line of the Teller's journal: the event applied and the
// machine state after it, tagged with the session in progress. Event is nil
// when the Teller itself reset the machine to return an idle card.
type Entry struct {
	Session uuid.UUID
	Event   atm.Event
	Machine atm.Machine
}

// Journal returns a copy of everything that happened, in order. Replaying
// a journal's events over the starting machine reproduces its states.
func (t *Teller) Journal() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.journal...)
}
