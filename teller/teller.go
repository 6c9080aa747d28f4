// Package teller hosts the pure atm core in a concurrent world.
//
// A Teller owns one machine value and serializes the events of competing
// physical sessions against it. It also carries the side effects the core
// deliberately has none of: opening and closing sessions, returning the
// card when a session goes idle, driving the cash dispenser with retries,
// and journaling every transition. The core itself stays a pure function.
package teller

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	atm "github.com/tellerkit/go-atm"
)

// Dispenser pushes physical cash out of the machine. Implementations may
// fail transiently (a jam, a busy shutter); the Teller retries per its
// RetryOption.
type Dispenser interface {
	Dispense(amount uint64) error
}

// DispenserFunc adapts a plain function to the Dispenser interface.
type DispenserFunc func(amount uint64) error

func (f DispenserFunc) Dispense(amount uint64) error { return f(amount) }

// DefaultRetryOption retries a failed dispense a few times with exponential
// backoff before giving up.
var DefaultRetryOption = RetryOption{
	Attempts: 3,
}

// RetryOption customizes how the Teller retries a failed dispense.
type RetryOption struct {
	Attempts uint64          // 0 means no limit
	Backoff  backoff.BackOff // nil means a fresh exponential backoff per dispense
	Notify   backoff.Notify
	Timer    backoff.Timer
}

// Teller serializes sessions against one machine. Construct with New; the
// zero value is not usable.
type Teller struct {
	hasher      atm.Hasher
	clock       clock.Clock
	logger      *slog.Logger
	idleTimeout time.Duration
	dispenser   Dispenser
	retry       RetryOption

	mu        sync.Mutex
	machine   atm.Machine
	sessionID uuid.UUID
	idleTimer *clock.Timer
	journal   []Entry
}

// Option configures a Teller.
type Option func(*Teller)

// WithHasher sets the Hasher used to verify keyed-in PINs.
func WithHasher(h atm.Hasher) Option { return func(t *Teller) { t.hasher = h } }

// WithClock sets the clock used for the idle timer. Tests pass clock.Mock.
func WithClock(c clock.Clock) Option { return func(t *Teller) { t.clock = c } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(t *Teller) { t.logger = l } }

// WithIdleTimeout makes the Teller return the card of any session that sees
// no event for d. Zero (the default) disables the timer.
func WithIdleTimeout(d time.Duration) Option { return func(t *Teller) { t.idleTimeout = d } }

// WithDispenser sets the physical cash dispenser.
func WithDispenser(d Dispenser) Option { return func(t *Teller) { t.dispenser = d } }

// WithDispenseRetry sets the retry behavior for failed dispenses.
func WithDispenseRetry(opt RetryOption) Option { return func(t *Teller) { t.retry = opt } }

// New returns a Teller whose machine holds the given amount of cash and is
// waiting for a card swipe.
func New(cashInside uint64, opts ...Option) *Teller {
	t := &Teller{
		hasher:  atm.DefaultHasher,
		clock:   clock.New(),
		logger:  slog.Default(),
		retry:   DefaultRetryOption,
		machine: atm.New(cashInside),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Receipt describes what one event did to the machine.
type Receipt struct {
	// Session identifies the session the event belonged to, uuid.Nil when
	// no session was active.
	Session uuid.UUID
	// Before and After are the authentication phases around the event.
	Before atm.Auth
	After  atm.Auth
	// Dispensed is how much cash the event paid out, zero for everything
	// but a completed withdrawal.
	Dispensed uint64
	// DispenseErr is set when the dispenser kept failing after retries.
	// The machine state has already committed; recovery is out of band.
	DispenseErr error
}

// Apply feeds one event to the machine. Calls are serialized; each call is
// one transition of the pure core plus whatever side effects the transition
// implies: opening a session on swipe, dispensing cash on withdrawal,
// rearming or cancelling the idle timer.
func (t *Teller) Apply(e atm.Event) Receipt {
	t.mu.Lock()
	defer t.mu.Unlock()

	before := t.machine
	after := atm.NextStateWith(t.hasher, before, e)

	if before.Auth.IsWaiting() && after.Auth.IsAuthenticating() {
		t.sessionID = uuid.New()
		t.logger.Info("session opened", "session", t.sessionID)
	}

	r := Receipt{
		Session: t.sessionID,
		Before:  before.Auth,
		After:   after.Auth,
	}
	if delta := before.CashInside - after.CashInside; delta > 0 {
		r.Dispensed = delta
		r.DispenseErr = t.dispense(delta)
	}

	t.machine = after
	t.journal = append(t.journal, Entry{Session: t.sessionID, Event: e, Machine: after})

	if after.Auth.IsWaiting() {
		t.closeSessionLocked()
	} else {
		t.armIdleTimerLocked()
	}
	return r
}

// Machine returns a snapshot of the current machine state.
func (t *Teller) Machine() atm.Machine {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.machine
}

func (t *Teller) closeSessionLocked() {
	if t.idleTimer != nil {
		t.idleTimer.Stop()
		t.idleTimer = nil
	}
	if t.sessionID != uuid.Nil {
		t.logger.Info("session closed", "session", t.sessionID)
		t.sessionID = uuid.Nil
	}
}

func (t *Teller) armIdleTimerLocked() {
	if t.idleTimeout <= 0 {
		return
	}
	if t.idleTimer != nil {
		t.idleTimer.Stop()
	}
	session := t.sessionID
	t.idleTimer = t.clock.AfterFunc(t.idleTimeout, func() { t.expireSession(session) })
}

// expireSession returns the card of a session that went quiet. The machine
// keeps its cash; phase and register reset as if the card were pulled.
func (t *Teller) expireSession(session uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if session == uuid.Nil || session != t.sessionID {
		// A later event already closed or replaced the session.
		return
	}
	t.logger.Warn("session idle, returning card", "session", session)
	t.machine = atm.New(t.machine.CashInside)
	t.journal = append(t.journal, Entry{Session: session, Machine: t.machine})
	t.closeSessionLocked()
}

// dispense drives the physical dispenser, retrying per the RetryOption.
// The state transition has already committed by the time this runs; an
// error here is reported on the Receipt and logged, nothing rolls back.
func (t *Teller) dispense(amount uint64) error {
	if t.dispenser == nil {
		return nil
	}
	b := t.retry.Backoff
	if b == nil {
		b = backoff.NewExponentialBackOff()
	}
	if t.retry.Attempts > 0 {
		b = backoff.WithMaxRetries(b, t.retry.Attempts)
	}
	err := backoff.RetryNotifyWithTimer(
		func() error { return t.dispenser.Dispense(amount) },
		b,
		t.retry.Notify,
		t.retry.Timer,
	)
	if err != nil {
		t.logger.Error("dispense failed", "amount", amount, "error", err)
		return fmt.Errorf("dispense %d: %w", amount, err)
	}
	return nil
}
