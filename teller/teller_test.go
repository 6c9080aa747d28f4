package teller_test

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	atm "github.com/tellerkit/go-atm"
	"github.com/tellerkit/go-atm/teller"
)

func quiet() teller.Option {
	return teller.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pinFingerprint(keys ...atm.Key) uint64 {
	return atm.DefaultHasher.Fingerprint(keys)
}

// runSession authenticates with PIN 1-2 and leaves the teller Authenticated.
func runSession(t *testing.T, tl *teller.Teller) uuid.UUID {
	t.Helper()
	r := tl.Apply(atm.SwipeCard{Fingerprint: pinFingerprint(atm.KeyOne, atm.KeyTwo)})
	require.NotEqual(t, uuid.Nil, r.Session)
	tl.Apply(atm.PressKey{Key: atm.KeyOne})
	tl.Apply(atm.PressKey{Key: atm.KeyTwo})
	r = tl.Apply(atm.PressKey{Key: atm.KeyEnter})
	require.True(t, r.After.IsAuthenticated())
	return r.Session
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	tl := teller.New(10, quiet())

	session := runSession(t, tl)

	r := tl.Apply(atm.PressKey{Key: atm.KeyThree})
	assert.Equal(t, session, r.Session)

	r = tl.Apply(atm.PressKey{Key: atm.KeyEnter})
	assert.Equal(t, uint64(3), r.Dispensed)
	assert.NoError(t, r.DispenseErr)
	assert.True(t, r.After.IsWaiting())
	assert.Equal(t, atm.New(7), tl.Machine())

	// A fresh swipe opens a fresh session.
	r = tl.Apply(atm.SwipeCard{Fingerprint: 1})
	assert.NotEqual(t, uuid.Nil, r.Session)
	assert.NotEqual(t, session, r.Session)
}

func TestWrongPinClosesSession(t *testing.T) {
	t.Parallel()
	tl := teller.New(10, quiet())

	tl.Apply(atm.SwipeCard{Fingerprint: pinFingerprint(atm.KeyOne)})
	tl.Apply(atm.PressKey{Key: atm.KeyTwo})
	r := tl.Apply(atm.PressKey{Key: atm.KeyEnter})
	assert.True(t, r.After.IsWaiting())
	assert.Equal(t, atm.New(10), tl.Machine())
}

func TestApplySerializesConcurrentEvents(t *testing.T) {
	t.Parallel()
	tl := teller.New(10, quiet())

	const presses = 64
	var wg sync.WaitGroup
	for i := 0; i < presses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tl.Apply(atm.PressKey{Key: atm.KeyOne})
		}()
	}
	wg.Wait()

	// Keys before a swipe are ignored; every one of them is journaled.
	assert.Equal(t, atm.New(10), tl.Machine())
	assert.Len(t, tl.Journal(), presses)
}

func TestIdleSessionReturnsCard(t *testing.T) {
	t.Parallel()
	mock := clock.NewMock()
	tl := teller.New(10, quiet(),
		teller.WithClock(mock),
		teller.WithIdleTimeout(30*time.Second),
	)

	tl.Apply(atm.SwipeCard{Fingerprint: 1234})
	tl.Apply(atm.PressKey{Key: atm.KeyOne})

	// Activity keeps the session alive.
	mock.Add(20 * time.Second)
	tl.Apply(atm.PressKey{Key: atm.KeyTwo})
	mock.Add(20 * time.Second)
	assert.True(t, tl.Machine().Auth.IsAuthenticating(), "timer rearms on every event")

	mock.Add(11 * time.Second)
	assert.Equal(t, atm.New(10), tl.Machine(), "card returned, register wiped, cash kept")

	entries := tl.Journal()
	require.NotEmpty(t, entries)
	assert.Nil(t, entries[len(entries)-1].Event, "the card-return entry carries no event")
}

func TestAuthenticatedSessionAlsoTimesOut(t *testing.T) {
	t.Parallel()
	mock := clock.NewMock()
	tl := teller.New(10, quiet(),
		teller.WithClock(mock),
		teller.WithIdleTimeout(time.Minute),
	)

	runSession(t, tl)
	mock.Add(61 * time.Second)
	assert.Equal(t, atm.New(10), tl.Machine())
}

func TestCompletedSessionDoesNotExpireLater(t *testing.T) {
	t.Parallel()
	mock := clock.NewMock()
	tl := teller.New(10, quiet(),
		teller.WithClock(mock),
		teller.WithIdleTimeout(time.Minute),
	)

	runSession(t, tl)
	tl.Apply(atm.PressKey{Key: atm.KeyOne})
	tl.Apply(atm.PressKey{Key: atm.KeyEnter})
	before := len(tl.Journal())

	mock.Add(time.Hour)
	assert.Equal(t, atm.New(9), tl.Machine())
	assert.Len(t, tl.Journal(), before, "no card-return entry after a clean finish")
}

func TestDispenseRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	var calls int
	jammy := teller.DispenserFunc(func(amount uint64) error {
		calls++
		if calls < 3 {
			return errors.New("shutter jammed")
		}
		return nil
	})

	tl := teller.New(10, quiet(),
		teller.WithDispenser(jammy),
		teller.WithDispenseRetry(teller.RetryOption{
			Attempts: 5,
			Backoff:  backoff.NewConstantBackOff(0),
		}),
	)

	runSession(t, tl)
	tl.Apply(atm.PressKey{Key: atm.KeyTwo})
	r := tl.Apply(atm.PressKey{Key: atm.KeyEnter})

	assert.NoError(t, r.DispenseErr)
	assert.Equal(t, uint64(2), r.Dispensed)
	assert.Equal(t, 3, calls)
	assert.Equal(t, atm.New(8), tl.Machine())
}

func TestDispensePermanentFailureIsReportedNotRolledBack(t *testing.T) {
	t.Parallel()
	jammed := errors.New("cassette empty")
	tl := teller.New(10, quiet(),
		teller.WithDispenser(teller.DispenserFunc(func(uint64) error { return jammed })),
		teller.WithDispenseRetry(teller.RetryOption{
			Attempts: 2,
			Backoff:  backoff.NewConstantBackOff(0),
		}),
	)

	runSession(t, tl)
	tl.Apply(atm.PressKey{Key: atm.KeyFour})
	r := tl.Apply(atm.PressKey{Key: atm.KeyEnter})

	assert.ErrorIs(t, r.DispenseErr, jammed)
	assert.Equal(t, uint64(4), r.Dispensed)
	assert.Equal(t, atm.New(6), tl.Machine(), "the transition commits regardless")
}

func TestJournalReplaysToCurrentState(t *testing.T) {
	t.Parallel()
	tl := teller.New(10, quiet())
	runSession(t, tl)
	tl.Apply(atm.PressKey{Key: atm.KeyOne})
	tl.Apply(atm.PressKey{Key: atm.KeyEnter})

	var events []atm.Event
	for _, entry := range tl.Journal() {
		require.NotNil(t, entry.Event)
		events = append(events, entry.Event)
	}
	assert.Equal(t, tl.Machine(), atm.Replay(atm.New(10), events...))
}
