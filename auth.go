package atm

import "fmt"

// Auth is the machine's authentication phase.
//
// It is one of exactly three variants:
//
//	Waiting()            no active session, waiting for a card swipe
//	Authenticating(fp)   card swiped, waiting for the PIN; fp is the
//	                     fingerprint the keyed-in PIN must hash to
//	Authenticated()      PIN verified, waiting for a withdrawal amount
//
// Auth is a comparable value: two Auth values are equal with == iff they are
// the same phase carrying the same fingerprint.
type Auth struct {
	kind        authKind
	fingerprint uint64
}

type authKind int

const (
	authWaiting authKind = iota
	authAuthenticating
	authAuthenticated
)

// Waiting is the phase with no active session. It is also the zero value of
// Auth, so a zero Machine starts here.
func Waiting() Auth { return Auth{} }

// Authenticating is the phase after a card swipe, carrying the fingerprint
// of the correct PIN for the session.
func Authenticating(fingerprint uint64) Auth {
	return Auth{kind: authAuthenticating, fingerprint: fingerprint}
}

// Authenticated is the phase after a successful PIN entry.
func Authenticated() Auth { return Auth{kind: authAuthenticated} }

func (a Auth) IsWaiting() bool        { return a.kind == authWaiting }
func (a Auth) IsAuthenticating() bool { return a.kind == authAuthenticating }
func (a Auth) IsAuthenticated() bool  { return a.kind == authAuthenticated }

// Fingerprint returns the expected PIN fingerprint and true while the phase
// is Authenticating; otherwise zero and false.
func (a Auth) Fingerprint() (uint64, bool) {
	if a.kind != authAuthenticating {
		return 0, false
	}
	return a.fingerprint, true
}

func (a Auth) String() string {
	switch a.kind {
	case authAuthenticating:
		return fmt.Sprintf("Authenticating(%d)", a.fingerprint)
	case authAuthenticated:
		return "Authenticated"
	default:
		return "Waiting"
	}
}
