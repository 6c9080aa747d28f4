package atm

import "github.com/cespare/xxhash/v2"

// Hasher turns an ordered key sequence into a 64-bit fingerprint.
//
// The same Hasher must be used by whoever issues the card (producing the
// fingerprint presented on swipe) and by the machine verifying the keyed-in
// PIN against it. The machine only ever hashes the current keystroke
// register; raw PINs are never stored.
type Hasher interface {
	Fingerprint(keys []Key) uint64
}

// HasherFunc adapts a plain function to the Hasher interface.
type HasherFunc func(keys []Key) uint64

func (f HasherFunc) Fingerprint(keys []Key) uint64 { return f(keys) }

// DefaultHasher fingerprints a key sequence with xxhash64, one byte per key.
// NextState uses it unless the caller picks another Hasher via NextStateWith.
var DefaultHasher Hasher = HasherFunc(func(keys []Key) uint64 {
	buf := make([]byte, len(keys))
	for i, k := range keys {
		buf[i] = byte(k)
	}
	return xxhash.Sum64(buf)
})
