package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// MaxSeeds bounds the number of seeds in one derivation.
	MaxSeeds = 16
	// MaxSeedLength bounds the byte length of a single seed.
	MaxSeedLength = 32

	derivationMarker = "ProgramDerivedAddress"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrMaxSeedLength  = errors.New("seed exceeds maximum length")
	ErrTooManySeeds   = errors.New("too many seeds")
	ErrOnCurve        = errors.New("derived address lies on the ed25519 curve")
	ErrNoViableBump   = errors.New("unable to find a viable bump")
)

// CreateAddress hashes seeds, bump and program into a candidate address.
// It fails with ErrOnCurve when the candidate could be a real public key.
func CreateAddress(program Address, bump uint8, seeds ...[]byte) (Address, error) {
	if err := checkSeeds(seeds); err != nil {
		return Zero, err
	}
	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write([]byte{bump})
	h.Write(program[:])
	h.Write([]byte(derivationMarker))

	var out Address
	copy(out[:], h.Sum(nil))
	if IsOnCurve(out) {
		return Zero, ErrOnCurve
	}
	return out, nil
}

// Derive searches bumps from 255 downwards and returns the first address that
// is off the curve, together with that bump. Derive is pure: the same inputs
// always produce the same result.
func Derive(program Address, seeds ...[]byte) (Address, uint8, error) {
	if err := checkSeeds(seeds); err != nil {
		return Zero, 0, err
	}
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateAddress(program, uint8(bump), seeds...)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoViableBump
}

// Verify recomputes the address for the given bump and reports whether it
// equals want.
func Verify(want Address, program Address, bump uint8, seeds ...[]byte) bool {
	got, err := CreateAddress(program, bump, seeds...)
	if err != nil {
		return false
	}
	return got == want
}

// IsOnCurve reports whether a decodes to a valid ed25519 point.
func IsOnCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return fmt.Errorf("%w: %d > %d", ErrTooManySeeds, len(seeds), MaxSeeds)
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return fmt.Errorf("%w: seed %d has %d bytes", ErrMaxSeedLength, i, len(s))
		}
	}
	return nil
}
