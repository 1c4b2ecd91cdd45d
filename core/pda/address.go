package pda

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// AddressLength is the byte length of every ledger address.
const AddressLength = 32

// Address identifies an account on the ledger. Signer addresses are ed25519
// public keys; derived addresses are guaranteed to sit off the curve.
type Address [AddressLength]byte

// Zero is the unset address.
var Zero Address

// ParseAddress decodes the base58 text form of an address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if s == "" {
		return a, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	raw := base58.Decode(s)
	if len(raw) != AddressLength {
		return a, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, s, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromPublicKey converts an ed25519 public key into an Address.
func AddressFromPublicKey(pub ed25519.PublicKey) (Address, error) {
	var a Address
	if len(pub) != ed25519.PublicKeySize {
		return a, fmt.Errorf("%w: public key has %d bytes", ErrInvalidAddress, len(pub))
	}
	copy(a[:], pub)
	return a, nil
}

func (a Address) String() string { return base58.Encode(a[:]) }

// Bytes returns a copy of the raw address.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

func (a Address) IsZero() bool { return a == Zero }

// PublicKey exposes the address as an ed25519 verification key.
func (a Address) PublicKey() ed25519.PublicKey { return ed25519.PublicKey(a.Bytes()) }

func (a Address) Equal(b Address) bool { return bytes.Equal(a[:], b[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
