package pda

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProgram(t *testing.T) Address {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr, err := AddressFromPublicKey(pub)
	require.NoError(t, err)
	return addr
}

func TestDeriveIsDeterministic(t *testing.T) {
	program := testProgram(t)
	creator := testProgram(t)

	a1, b1, err := Derive(program, []byte("task"), creator[:], []byte("e2e-1"))
	require.NoError(t, err)
	a2, b2, err := Derive(program, []byte("task"), creator[:], []byte("e2e-1"))
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
	assert.False(t, IsOnCurve(a1), "derived address must be off curve")
	assert.True(t, Verify(a1, program, b1, []byte("task"), creator[:], []byte("e2e-1")))
}

func TestDeriveSeparatesInputs(t *testing.T) {
	program := testProgram(t)
	creator := testProgram(t)

	a, _, err := Derive(program, []byte("task"), creator[:], []byte("one"))
	require.NoError(t, err)
	b, _, err := Derive(program, []byte("task"), creator[:], []byte("two"))
	require.NoError(t, err)
	c, _, err := Derive(testProgram(t), []byte("task"), creator[:], []byte("one"))
	require.NoError(t, err)
	d, _, err := Derive(program, []byte("escrow"), creator[:], []byte("one"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestVerifyRejectsWrongBumpOrSeeds(t *testing.T) {
	program := testProgram(t)
	addr, bump, err := Derive(program, []byte("escrow"), []byte("parent"))
	require.NoError(t, err)

	assert.False(t, Verify(addr, program, bump, []byte("escrow"), []byte("other")))
	if bump > 0 {
		assert.False(t, Verify(addr, program, bump-1, []byte("escrow"), []byte("parent")))
	}
}

func TestSeedLimits(t *testing.T) {
	program := testProgram(t)

	_, _, err := Derive(program, []byte(strings.Repeat("x", MaxSeedLength+1)))
	require.ErrorIs(t, err, ErrMaxSeedLength)

	seeds := make([][]byte, MaxSeeds+1)
	for i := range seeds {
		seeds[i] = []byte{byte(i)}
	}
	_, _, err = Derive(program, seeds...)
	require.ErrorIs(t, err, ErrTooManySeeds)

	_, _, err = Derive(program, []byte(strings.Repeat("x", MaxSeedLength)))
	require.NoError(t, err)
}

func TestPublicKeysAreOnCurve(t *testing.T) {
	assert.True(t, IsOnCurve(testProgram(t)))
}

func TestParseAddress(t *testing.T) {
	addr := testProgram(t)
	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	_, err = ParseAddress("")
	require.ErrorIs(t, err, ErrInvalidAddress)
	_, err = ParseAddress("abc")
	require.ErrorIs(t, err, ErrInvalidAddress)
	_, err = ParseAddress("0OIl")
	require.ErrorIs(t, err, ErrInvalidAddress)
}
