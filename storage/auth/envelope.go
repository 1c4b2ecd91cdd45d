package auth

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/pkg/errors"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
)

const signingDomain = "bounty-tx:v1"

// Envelope is a signed request. The signer's address is its ed25519 public
// key; Signature is base58 over SigningMessage.
type Envelope struct {
	Signer    pda.Address     `json:"signer"`
	Nonce     string          `json:"nonce"`
	Signature string          `json:"signature"`
	Payload   json.RawMessage `json:"payload"`
}

// SigningMessage binds the operation, the nonce and the exact payload bytes.
func SigningMessage(op bounty.Op, nonce string, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteString(signingDomain)
	b.WriteByte('\n')
	b.WriteString(string(op))
	b.WriteByte('\n')
	b.WriteString(nonce)
	b.WriteByte('\n')
	b.Write(payload)
	return b.Bytes()
}

// Sign builds an envelope for op; payload is marshalled once and signed as is.
func Sign(key ed25519.PrivateKey, op bounty.Op, nonce string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrap(err, "encode payload")
	}
	signer, err := pda.AddressFromPublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return Envelope{}, err
	}
	sig := ed25519.Sign(key, SigningMessage(op, nonce, raw))
	return Envelope{Signer: signer, Nonce: nonce, Signature: base58.Encode(sig), Payload: raw}, nil
}

// VerifySignature checks the envelope signature for op.
func (e Envelope) VerifySignature(op bounty.Op) error {
	if e.Signer.IsZero() || e.Nonce == "" {
		return errors.Wrap(bounty.ErrUnauthorized, "signer and nonce are required")
	}
	sig := base58.Decode(e.Signature)
	if len(sig) != ed25519.SignatureSize {
		return errors.Wrap(bounty.ErrUnauthorized, "malformed signature")
	}
	if !ed25519.Verify(e.Signer.PublicKey(), SigningMessage(op, e.Nonce, e.Payload), sig) {
		return errors.Wrapf(bounty.ErrUnauthorized, "bad signature from %s", e.Signer)
	}
	return nil
}

// Authenticator turns a signed envelope into the caller identity.
type Authenticator struct {
	challenges Challenges
}

func NewAuthenticator(challenges Challenges) *Authenticator {
	return &Authenticator{challenges: challenges}
}

// Issue hands out a nonce for signer's next envelope.
func (a *Authenticator) Issue(ctx context.Context, signer pda.Address) (Challenge, error) {
	return a.challenges.Issue(ctx, signer)
}

// Authenticate verifies the signature before redeeming the nonce, so a forged
// envelope cannot burn someone else's challenge.
func (a *Authenticator) Authenticate(ctx context.Context, op bounty.Op, env Envelope) (pda.Address, error) {
	if err := env.VerifySignature(op); err != nil {
		return pda.Zero, err
	}
	if err := a.challenges.Consume(ctx, env.Signer, env.Nonce); err != nil {
		return pda.Zero, err
	}
	return env.Signer, nil
}
