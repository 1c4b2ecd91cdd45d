package bounty

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
	"bounty-backend/middleware"
	auth "bounty-backend/storage/auth"
)

// ChallengeRequest asks for a nonce to sign the next envelope with.
type ChallengeRequest struct {
	Signer pda.Address `json:"signer"`
}

// TxResponse is returned for every committed operation.
type TxResponse struct {
	Success bool         `json:"success"`
	Event   bounty.Event `json:"event"`
}

// FaucetRequest credits native balance to an owner.
type FaucetRequest struct {
	Owner  pda.Address `json:"owner"`
	Amount uint64      `json:"amount"`
}

// handleChallenge handles POST /v1/challenges
func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var body ChallengeRequest
	if err := decodeBody(w, r, &body); err != nil {
		Error(w, err)
		return
	}
	if body.Signer.IsZero() {
		Error(w, errors.Wrap(bounty.ErrInvalidArgument, "signer is required"))
		return
	}
	ch, err := s.cfg.Auth.Issue(r.Context(), body.Signer)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, ch)
}

// handleTx handles POST /v1/tx/{op}
func (s *Server) handleTx(w http.ResponseWriter, r *http.Request) {
	op := bounty.Op(chi.URLParam(r, "op"))
	if !op.Valid() {
		middleware.WriteError(w, http.StatusNotFound, "unknown_operation", "unknown operation "+string(op))
		return
	}

	var env auth.Envelope
	if err := decodeBody(w, r, &env); err != nil {
		Error(w, err)
		return
	}
	signer, err := s.cfg.Auth.Authenticate(r.Context(), op, env)
	if err != nil {
		Error(w, err)
		return
	}

	ev, err := s.cfg.Engine.Execute(r.Context(), op, signer, env.Payload)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, TxResponse{Success: true, Event: ev})
}

// APIKeyRequest labels a newly issued operator key.
type APIKeyRequest struct {
	Label string `json:"label"`
}

// handleIssueAPIKey handles POST /v1/admin/api-keys. The plain key appears
// only in this response.
func (s *Server) handleIssueAPIKey(w http.ResponseWriter, r *http.Request) {
	var body APIKeyRequest
	if err := decodeBody(w, r, &body); err != nil {
		Error(w, err)
		return
	}
	if body.Label == "" {
		Error(w, errors.Wrap(bounty.ErrInvalidArgument, "label is required"))
		return
	}
	key, err := s.cfg.KeyIssuer.Issue(body.Label, "api")
	if err != nil {
		Error(w, errors.Wrap(err, "issue api key"))
		return
	}
	JSON(w, http.StatusCreated, key)
}

// handleFaucet handles POST /v1/admin/faucet
func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.FaucetEnabled {
		middleware.WriteError(w, http.StatusForbidden, "faucet_disabled", "faucet is disabled")
		return
	}
	var body FaucetRequest
	if err := decodeBody(w, r, &body); err != nil {
		Error(w, err)
		return
	}
	if body.Owner.IsZero() {
		Error(w, errors.Wrap(bounty.ErrInvalidArgument, "owner is required"))
		return
	}
	if s.cfg.FaucetMax > 0 && body.Amount > s.cfg.FaucetMax {
		Error(w, errors.Wrapf(bounty.ErrInvalidArgument, "amount exceeds faucet limit %d", s.cfg.FaucetMax))
		return
	}
	ev, err := s.cfg.Engine.Airdrop(r.Context(), body.Owner, body.Amount)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, TxResponse{Success: true, Event: ev})
}
