package bounty

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"bounty-backend/core/pda"
)

type handler func(ctx context.Context, signer pda.Address, payload json.RawMessage) (Event, error)

func bind[R any](fn func(context.Context, pda.Address, R) (Event, error)) handler {
	return func(ctx context.Context, signer pda.Address, payload json.RawMessage) (Event, error) {
		var req R
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return Event{}, errors.Wrapf(ErrInvalidArgument, "decode %T: %v", req, err)
		}
		return fn(ctx, signer, req)
	}
}

// Execute decodes a JSON payload for op and runs it on behalf of signer.
// Unknown fields are rejected so a typo cannot silently drop an address
// check.
func (e *Engine) Execute(ctx context.Context, op Op, signer pda.Address, payload json.RawMessage) (Event, error) {
	var h handler
	switch op {
	case OpCreateTask:
		h = bind(e.CreateTask)
	case OpAcceptTask:
		h = bind(e.AcceptTask)
	case OpSubmitWork:
		h = bind(e.SubmitWork)
	case OpPickWinner:
		h = bind(e.PickWinner)
	case OpClaimReward:
		h = bind(e.ClaimReward)
	case OpRefundEscrow:
		h = bind(e.RefundEscrow)
	case OpCloseTask:
		h = bind(e.CloseTask)
	case OpCreateMint:
		h = bind(e.CreateMint)
	case OpMintTo:
		h = bind(e.MintTo)
	default:
		return Event{}, errors.Wrapf(ErrInvalidArgument, "unknown operation %q", op)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage("{}")
	}
	return h(ctx, signer, payload)
}
