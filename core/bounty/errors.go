package bounty

import "github.com/pkg/errors"

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

var (
	ErrTaskEnded        = Err("task has ended")
	ErrTaskNotEnded     = Err("task not ended yet")
	ErrNoSubmissions    = Err("no submissions")
	ErrAlreadySubmitted = Err("already submitted")
	ErrNotCreator       = Err("not creator")
	ErrInvalidWinner    = Err("invalid winner")
	ErrEscrowMismatch   = Err("escrow mismatch")
	ErrConstraintSeeds  = Err("a seeds constraint was violated")
	ErrNotFound         = Err("account not found")

	ErrAlreadyExists     = Err("account already in use")
	ErrAlreadyAccepted   = Err("task already accepted")
	ErrInsufficientFunds = Err("insufficient funds")
	ErrInvalidArgument   = Err("invalid argument")
	ErrEscrowOpen        = Err("escrow still holds funds")
	ErrNotParticipant    = Err("creator cannot participate in own task")
	ErrUnauthorized      = Err("unauthorized signer")
)

var codes = []struct {
	err  Err
	code string
}{
	{ErrTaskEnded, "TaskEnded"},
	{ErrTaskNotEnded, "TaskNotEnded"},
	{ErrNoSubmissions, "NoSubmissions"},
	{ErrAlreadySubmitted, "AlreadySubmitted"},
	{ErrNotCreator, "NotCreator"},
	{ErrInvalidWinner, "InvalidWinner"},
	{ErrEscrowMismatch, "EscrowMismatch"},
	{ErrConstraintSeeds, "ConstraintSeeds"},
	{ErrNotFound, "NotFound"},
	{ErrAlreadyExists, "AlreadyExists"},
	{ErrAlreadyAccepted, "AlreadyAccepted"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrInvalidArgument, "InvalidArgument"},
	{ErrEscrowOpen, "EscrowOpen"},
	{ErrNotParticipant, "NotParticipant"},
	{ErrUnauthorized, "Unauthorized"},
}

// Code returns the stable machine-readable name of err's kind, "Internal"
// for errors outside the taxonomy and "" for nil.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}
