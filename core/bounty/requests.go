package bounty

import "bounty-backend/core/pda"

// Op names a ledger operation as it appears on the wire and in events.
type Op string

const (
	OpCreateTask   Op = "create_task"
	OpAcceptTask   Op = "accept_task"
	OpSubmitWork   Op = "submit_work"
	OpPickWinner   Op = "pick_winner"
	OpClaimReward  Op = "claim_reward"
	OpRefundEscrow Op = "refund_escrow"
	OpCloseTask    Op = "close_task"
	OpCreateMint   Op = "create_mint"
	OpMintTo       Op = "mint_to"
	OpAirdrop      Op = "airdrop"
)

// Ops lists every signed operation in lifecycle order.
var Ops = []Op{
	OpCreateTask, OpAcceptTask, OpSubmitWork, OpPickWinner,
	OpClaimReward, OpRefundEscrow, OpCloseTask, OpCreateMint, OpMintTo,
}

func (o Op) Valid() bool {
	for _, op := range Ops {
		if op == o {
			return true
		}
	}
	return false
}

type CreateTaskRequest struct {
	TaskID          string      `json:"task_id"`
	Description     string      `json:"description"`
	RewardAmount    uint64      `json:"reward_amount"`
	DurationSeconds int64       `json:"duration_seconds"`
	Mint            pda.Address `json:"mint"`
}

type AcceptTaskRequest struct {
	Creator pda.Address `json:"creator"`
	TaskID  string      `json:"task_id"`
}

type SubmitWorkRequest struct {
	Creator pda.Address `json:"creator"`
	TaskID  string      `json:"task_id"`
	Link    string      `json:"link"`
}

// PickWinnerRequest may carry the addresses the client derived itself; each
// one present must match the address recomputed from TaskID and the signer.
type PickWinnerRequest struct {
	Creator     *pda.Address `json:"creator,omitempty"`
	TaskID      string       `json:"task_id"`
	Participant pda.Address  `json:"participant"`
	Task        *pda.Address `json:"task,omitempty"`
	Submission  *pda.Address `json:"submission,omitempty"`
	Escrow      *pda.Address `json:"escrow,omitempty"`
}

type ClaimRewardRequest struct {
	Creator pda.Address  `json:"creator"`
	TaskID  string       `json:"task_id"`
	Escrow  *pda.Address `json:"escrow,omitempty"`
	Vault   *pda.Address `json:"vault,omitempty"`
}

type RefundEscrowRequest struct {
	Creator *pda.Address `json:"creator,omitempty"`
	TaskID  string       `json:"task_id"`
	Escrow  *pda.Address `json:"escrow,omitempty"`
	Vault   *pda.Address `json:"vault,omitempty"`
}

type CloseTaskRequest struct {
	Creator *pda.Address `json:"creator,omitempty"`
	TaskID  string       `json:"task_id"`
}

type CreateMintRequest struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type MintToRequest struct {
	Mint   pda.Address `json:"mint"`
	Owner  pda.Address `json:"owner"`
	Amount uint64      `json:"amount"`
}
