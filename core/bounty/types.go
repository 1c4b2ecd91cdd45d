package bounty

import (
	"encoding/json"

	"bounty-backend/core/pda"
)

// Kind discriminates the record stored in an Account.
type Kind string

const (
	KindTask          Kind = "task"
	KindEscrow        Kind = "escrow"
	KindParticipation Kind = "participation"
	KindSubmission    Kind = "submission"
	KindMint          Kind = "mint"
	KindTokenAccount  Kind = "token_account"
)

// Field limits, in bytes.
const (
	MaxTaskIDLen      = 32
	MaxDescriptionLen = 280
	MaxLinkLen        = 100
	MaxSymbolLen      = 16
)

// Account is the ledger envelope around one typed record.
type Account struct {
	Address   pda.Address     `json:"address"`
	Kind      Kind            `json:"kind"`
	Bump      uint8           `json:"bump"`
	Deposit   uint64          `json:"deposit"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
}

// Phase is the stored lifecycle phase of a Task.
type Phase string

const (
	PhaseOpen              Phase = "open"
	PhaseAwaitingSelection Phase = "awaiting_selection"
	PhaseSelected          Phase = "selected"
	PhasePaid              Phase = "paid"
	PhaseRefunded          Phase = "refunded"
	PhaseClosed            Phase = "closed"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseOpen, PhaseAwaitingSelection, PhaseSelected, PhasePaid, PhaseRefunded, PhaseClosed:
		return true
	}
	return false
}

// ParticipationStatus only ever moves forward.
type ParticipationStatus string

const (
	StatusAccepted  ParticipationStatus = "accepted"
	StatusSubmitted ParticipationStatus = "submitted"
	StatusCompleted ParticipationStatus = "completed"
)

func (s ParticipationStatus) rank() int {
	switch s {
	case StatusAccepted:
		return 1
	case StatusSubmitted:
		return 2
	case StatusCompleted:
		return 3
	}
	return 0
}

// CanAdvanceTo reports whether next is strictly later than s.
func (s ParticipationStatus) CanAdvanceTo(next ParticipationStatus) bool {
	return next.rank() > s.rank()
}

type Task struct {
	Address         pda.Address  `json:"address"`
	TaskID          string       `json:"task_id"`
	Description     string       `json:"description"`
	Creator         pda.Address  `json:"creator"`
	Reward          uint64       `json:"reward"`
	Mint            pda.Address  `json:"mint"`
	StartTime       int64        `json:"start_time"`
	EndTime         int64        `json:"end_time"`
	Winner          *pda.Address `json:"winner,omitempty"`
	SubmissionCount uint32       `json:"submission_count"`
	Phase           Phase        `json:"phase"`
	Bump            uint8        `json:"bump"`
}

// PhaseAt resolves the stored phase against the ledger clock.
func (t Task) PhaseAt(now int64) Phase {
	if t.Phase == PhaseOpen && now >= t.EndTime {
		return PhaseAwaitingSelection
	}
	return t.Phase
}

// Ended reports whether the task deadline has passed. There is no grace window.
func (t Task) Ended(now int64) bool { return now >= t.EndTime }

type Escrow struct {
	Address    pda.Address  `json:"address"`
	Seed       string       `json:"seed"`
	Creator    pda.Address  `json:"creator"`
	RewardMint pda.Address  `json:"reward_mint"`
	Vault      pda.Address  `json:"vault"`
	StartTime  int64        `json:"start_time"`
	EndTime    int64        `json:"end_time"`
	Winner     *pda.Address `json:"winner,omitempty"`
	Bump       uint8        `json:"bump"`
}

type Participation struct {
	Address     pda.Address         `json:"address"`
	Participant pda.Address         `json:"participant"`
	Task        pda.Address         `json:"task"`
	Status      ParticipationStatus `json:"status"`
	Bump        uint8               `json:"bump"`
}

type Submission struct {
	Address     pda.Address `json:"address"`
	Participant pda.Address `json:"participant"`
	Task        pda.Address `json:"task"`
	Link        string      `json:"link"`
	SubmittedAt int64       `json:"submitted_at"`
	Bump        uint8       `json:"bump"`
}

// Mint is a fungible-token denomination.
type Mint struct {
	Address   pda.Address `json:"address"`
	Authority pda.Address `json:"authority"`
	Symbol    string      `json:"symbol"`
	Decimals  uint8       `json:"decimals"`
	Supply    uint64      `json:"supply"`
	Bump      uint8       `json:"bump"`
}

// TokenAccount holds Amount units of Mint on behalf of Owner. A token account
// owned by an escrow address is that escrow's vault.
type TokenAccount struct {
	Address pda.Address `json:"address"`
	Owner   pda.Address `json:"owner"`
	Mint    pda.Address `json:"mint"`
	Amount  uint64      `json:"amount"`
	Bump    uint8       `json:"bump"`
}

// space is the reserved size of each record kind; deposits are charged on it.
func space(k Kind) uint64 {
	switch k {
	case KindTask:
		return 8 + (4 + MaxTaskIDLen) + (4 + MaxDescriptionLen) + 32 + 8 + 32 + 8 + 8 + 33 + 4 + 1 + 1
	case KindEscrow:
		return 8 + (4 + MaxTaskIDLen) + 32 + 32 + 32 + 8 + 8 + 33 + 1
	case KindParticipation:
		return 8 + 32 + 32 + 1 + 1
	case KindSubmission:
		return 8 + 32 + 32 + (4 + MaxLinkLen) + 8 + 1
	case KindMint:
		return 82 + (4 + MaxSymbolLen)
	case KindTokenAccount:
		return 165
	}
	return 0
}
