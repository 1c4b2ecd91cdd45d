package bounty

import (
	"github.com/pkg/errors"

	"bounty-backend/core/pda"
)

var (
	seedTask          = []byte("task")
	seedEscrow        = []byte("escrow")
	seedParticipation = []byte("participation")
	seedSubmission    = []byte("submission")
	seedTokenAccount  = []byte("token_account")
	seedMint          = []byte("mint")
)

// Deriver computes every entity address for one program. Any party holding the
// program id can recompute these from public inputs.
type Deriver struct {
	Program pda.Address
}

func (d Deriver) derive(seeds ...[]byte) (pda.Address, uint8, error) {
	addr, bump, err := pda.Derive(d.Program, seeds...)
	if err != nil {
		return pda.Zero, 0, errors.Wrap(ErrInvalidArgument, err.Error())
	}
	return addr, bump, nil
}

func (d Deriver) Task(creator pda.Address, taskID string) (pda.Address, uint8, error) {
	if taskID == "" || len(taskID) > MaxTaskIDLen {
		return pda.Zero, 0, errors.Wrapf(ErrInvalidArgument, "task id must be 1..%d bytes", MaxTaskIDLen)
	}
	return d.derive(seedTask, creator[:], []byte(taskID))
}

func (d Deriver) Escrow(task pda.Address) (pda.Address, uint8, error) {
	return d.derive(seedEscrow, task[:])
}

func (d Deriver) Participation(task, participant pda.Address) (pda.Address, uint8, error) {
	return d.derive(seedParticipation, task[:], participant[:])
}

func (d Deriver) Submission(task, participant pda.Address) (pda.Address, uint8, error) {
	return d.derive(seedSubmission, task[:], participant[:])
}

// TokenAccount is the associated token account of owner for mint. For an
// escrow owner this is the escrow's vault.
func (d Deriver) TokenAccount(owner, mint pda.Address) (pda.Address, uint8, error) {
	return d.derive(seedTokenAccount, owner[:], mint[:])
}

func (d Deriver) Mint(authority pda.Address, symbol string) (pda.Address, uint8, error) {
	if symbol == "" || len(symbol) > MaxSymbolLen {
		return pda.Zero, 0, errors.Wrapf(ErrInvalidArgument, "symbol must be 1..%d bytes", MaxSymbolLen)
	}
	return d.derive(seedMint, authority[:], []byte(symbol))
}

// seedsOf rebuilds the derivation inputs of a stored record from its own fields.
func (d Deriver) seedsOf(record any) ([][]byte, error) {
	switch r := record.(type) {
	case Task:
		return [][]byte{seedTask, r.Creator[:], []byte(r.TaskID)}, nil
	case Escrow:
		task, _, err := d.Task(r.Creator, r.Seed)
		if err != nil {
			return nil, err
		}
		return [][]byte{seedEscrow, task[:]}, nil
	case Participation:
		return [][]byte{seedParticipation, r.Task[:], r.Participant[:]}, nil
	case Submission:
		return [][]byte{seedSubmission, r.Task[:], r.Participant[:]}, nil
	case TokenAccount:
		return [][]byte{seedTokenAccount, r.Owner[:], r.Mint[:]}, nil
	case Mint:
		return [][]byte{seedMint, r.Authority[:], []byte(r.Symbol)}, nil
	}
	return nil, errors.Errorf("no derivation for %T", record)
}

// verify checks that the stored bump and the record's seeds reproduce the
// account address.
func (d Deriver) verify(acct Account, record any) error {
	seeds, err := d.seedsOf(record)
	if err != nil {
		return err
	}
	if !pda.Verify(acct.Address, d.Program, acct.Bump, seeds...) {
		return errors.Wrapf(ErrConstraintSeeds, "%s %s does not derive from its seeds with bump %d", acct.Kind, acct.Address, acct.Bump)
	}
	return nil
}

// TaskAddresses bundles the addresses a client needs to act on one task.
type TaskAddresses struct {
	Task                pda.Address  `json:"task"`
	Escrow              pda.Address  `json:"escrow"`
	Vault               *pda.Address `json:"vault,omitempty"`
	Participation       *pda.Address `json:"participation,omitempty"`
	Submission          *pda.Address `json:"submission,omitempty"`
	CreatorTokenAccount *pda.Address `json:"creator_token_account,omitempty"`
}

// Addresses derives top-down: task, escrow, then the optional children that
// need a participant or a mint.
func (d Deriver) Addresses(creator pda.Address, taskID string, participant, mint *pda.Address) (TaskAddresses, error) {
	var out TaskAddresses
	task, _, err := d.Task(creator, taskID)
	if err != nil {
		return out, err
	}
	escrow, _, err := d.Escrow(task)
	if err != nil {
		return out, err
	}
	out.Task, out.Escrow = task, escrow

	if participant != nil {
		p, _, err := d.Participation(task, *participant)
		if err != nil {
			return out, err
		}
		s, _, err := d.Submission(task, *participant)
		if err != nil {
			return out, err
		}
		out.Participation, out.Submission = &p, &s
	}
	if mint != nil {
		v, _, err := d.TokenAccount(escrow, *mint)
		if err != nil {
			return out, err
		}
		c, _, err := d.TokenAccount(creator, *mint)
		if err != nil {
			return out, err
		}
		out.Vault, out.CreatorTokenAccount = &v, &c
	}
	return out, nil
}
