package bounty

import (
	"context"
	"math"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"bounty-backend/core/pda"
)

// DefaultProgramID is the program every address is derived under unless the
// engine is configured with another one.
var DefaultProgramID = pda.MustParseAddress("4kruCJtCQbxT1AQxZprCe7MfBVwFBJKYsdySz8ECPe6p")

// Observer is told the outcome of every operation. code is "" on success.
type Observer interface {
	ObserveOperation(op Op, code string, elapsed time.Duration)
}

// Engine runs the task lifecycle against a Ledger. Every operation is one
// atomic transaction that reads the clock exactly once.
type Engine struct {
	ledger   Ledger
	clock    Clock
	derive   Deriver
	rent     RentSchedule
	sinks    []EventSink
	observer Observer
}

type Option func(*Engine)

func WithProgramID(id pda.Address) Option { return func(e *Engine) { e.derive = Deriver{Program: id} } }

func WithRent(r RentSchedule) Option { return func(e *Engine) { e.rent = r } }

func WithEventSink(s EventSink) Option { return func(e *Engine) { e.sinks = append(e.sinks, s) } }

func WithObserver(o Observer) Option { return func(e *Engine) { e.observer = o } }

func NewEngine(ledger Ledger, clock Clock, opts ...Option) *Engine {
	e := &Engine{
		ledger: ledger,
		clock:  clock,
		derive: Deriver{Program: DefaultProgramID},
		rent:   DefaultRent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Ledger() Ledger { return e.ledger }

func (e *Engine) Deriver() Deriver { return e.derive }

func (e *Engine) Rent() RentSchedule { return e.rent }

// Now reads the ledger clock outside any transaction.
func (e *Engine) Now(ctx context.Context) (int64, error) { return e.clock.Now(ctx) }

func (e *Engine) execute(ctx context.Context, op Op, signer pda.Address, fn func(ctx context.Context, t *txn) (Event, error)) (Event, error) {
	start := time.Now()
	var ev Event
	err := e.ledger.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		now, err := e.clock.Now(ctx)
		if err != nil {
			return errors.Wrap(err, "read ledger clock")
		}
		t := &txn{tx: tx, now: now, rent: e.rent, derive: e.derive}
		ev, err = fn(ctx, t)
		if err != nil {
			return err
		}
		ev.At = now
		return nil
	})
	code := Code(err)
	if e.observer != nil {
		e.observer.ObserveOperation(op, code, time.Since(start))
	}
	fields := log.Fields{"op": op, "signer": signer}
	if err != nil {
		fields["code"] = code
		log.WithFields(fields).Debugf("operation rejected: %v", err)
		return Event{}, err
	}

	ev.ID = uuid.NewString()
	ev.Op = op
	ev.Signer = signer
	for _, sink := range e.sinks {
		if perr := sink.Publish(ctx, ev); perr != nil {
			log.WithFields(fields).Warnf("publish event %s: %v", ev.ID, perr)
		}
	}
	if ev.Task != nil {
		fields["task"] = ev.Task.String()
	}
	log.WithFields(fields).Info("operation committed")
	return ev, nil
}

// matches fails with ErrConstraintSeeds when the client supplied an address
// that differs from the derived one.
func matches(name string, supplied *pda.Address, derived pda.Address) error {
	if supplied != nil && !supplied.Equal(derived) {
		return errors.Wrapf(ErrConstraintSeeds, "%s %s does not match derived %s", name, supplied, derived)
	}
	return nil
}

// creatorOf resolves the creator of a creator-only request.
func creatorOf(signer pda.Address, named *pda.Address) (pda.Address, error) {
	if named != nil && !named.Equal(signer) {
		return pda.Zero, errors.Wrapf(ErrNotCreator, "signer %s is not creator %s", signer, named)
	}
	return signer, nil
}

func validLink(link string) error {
	if link == "" || len(link) > MaxLinkLen {
		return errors.Wrapf(ErrInvalidArgument, "link must be 1..%d bytes", MaxLinkLen)
	}
	u, err := url.Parse(link)
	if err != nil || !u.IsAbs() {
		return errors.Wrapf(ErrInvalidArgument, "link %q is not an absolute URI", link)
	}
	return nil
}

func addrPtr(a pda.Address) *pda.Address { return &a }

// CreateTask opens a task and funds its escrow vault with the full reward.
func (e *Engine) CreateTask(ctx context.Context, signer pda.Address, req CreateTaskRequest) (Event, error) {
	return e.execute(ctx, OpCreateTask, signer, func(ctx context.Context, t *txn) (Event, error) {
		if len(req.Description) > MaxDescriptionLen {
			return Event{}, errors.Wrapf(ErrInvalidArgument, "description exceeds %d bytes", MaxDescriptionLen)
		}
		if req.RewardAmount == 0 {
			return Event{}, errors.Wrap(ErrEscrowMismatch, "reward amount must be positive")
		}
		if req.DurationSeconds <= 0 {
			return Event{}, errors.Wrap(ErrEscrowMismatch, "duration must be positive")
		}
		if t.now > math.MaxInt64-req.DurationSeconds {
			return Event{}, errors.Wrap(ErrEscrowMismatch, "end time overflows")
		}

		taskAddr, taskBump, err := t.derive.Task(signer, req.TaskID)
		if err != nil {
			return Event{}, err
		}
		escAddr, escBump, err := t.derive.Escrow(taskAddr)
		if err != nil {
			return Event{}, err
		}
		vaultAddr, vaultBump, err := t.derive.TokenAccount(escAddr, req.Mint)
		if err != nil {
			return Event{}, err
		}

		from, _, err := t.ensureTokenAccount(ctx, signer, req.Mint, signer)
		if err != nil {
			return Event{}, err
		}

		end := t.now + req.DurationSeconds
		task := Task{
			Address:     taskAddr,
			TaskID:      req.TaskID,
			Description: req.Description,
			Creator:     signer,
			Reward:      req.RewardAmount,
			Mint:        req.Mint,
			StartTime:   t.now,
			EndTime:     end,
			Phase:       PhaseOpen,
			Bump:        taskBump,
		}
		if err := t.create(ctx, taskAddr, taskBump, KindTask, task, signer); err != nil {
			return Event{}, err
		}
		esc := Escrow{
			Address:    escAddr,
			Seed:       req.TaskID,
			Creator:    signer,
			RewardMint: req.Mint,
			Vault:      vaultAddr,
			StartTime:  t.now,
			EndTime:    end,
			Bump:       escBump,
		}
		if err := t.create(ctx, escAddr, escBump, KindEscrow, esc, signer); err != nil {
			return Event{}, err
		}
		vault := TokenAccount{Address: vaultAddr, Owner: escAddr, Mint: req.Mint, Bump: vaultBump}
		if err := t.create(ctx, vaultAddr, vaultBump, KindTokenAccount, vault, signer); err != nil {
			return Event{}, err
		}
		if err := t.transfer(ctx, from.Address, vaultAddr, req.RewardAmount, signer); err != nil {
			return Event{}, err
		}
		return Event{Task: &taskAddr, Escrow: &escAddr, Account: &vaultAddr, Amount: req.RewardAmount, Phase: PhaseOpen}, nil
	})
}

// AcceptTask registers the signer as a participant. There is no time gate.
func (e *Engine) AcceptTask(ctx context.Context, signer pda.Address, req AcceptTaskRequest) (Event, error) {
	return e.execute(ctx, OpAcceptTask, signer, func(ctx context.Context, t *txn) (Event, error) {
		taskAddr, _, err := t.derive.Task(req.Creator, req.TaskID)
		if err != nil {
			return Event{}, err
		}
		task, _, err := load[Task](ctx, t, taskAddr, KindTask)
		if err != nil {
			return Event{}, err
		}
		if task.Creator.Equal(signer) {
			return Event{}, errors.Wrapf(ErrNotParticipant, "task %s", taskAddr)
		}
		p, err := t.createParticipation(ctx, taskAddr, signer)
		if errors.Is(err, ErrAlreadyExists) {
			return Event{}, errors.Wrapf(ErrAlreadyAccepted, "%s on task %s", signer, taskAddr)
		}
		if err != nil {
			return Event{}, err
		}
		return Event{Task: &taskAddr, Account: &p.Address}, nil
	})
}

func (t *txn) createParticipation(ctx context.Context, task, participant pda.Address) (Participation, error) {
	addr, bump, err := t.derive.Participation(task, participant)
	if err != nil {
		return Participation{}, err
	}
	p := Participation{Address: addr, Participant: participant, Task: task, Status: StatusAccepted, Bump: bump}
	if err := t.create(ctx, addr, bump, KindParticipation, p, participant); err != nil {
		return Participation{}, err
	}
	return p, nil
}

// SubmitWork records the signer's single submission while the task is open.
// A participant that never accepted is enrolled on the spot.
func (e *Engine) SubmitWork(ctx context.Context, signer pda.Address, req SubmitWorkRequest) (Event, error) {
	return e.execute(ctx, OpSubmitWork, signer, func(ctx context.Context, t *txn) (Event, error) {
		if err := validLink(req.Link); err != nil {
			return Event{}, err
		}
		taskAddr, _, err := t.derive.Task(req.Creator, req.TaskID)
		if err != nil {
			return Event{}, err
		}
		task, taskAcct, err := load[Task](ctx, t, taskAddr, KindTask)
		if err != nil {
			return Event{}, err
		}
		if task.Ended(t.now) {
			return Event{}, errors.Wrapf(ErrTaskEnded, "task %s ended at %d", taskAddr, task.EndTime)
		}
		if task.Creator.Equal(signer) {
			return Event{}, errors.Wrapf(ErrNotParticipant, "task %s", taskAddr)
		}

		partAddr, _, err := t.derive.Participation(taskAddr, signer)
		if err != nil {
			return Event{}, err
		}
		ok, err := t.exists(ctx, partAddr)
		if err != nil {
			return Event{}, err
		}
		if !ok {
			_, err := t.createParticipation(ctx, taskAddr, signer)
			if errors.Is(err, ErrAlreadyExists) {
				// A concurrent first submission enrolled the signer.
				return Event{}, errors.Wrapf(ErrAlreadySubmitted, "%s on task %s", signer, taskAddr)
			}
			if err != nil {
				return Event{}, err
			}
		}
		part, partAcct, err := load[Participation](ctx, t, partAddr, KindParticipation)
		if err != nil {
			return Event{}, err
		}
		if !part.Status.CanAdvanceTo(StatusSubmitted) {
			return Event{}, errors.Wrapf(ErrAlreadySubmitted, "participation is %s", part.Status)
		}

		subAddr, subBump, err := t.derive.Submission(taskAddr, signer)
		if err != nil {
			return Event{}, err
		}
		sub := Submission{
			Address:     subAddr,
			Participant: signer,
			Task:        taskAddr,
			Link:        req.Link,
			SubmittedAt: t.now,
			Bump:        subBump,
		}
		if err := t.create(ctx, subAddr, subBump, KindSubmission, sub, signer); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				return Event{}, errors.Wrapf(ErrAlreadySubmitted, "%s on task %s", signer, taskAddr)
			}
			return Event{}, err
		}

		if task.SubmissionCount == math.MaxUint32 {
			return Event{}, errors.Wrap(ErrEscrowMismatch, "submission count overflows")
		}
		task.SubmissionCount++
		if err := t.update(ctx, taskAcct, task); err != nil {
			return Event{}, err
		}
		part.Status = StatusSubmitted
		if err := t.update(ctx, partAcct, part); err != nil {
			return Event{}, err
		}
		return Event{Task: &taskAddr, Account: &subAddr, Phase: task.PhaseAt(t.now)}, nil
	})
}

// PickWinner lets the creator select one submitter once the task has ended.
func (e *Engine) PickWinner(ctx context.Context, signer pda.Address, req PickWinnerRequest) (Event, error) {
	return e.execute(ctx, OpPickWinner, signer, func(ctx context.Context, t *txn) (Event, error) {
		creator, err := creatorOf(signer, req.Creator)
		if err != nil {
			return Event{}, err
		}
		taskAddr, _, err := t.derive.Task(creator, req.TaskID)
		if err != nil {
			return Event{}, err
		}
		escAddr, _, err := t.derive.Escrow(taskAddr)
		if err != nil {
			return Event{}, err
		}
		subAddr, _, err := t.derive.Submission(taskAddr, req.Participant)
		if err != nil {
			return Event{}, err
		}
		if err := matches("task", req.Task, taskAddr); err != nil {
			return Event{}, err
		}
		if err := matches("escrow", req.Escrow, escAddr); err != nil {
			return Event{}, err
		}
		if err := matches("submission", req.Submission, subAddr); err != nil {
			return Event{}, err
		}

		task, taskAcct, err := load[Task](ctx, t, taskAddr, KindTask)
		if err != nil {
			return Event{}, err
		}
		if !task.Creator.Equal(signer) {
			return Event{}, errors.Wrapf(ErrNotCreator, "task %s", taskAddr)
		}
		if !task.Ended(t.now) {
			return Event{}, errors.Wrapf(ErrTaskNotEnded, "task %s ends at %d", taskAddr, task.EndTime)
		}
		if task.Winner != nil {
			return Event{}, errors.Wrapf(ErrInvalidWinner, "task %s already has winner %s", taskAddr, task.Winner)
		}

		sub, _, err := load[Submission](ctx, t, subAddr, KindSubmission)
		if errors.Is(err, ErrNotFound) {
			return Event{}, errors.Wrapf(ErrNoSubmissions, "%s has no submission on task %s", req.Participant, taskAddr)
		}
		if err != nil {
			return Event{}, err
		}
		if !sub.Task.Equal(taskAddr) || !sub.Participant.Equal(req.Participant) {
			return Event{}, errors.Wrapf(ErrConstraintSeeds, "submission %s belongs to task %s", subAddr, sub.Task)
		}

		esc, escAcct, err := load[Escrow](ctx, t, escAddr, KindEscrow)
		if err != nil {
			return Event{}, err
		}
		if !esc.Creator.Equal(task.Creator) || esc.Seed != task.TaskID {
			return Event{}, errors.Wrapf(ErrEscrowMismatch, "escrow %s does not back task %s", escAddr, taskAddr)
		}

		winner := req.Participant
		task.Winner = &winner
		task.Phase = PhaseSelected
		if err := t.update(ctx, taskAcct, task); err != nil {
			return Event{}, err
		}
		esc.Winner = &winner
		if err := t.update(ctx, escAcct, esc); err != nil {
			return Event{}, err
		}
		return Event{Task: &taskAddr, Escrow: &escAddr, Account: &winner, Phase: PhaseSelected}, nil
	})
}

// finalization is the state shared by claim and refund after every address
// has been recomputed and loaded.
type finalization struct {
	taskAddr pda.Address
	task     Task
	taskAcct Account
	esc      Escrow
}

func (t *txn) loadFinalization(ctx context.Context, creator pda.Address, taskID string, escrow, vault *pda.Address) (finalization, error) {
	var f finalization
	taskAddr, _, err := t.derive.Task(creator, taskID)
	if err != nil {
		return f, err
	}
	escAddr, _, err := t.derive.Escrow(taskAddr)
	if err != nil {
		return f, err
	}
	if err := matches("escrow", escrow, escAddr); err != nil {
		return f, err
	}
	task, taskAcct, err := load[Task](ctx, t, taskAddr, KindTask)
	if err != nil {
		return f, err
	}
	esc, _, err := load[Escrow](ctx, t, escAddr, KindEscrow)
	if err != nil {
		return f, err
	}
	vaultAddr, _, err := t.derive.TokenAccount(escAddr, esc.RewardMint)
	if err != nil {
		return f, err
	}
	if !esc.Vault.Equal(vaultAddr) {
		return f, errors.Wrapf(ErrConstraintSeeds, "escrow %s records vault %s", escAddr, esc.Vault)
	}
	if err := matches("vault", vault, vaultAddr); err != nil {
		return f, err
	}
	if !esc.Creator.Equal(task.Creator) || esc.Seed != task.TaskID {
		return f, errors.Wrapf(ErrEscrowMismatch, "escrow %s does not back task %s", escAddr, taskAddr)
	}
	if !task.Ended(t.now) {
		return f, errors.Wrapf(ErrTaskNotEnded, "task %s ends at %d", taskAddr, task.EndTime)
	}
	return finalization{taskAddr: taskAddr, task: task, taskAcct: taskAcct, esc: esc}, nil
}

// ClaimReward pays the whole vault to the recorded winner and destroys the
// escrow. Deposits of the vault and escrow go to the winner.
func (e *Engine) ClaimReward(ctx context.Context, signer pda.Address, req ClaimRewardRequest) (Event, error) {
	return e.execute(ctx, OpClaimReward, signer, func(ctx context.Context, t *txn) (Event, error) {
		f, err := t.loadFinalization(ctx, req.Creator, req.TaskID, req.Escrow, req.Vault)
		if err != nil {
			return Event{}, err
		}
		if f.task.Winner == nil || !f.task.Winner.Equal(signer) {
			return Event{}, errors.Wrapf(ErrInvalidWinner, "%s is not the winner of task %s", signer, f.taskAddr)
		}
		if f.esc.Winner == nil || !f.esc.Winner.Equal(signer) {
			return Event{}, errors.Wrapf(ErrInvalidWinner, "%s is not the winner of escrow %s", signer, f.esc.Address)
		}

		dest, _, err := t.ensureTokenAccount(ctx, signer, f.esc.RewardMint, signer)
		if err != nil {
			return Event{}, err
		}
		amount, err := t.payout(ctx, f.esc, dest.Address, signer)
		if err != nil {
			return Event{}, err
		}

		partAddr, _, err := t.derive.Participation(f.taskAddr, signer)
		if err != nil {
			return Event{}, err
		}
		part, partAcct, err := load[Participation](ctx, t, partAddr, KindParticipation)
		switch {
		case err == nil:
			if part.Status.CanAdvanceTo(StatusCompleted) {
				part.Status = StatusCompleted
				if err := t.update(ctx, partAcct, part); err != nil {
					return Event{}, err
				}
			}
		case !errors.Is(err, ErrNotFound):
			return Event{}, err
		}

		f.task.Phase = PhasePaid
		if err := t.update(ctx, f.taskAcct, f.task); err != nil {
			return Event{}, err
		}
		return Event{Task: &f.taskAddr, Escrow: addrPtr(f.esc.Address), Account: &dest.Address, Amount: amount, Phase: PhasePaid}, nil
	})
}

// RefundEscrow returns the vault to the creator when no winner was picked.
func (e *Engine) RefundEscrow(ctx context.Context, signer pda.Address, req RefundEscrowRequest) (Event, error) {
	return e.execute(ctx, OpRefundEscrow, signer, func(ctx context.Context, t *txn) (Event, error) {
		creator, err := creatorOf(signer, req.Creator)
		if err != nil {
			return Event{}, err
		}
		f, err := t.loadFinalization(ctx, creator, req.TaskID, req.Escrow, req.Vault)
		if err != nil {
			return Event{}, err
		}
		if f.task.Winner != nil || f.esc.Winner != nil {
			return Event{}, errors.Wrapf(ErrInvalidWinner, "task %s has a winner; refund refused", f.taskAddr)
		}

		dest, _, err := t.ensureTokenAccount(ctx, signer, f.esc.RewardMint, signer)
		if err != nil {
			return Event{}, err
		}
		amount, err := t.refund(ctx, f.esc, dest.Address, signer)
		if err != nil {
			return Event{}, err
		}
		f.task.Phase = PhaseRefunded
		if err := t.update(ctx, f.taskAcct, f.task); err != nil {
			return Event{}, err
		}
		return Event{Task: &f.taskAddr, Escrow: addrPtr(f.esc.Address), Account: &dest.Address, Amount: amount, Phase: PhaseRefunded}, nil
	})
}

// CloseTask destroys the task record and returns its deposit to the creator.
// It is refused while the task's escrow still exists, so funds can never be
// stranded behind a deleted task.
func (e *Engine) CloseTask(ctx context.Context, signer pda.Address, req CloseTaskRequest) (Event, error) {
	return e.execute(ctx, OpCloseTask, signer, func(ctx context.Context, t *txn) (Event, error) {
		creator, err := creatorOf(signer, req.Creator)
		if err != nil {
			return Event{}, err
		}
		taskAddr, _, err := t.derive.Task(creator, req.TaskID)
		if err != nil {
			return Event{}, err
		}
		task, _, err := load[Task](ctx, t, taskAddr, KindTask)
		if err != nil {
			return Event{}, err
		}
		if !task.Creator.Equal(signer) {
			return Event{}, errors.Wrapf(ErrNotCreator, "task %s", taskAddr)
		}
		escAddr, _, err := t.derive.Escrow(taskAddr)
		if err != nil {
			return Event{}, err
		}
		open, err := t.exists(ctx, escAddr)
		if err != nil {
			return Event{}, err
		}
		if open {
			return Event{}, errors.Wrapf(ErrEscrowOpen, "claim or refund escrow %s first", escAddr)
		}
		acct, err := t.destroy(ctx, taskAddr, signer)
		if err != nil {
			return Event{}, err
		}
		return Event{Task: &taskAddr, Amount: acct.Deposit, Phase: PhaseClosed}, nil
	})
}

// CreateMint registers a token denomination with the signer as authority.
func (e *Engine) CreateMint(ctx context.Context, signer pda.Address, req CreateMintRequest) (Event, error) {
	return e.execute(ctx, OpCreateMint, signer, func(ctx context.Context, t *txn) (Event, error) {
		m, err := t.createMint(ctx, signer, req.Symbol, req.Decimals)
		if err != nil {
			return Event{}, err
		}
		return Event{Account: &m.Address}, nil
	})
}

// MintTo issues new tokens; only the mint authority may sign it.
func (e *Engine) MintTo(ctx context.Context, signer pda.Address, req MintToRequest) (Event, error) {
	return e.execute(ctx, OpMintTo, signer, func(ctx context.Context, t *txn) (Event, error) {
		ta, err := t.mintTo(ctx, signer, req.Mint, req.Owner, req.Amount)
		if err != nil {
			return Event{}, err
		}
		return Event{Account: &ta.Address, Amount: req.Amount}, nil
	})
}

// Airdrop credits native balance used for storage deposits.
func (e *Engine) Airdrop(ctx context.Context, owner pda.Address, amount uint64) (Event, error) {
	return e.execute(ctx, OpAirdrop, owner, func(ctx context.Context, t *txn) (Event, error) {
		if amount == 0 {
			return Event{}, errors.Wrap(ErrInvalidArgument, "airdrop amount must be positive")
		}
		if err := t.creditNative(ctx, owner, amount); err != nil {
			return Event{}, err
		}
		return Event{Account: &owner, Amount: amount}, nil
	})
}
