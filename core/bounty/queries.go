package bounty

import (
	"context"

	"github.com/pkg/errors"

	"bounty-backend/core/pda"
)

func fetch[T any](ctx context.Context, l Ledger, addr pda.Address, kind Kind) (T, error) {
	acct, err := l.Get(ctx, addr)
	if err != nil {
		var zero T
		return zero, errors.Wrapf(err, "get %s %s", kind, addr)
	}
	return decode[T](acct, kind)
}

func (e *Engine) GetTask(ctx context.Context, addr pda.Address) (Task, error) {
	return fetch[Task](ctx, e.ledger, addr, KindTask)
}

func (e *Engine) GetEscrow(ctx context.Context, addr pda.Address) (Escrow, error) {
	return fetch[Escrow](ctx, e.ledger, addr, KindEscrow)
}

func (e *Engine) GetParticipation(ctx context.Context, addr pda.Address) (Participation, error) {
	return fetch[Participation](ctx, e.ledger, addr, KindParticipation)
}

func (e *Engine) GetSubmission(ctx context.Context, addr pda.Address) (Submission, error) {
	return fetch[Submission](ctx, e.ledger, addr, KindSubmission)
}

func (e *Engine) GetMint(ctx context.Context, addr pda.Address) (Mint, error) {
	return fetch[Mint](ctx, e.ledger, addr, KindMint)
}

func (e *Engine) GetTokenAccount(ctx context.Context, addr pda.Address) (TokenAccount, error) {
	return fetch[TokenAccount](ctx, e.ledger, addr, KindTokenAccount)
}

// TokenBalance is owner's holding of mint; a missing token account holds zero.
func (e *Engine) TokenBalance(ctx context.Context, owner, mint pda.Address) (uint64, error) {
	addr, _, err := e.derive.TokenAccount(owner, mint)
	if err != nil {
		return 0, err
	}
	ta, err := e.GetTokenAccount(ctx, addr)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ta.Amount, nil
}

// NativeBalance is the balance that pays storage deposits.
func (e *Engine) NativeBalance(ctx context.Context, owner pda.Address) (uint64, error) {
	return e.ledger.Balance(ctx, owner)
}

// TaskView is a task joined with its escrow, resolved against the clock.
type TaskView struct {
	Task         Task    `json:"task"`
	Phase        Phase   `json:"phase"`
	Escrow       *Escrow `json:"escrow,omitempty"`
	VaultBalance uint64  `json:"vault_balance"`
	Now          int64   `json:"now"`
}

func (e *Engine) TaskView(ctx context.Context, addr pda.Address) (TaskView, error) {
	task, err := e.GetTask(ctx, addr)
	if err != nil {
		return TaskView{}, err
	}
	now, err := e.clock.Now(ctx)
	if err != nil {
		return TaskView{}, errors.Wrap(err, "read ledger clock")
	}
	return e.view(ctx, task, now)
}

func (e *Engine) view(ctx context.Context, task Task, now int64) (TaskView, error) {
	v := TaskView{Task: task, Phase: task.PhaseAt(now), Now: now}
	escAddr, _, err := e.derive.Escrow(task.Address)
	if err != nil {
		return v, err
	}
	esc, err := e.GetEscrow(ctx, escAddr)
	switch {
	case errors.Is(err, ErrNotFound):
		return v, nil
	case err != nil:
		return v, err
	}
	v.Escrow = &esc
	vault, err := e.GetTokenAccount(ctx, esc.Vault)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return v, err
	default:
		v.VaultBalance = vault.Amount
	}
	return v, nil
}

// TaskFilter narrows ListTasks. Phase matches the clock-resolved phase.
type TaskFilter struct {
	Creator *pda.Address
	Phase   Phase
	Limit   int
	Offset  int
}

func (e *Engine) ListTasks(ctx context.Context, f TaskFilter) ([]TaskView, error) {
	if f.Limit < 0 || f.Offset < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "limit %d and offset %d must not be negative", f.Limit, f.Offset)
	}
	if f.Phase != "" && !f.Phase.Valid() {
		return nil, errors.Wrapf(ErrInvalidArgument, "unknown phase %q", f.Phase)
	}
	now, err := e.clock.Now(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read ledger clock")
	}
	af := AccountFilter{Kind: KindTask, Fields: map[string]string{}}
	if f.Creator != nil {
		af.Fields["creator"] = f.Creator.String()
	}
	// open and awaiting_selection share a stored phase and are split by time
	// after the read, so paging happens here instead of in the store.
	derived := f.Phase == PhaseOpen || f.Phase == PhaseAwaitingSelection
	switch {
	case derived:
		af.Fields["phase"] = string(PhaseOpen)
	case f.Phase != "":
		af.Fields["phase"] = string(f.Phase)
		af.Limit, af.Offset = f.Limit, f.Offset
	default:
		af.Limit, af.Offset = f.Limit, f.Offset
	}
	accts, err := e.ledger.List(ctx, af)
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}

	out := make([]TaskView, 0, len(accts))
	for _, acct := range accts {
		task, err := decode[Task](acct, KindTask)
		if err != nil {
			return nil, err
		}
		if derived && task.PhaseAt(now) != f.Phase {
			continue
		}
		v, err := e.view(ctx, task, now)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if derived {
		out = page(out, f.Limit, f.Offset)
	}
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (e *Engine) ListSubmissions(ctx context.Context, task pda.Address) ([]Submission, error) {
	return list[Submission](ctx, e.ledger, KindSubmission, task)
}

func (e *Engine) ListParticipations(ctx context.Context, task pda.Address) ([]Participation, error) {
	return list[Participation](ctx, e.ledger, KindParticipation, task)
}

func list[T any](ctx context.Context, l Ledger, kind Kind, task pda.Address) ([]T, error) {
	accts, err := l.List(ctx, AccountFilter{Kind: kind, Fields: map[string]string{"task": task.String()}})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", kind)
	}
	out := make([]T, 0, len(accts))
	for _, acct := range accts {
		rec, err := decode[T](acct, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
