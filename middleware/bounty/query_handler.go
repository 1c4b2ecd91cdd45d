package bounty

import (
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
)

// handleListTasks handles GET /v1/tasks
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	creator, err := optionalAddress(r, "creator")
	if err != nil {
		Error(w, err)
		return
	}
	phase := bounty.Phase(r.URL.Query().Get("phase"))
	if phase != "" && !phase.Valid() {
		Error(w, errors.Wrapf(bounty.ErrInvalidArgument, "unknown phase %q", phase))
		return
	}

	tasks, err := s.cfg.Engine.ListTasks(r.Context(), bounty.TaskFilter{
		Creator: creator,
		Phase:   phase,
		Limit:   intFromQuery(r, "limit", 50),
		Offset:  intFromQuery(r, "offset", 0),
	})
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// handleGetTask handles GET /v1/tasks/{address}
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		Error(w, err)
		return
	}
	view, err := s.cfg.Engine.TaskView(r.Context(), addr)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

// handleSubmissions handles GET /v1/tasks/{address}/submissions
func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		Error(w, err)
		return
	}
	subs, err := s.cfg.Engine.ListSubmissions(r.Context(), addr)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"submissions": subs,
		"total":       len(subs),
	})
}

// handleGetSubmission handles GET /v1/tasks/{address}/submissions/{participant}
func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	task, err := addressParam(r, "address")
	if err != nil {
		Error(w, err)
		return
	}
	participant, err := addressParam(r, "participant")
	if err != nil {
		Error(w, err)
		return
	}
	addr, _, err := s.cfg.Engine.Deriver().Submission(task, participant)
	if err != nil {
		Error(w, err)
		return
	}
	sub, err := s.cfg.Engine.GetSubmission(r.Context(), addr)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sub)
}

// handleParticipations handles GET /v1/tasks/{address}/participations
func (s *Server) handleParticipations(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		Error(w, err)
		return
	}
	parts, err := s.cfg.Engine.ListParticipations(r.Context(), addr)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"participations": parts,
		"total":          len(parts),
	})
}

// TaskURI is what the task QR code encodes: enough for a wallet to derive
// every address of the task.
func TaskURI(task bounty.Task) string {
	q := url.Values{}
	q.Set("creator", task.Creator.String())
	q.Set("task_id", task.TaskID)
	q.Set("mint", task.Mint.String())
	return "bounty:" + task.Address.String() + "?" + q.Encode()
}

// handleTaskQR handles GET /v1/tasks/{address}/qr
func (s *Server) handleTaskQR(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		Error(w, err)
		return
	}
	task, err := s.cfg.Engine.GetTask(r.Context(), addr)
	if err != nil {
		Error(w, err)
		return
	}
	size := intFromQuery(r, "size", 256)
	if size < 64 {
		size = 64
	}
	if size > 1024 {
		size = 1024
	}
	png, err := qrcode.Encode(TaskURI(task), qrcode.Medium, size)
	if err != nil {
		Error(w, errors.Wrap(err, "render qr code"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// handleAccount handles GET /v1/accounts/{address}
func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		Error(w, err)
		return
	}
	acct, err := s.cfg.Engine.Ledger().Get(r.Context(), addr)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, acct)
}

// BalanceResponse reports native and, with ?mint=, token holdings.
type BalanceResponse struct {
	Owner   pda.Address  `json:"owner"`
	Native  uint64       `json:"native"`
	Mint    *pda.Address `json:"mint,omitempty"`
	Amount  uint64       `json:"amount"`
	Display string       `json:"display,omitempty"`
}

// handleBalance handles GET /v1/balances/{owner}
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	owner, err := addressParam(r, "owner")
	if err != nil {
		Error(w, err)
		return
	}
	mint, err := optionalAddress(r, "mint")
	if err != nil {
		Error(w, err)
		return
	}
	resp := BalanceResponse{Owner: owner, Mint: mint}
	if resp.Native, err = s.cfg.Engine.NativeBalance(r.Context(), owner); err != nil {
		Error(w, err)
		return
	}
	if mint != nil {
		m, err := s.cfg.Engine.GetMint(r.Context(), *mint)
		if err != nil {
			Error(w, err)
			return
		}
		if resp.Amount, err = s.cfg.Engine.TokenBalance(r.Context(), owner, *mint); err != nil {
			Error(w, err)
			return
		}
		resp.Display = bounty.FormatAmount(resp.Amount, m.Decimals) + " " + m.Symbol
	}
	JSON(w, http.StatusOK, resp)
}

// handleDerive handles GET /v1/derive
func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	creator, err := optionalAddress(r, "creator")
	if err != nil {
		Error(w, err)
		return
	}
	if creator == nil {
		Error(w, errors.Wrap(bounty.ErrInvalidArgument, "creator is required"))
		return
	}
	participant, err := optionalAddress(r, "participant")
	if err != nil {
		Error(w, err)
		return
	}
	mint, err := optionalAddress(r, "mint")
	if err != nil {
		Error(w, err)
		return
	}
	addrs, err := s.cfg.Engine.Deriver().Addresses(*creator, r.URL.Query().Get("task_id"), participant, mint)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, addrs)
}
