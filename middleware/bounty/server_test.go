package bounty

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
	"bounty-backend/metrics"
	"bounty-backend/middleware"
	auth "bounty-backend/storage/auth"
	store "bounty-backend/storage/bounty"
)

const (
	adminKey        = "admin-key"
	genesis   int64 = 1_700_000_000
	usdc            = uint64(1_000_000)
	faucetAmt       = uint64(10_000_000_000)
)

type harness struct {
	t       *testing.T
	handler http.Handler
	engine  *bounty.Engine
	clock   *bounty.ManualClock
	metrics *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := bounty.NewManualClock(genesis)
	events := bounty.NewEventLog(32)
	hub := NewBroadcaster()
	m := metrics.New()
	engine := bounty.NewEngine(store.NewMemoryStore(), clock,
		bounty.WithEventSink(events), bounty.WithEventSink(hub), bounty.WithObserver(m))

	keys := auth.NewAPIKeyStore()
	keys.Seed(adminKey, "test", "test")

	srv := NewServer(Config{
		Engine:        engine,
		Auth:          auth.NewAuthenticator(auth.NewChallengeStore(0)),
		APIKeys:       keys,
		KeyIssuer:     keys,
		Events:        events,
		Broadcaster:   hub,
		Metrics:       m,
		FaucetEnabled: true,
		FaucetMax:     faucetAmt,
	})
	return &harness{t: t, handler: srv.Router(), engine: engine, clock: clock, metrics: m}
}

func (h *harness) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) key() (ed25519.PrivateKey, pda.Address) {
	h.t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(h.t, err)
	addr, err := pda.AddressFromPublicKey(pub)
	require.NoError(h.t, err)

	rec := h.do(http.MethodPost, "/v1/admin/faucet", FaucetRequest{Owner: addr, Amount: faucetAmt}, map[string]string{"X-API-Key": adminKey})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return priv, addr
}

func (h *harness) envelope(key ed25519.PrivateKey, op bounty.Op, payload interface{}) auth.Envelope {
	h.t.Helper()
	signer, err := pda.AddressFromPublicKey(key.Public().(ed25519.PublicKey))
	require.NoError(h.t, err)
	rec := h.do(http.MethodPost, "/v1/challenges", ChallengeRequest{Signer: signer}, nil)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var ch auth.Challenge
	require.NoError(h.t, json.NewDecoder(rec.Body).Decode(&ch))

	env, err := auth.Sign(key, op, ch.Nonce, payload)
	require.NoError(h.t, err)
	return env
}

func (h *harness) tx(key ed25519.PrivateKey, op bounty.Op, payload interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.do(http.MethodPost, "/v1/tx/"+string(op), h.envelope(key, op, payload), nil)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, rec.Code, body.Error.Code)
	return body.Error.Error
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	creatorKey, creator := h.key()
	workerKey, worker := h.key()

	rec := h.tx(creatorKey, bounty.OpCreateMint, bounty.CreateMintRequest{Symbol: "USDC", Decimals: 6})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	mint, _, err := h.engine.Deriver().Mint(creator, "USDC")
	require.NoError(t, err)

	rec = h.tx(creatorKey, bounty.OpMintTo, bounty.MintToRequest{Mint: mint, Owner: creator, Amount: 100 * usdc})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.tx(creatorKey, bounty.OpCreateTask, bounty.CreateTaskRequest{
		TaskID: "logo", Description: "design a logo", RewardAmount: 40 * usdc, DurationSeconds: 3600, Mint: mint,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created TxResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.NotNil(t, created.Event.Task)
	taskAddr := *created.Event.Task

	rec = h.do(http.MethodGet, "/v1/tasks/"+taskAddr.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view bounty.TaskView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, bounty.PhaseOpen, view.Phase)
	assert.Equal(t, 40*usdc, view.VaultBalance)

	rec = h.tx(workerKey, bounty.OpAcceptTask, bounty.AcceptTaskRequest{Creator: creator, TaskID: "logo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = h.tx(workerKey, bounty.OpSubmitWork, bounty.SubmitWorkRequest{Creator: creator, TaskID: "logo", Link: "https://example.com/logo.svg"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.tx(creatorKey, bounty.OpPickWinner, bounty.PickWinnerRequest{TaskID: "logo", Participant: worker})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "TaskNotEnded", errorCode(t, rec))

	h.clock.Advance(3600)
	rec = h.tx(creatorKey, bounty.OpPickWinner, bounty.PickWinnerRequest{TaskID: "logo", Participant: worker})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	claim := bounty.ClaimRewardRequest{Creator: creator, TaskID: "logo"}
	rec = h.tx(creatorKey, bounty.OpClaimReward, claim)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "InvalidWinner", errorCode(t, rec))

	rec = h.tx(workerKey, bounty.OpClaimReward, claim)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.tx(workerKey, bounty.OpClaimReward, claim)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/v1/balances/"+worker.String()+"?mint="+mint.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bal BalanceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bal))
	assert.Equal(t, 40*usdc, bal.Amount)
	assert.Equal(t, "40 USDC", bal.Display)

	rec = h.do(http.MethodGet, "/v1/tasks?creator="+creator.String()+"&phase=paid", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = h.do(http.MethodGet, "/v1/tasks/"+taskAddr.String()+"/submissions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://example.com/logo.svg")

	rec = h.do(http.MethodGet, "/v1/tasks/"+taskAddr.String()+"/submissions/"+worker.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sub bounty.Submission
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sub))
	assert.Equal(t, worker, sub.Participant)
	assert.Equal(t, taskAddr, sub.Task)

	rec = h.do(http.MethodGet, "/v1/tasks/"+taskAddr.String()+"/submissions/"+creator.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/v1/tasks/"+taskAddr.String()+"/participations", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(bounty.StatusCompleted))

	rec = h.do(http.MethodGet, "/v1/events?op=claim_reward", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestEnvelopeVerification(t *testing.T) {
	h := newHarness(t)
	key, _ := h.key()
	payload := bounty.CreateMintRequest{Symbol: "GOLD", Decimals: 2}

	t.Run("replayed nonce", func(t *testing.T) {
		env := h.envelope(key, bounty.OpCreateMint, payload)
		rec := h.do(http.MethodPost, "/v1/tx/create_mint", env, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = h.do(http.MethodPost, "/v1/tx/create_mint", env, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Unauthorized", errorCode(t, rec))
	})

	t.Run("tampered payload", func(t *testing.T) {
		env := h.envelope(key, bounty.OpCreateMint, bounty.CreateMintRequest{Symbol: "SILVER", Decimals: 2})
		env.Payload = json.RawMessage(`{"symbol":"COPPER","decimals":2}`)
		rec := h.do(http.MethodPost, "/v1/tx/create_mint", env, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("signed for another op", func(t *testing.T) {
		env := h.envelope(key, bounty.OpCreateMint, payload)
		rec := h.do(http.MethodPost, "/v1/tx/close_task", env, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown op", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/v1/tx/airdrop", h.envelope(key, bounty.OpAirdrop, map[string]int{"amount": 1}), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown payload field", func(t *testing.T) {
		rec := h.tx(key, bounty.OpCreateMint, map[string]interface{}{"symbol": "IRON", "decimals": 0, "supply": 5})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "InvalidArgument", errorCode(t, rec))
	})
}

func TestFaucetRequiresAPIKey(t *testing.T) {
	h := newHarness(t)
	_, owner := h.key()

	rec := h.do(http.MethodPost, "/v1/admin/faucet", FaucetRequest{Owner: owner, Amount: 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/v1/admin/faucet", FaucetRequest{Owner: owner, Amount: faucetAmt + 1}, map[string]string{"X-API-Key": adminKey})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	native, err := h.engine.NativeBalance(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, faucetAmt, native)
}

func TestIssueAPIKey(t *testing.T) {
	h := newHarness(t)
	admin := map[string]string{"X-API-Key": adminKey}

	rec := h.do(http.MethodPost, "/v1/admin/api-keys", APIKeyRequest{Label: "ci"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/v1/admin/api-keys", APIKeyRequest{}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/v1/admin/api-keys", APIKeyRequest{Label: "ci"}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var issued auth.APIKey
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&issued))
	assert.Equal(t, "ci", issued.Label)
	require.Len(t, issued.Key, 64)

	_, owner := h.key()
	rec = h.do(http.MethodPost, "/v1/admin/faucet", FaucetRequest{Owner: owner, Amount: 1}, map[string]string{"X-API-Key": issued.Key})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestReadEndpoints(t *testing.T) {
	h := newHarness(t)
	key, creator := h.key()
	require.Equal(t, http.StatusOK, h.tx(key, bounty.OpCreateMint, bounty.CreateMintRequest{Symbol: "USDC", Decimals: 6}).Code)
	mint, _, err := h.engine.Deriver().Mint(creator, "USDC")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, h.tx(key, bounty.OpMintTo, bounty.MintToRequest{Mint: mint, Owner: creator, Amount: usdc}).Code)
	rec := h.tx(key, bounty.OpCreateTask, bounty.CreateTaskRequest{TaskID: "qr", RewardAmount: usdc, DurationSeconds: 60, Mint: mint})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	want, err := h.engine.Deriver().Addresses(creator, "qr", nil, &mint)
	require.NoError(t, err)

	t.Run("derive", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/v1/derive?creator="+creator.String()+"&task_id=qr&mint="+mint.String(), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got bounty.TaskAddresses
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, want, got)

		rec = h.do(http.MethodGet, "/v1/derive?task_id=qr", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("qr", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/v1/tasks/"+want.Task.String()+"/qr?size=128", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	})

	t.Run("account", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/v1/accounts/"+want.Escrow.String(), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var acct bounty.Account
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&acct))
		assert.Equal(t, bounty.KindEscrow, acct.Kind)

		rec = h.do(http.MethodGet, "/v1/accounts/not-an-address", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = h.do(http.MethodGet, "/v1/tasks/"+want.Escrow.String(), nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "an escrow is not a task")
	})

	t.Run("phase filter", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/v1/tasks?phase=bogus", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("openapi", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/v1/openapi.json", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Contains(t, doc["paths"], "/tx/{op}")
	})

	t.Run("metrics", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/metrics", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `route="/v1/tx/{op}"`)
		assert.Contains(t, body, `bounty_operations_total{code="ok",op="create_task"} 1`)
		assert.False(t, strings.Contains(body, want.Task.String()))
	})

	t.Run("health", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/healthz", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusFor(bounty.Code(bounty.ErrAlreadySubmitted)))
	assert.Equal(t, http.StatusBadRequest, StatusFor(bounty.Code(bounty.ErrConstraintSeeds)))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(bounty.Code(bounty.ErrTaskEnded)))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(bounty.Code(assert.AnError)))
}

func TestBroadcasterDropsForSlowListeners(t *testing.T) {
	b := NewBroadcaster()
	ch, detach := b.Subscribe(1)
	require.NoError(t, b.Publish(context.Background(), bounty.Event{ID: "1"}))
	require.NoError(t, b.Publish(context.Background(), bounty.Event{ID: "2"}))
	assert.Equal(t, "1", (<-ch).ID)
	detach()
	require.NoError(t, b.Publish(context.Background(), bounty.Event{ID: "3"}))
	assert.Len(t, ch, 0)
}
