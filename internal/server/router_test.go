package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-flow/internal/handler"
	"wallet-flow/internal/modal"
	"wallet-flow/internal/model"
	"wallet-flow/internal/notify"
	"wallet-flow/internal/shell"
	"wallet-flow/internal/txflow"
	"wallet-flow/internal/wizard"
	"wallet-flow/pkg/cache"
	"wallet-flow/pkg/errno"
	"wallet-flow/pkg/timer"
)

const (
	addrA  = "0x1111111111111111111111111111111111111111"
	addrB  = "0x2222222222222222222222222222222222222222"
	txHash = "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type fixture struct {
	t      *testing.T
	router *gin.Engine
	shell  *shell.Shell
	clock  *timer.Manual
}

func newFixture(t *testing.T, opts shell.Options, audit *fakeAudit) *fixture {
	t.Helper()
	clock := timer.NewManual()
	opts.Scheduler = clock
	s := shell.New(opts)
	t.Cleanup(s.Close)

	var h *handler.FlowHandler
	if audit != nil {
		h = handler.NewFlowHandler(s, audit)
	} else {
		h = handler.NewFlowHandler(s, nil)
	}
	return &fixture{t: t, router: NewHTTPRouter(h), shell: s, clock: clock}
}

func (f *fixture) do(method, path string, body any) envelope {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())

	var env envelope
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func (f *fixture) ok(method, path string, body any, out any) {
	f.t.Helper()
	env := f.do(method, path, body)
	require.Equal(f.t, errno.OK.Code, env.Code, env.Msg)
	if out != nil {
		require.NoError(f.t, json.Unmarshal(env.Data, out))
	}
}

func (f *fixture) sendEvent(id string, typ txflow.EventType, payload any) envelope {
	return f.do(http.MethodPost, "/api/v1/transactions/"+id+"/events", gin.H{"type": typ, "payload": payload})
}

func TestHealthAndPing(t *testing.T) {
	f := newFixture(t, shell.Options{}, nil)

	var health map[string]string
	f.ok(http.MethodGet, "/health", nil, &health)
	assert.Equal(t, "UP", health["status"])

	var pong map[string]bool
	f.ok(http.MethodGet, "/api/v1/ping", nil, &pong)
	assert.True(t, pong["pong"])
}

func TestTransactionLifecycle(t *testing.T) {
	f := newFixture(t, shell.Options{}, nil)

	var snap txflow.Snapshot
	f.ok(http.MethodPost, "/api/v1/transactions", gin.H{
		"id":    "tx-1",
		"draft": gin.H{"from": addrA, "to": addrB, "amount": "1.5"},
	}, &snap)
	assert.Equal(t, txflow.StateInputting, snap.State)

	f.ok(http.MethodPost, "/api/v1/transactions/tx-1/validate", nil, &snap)
	assert.Equal(t, txflow.StateConfirming, snap.State)

	for _, ev := range []struct {
		typ     txflow.EventType
		payload any
	}{
		{txflow.EventSign, nil},
		{txflow.EventBroadcast, nil},
		{txflow.EventSubmitted, gin.H{"tx_hash": txHash}},
		{txflow.EventSuccess, nil},
	} {
		env := f.sendEvent("tx-1", ev.typ, ev.payload)
		require.Equal(t, errno.OK.Code, env.Code, env.Msg)
	}

	f.ok(http.MethodGet, "/api/v1/transactions/tx-1", nil, &snap)
	assert.Equal(t, txflow.StateSuccess, snap.State)
	assert.Equal(t, txHash, snap.Context.TxHash)

	var list []txflow.Snapshot
	f.ok(http.MethodGet, "/api/v1/transactions", nil, &list)
	assert.Len(t, list, 1)

	var ns struct {
		Visible []notify.Notification `json:"visible"`
	}
	f.ok(http.MethodGet, "/api/v1/notifications", nil, &ns)
	require.Len(t, ns.Visible, 1)
	assert.Equal(t, "Transaction confirmed", ns.Visible[0].Message)

	f.ok(http.MethodPost, "/api/v1/transactions/tx-1/reset", nil, &snap)
	assert.Equal(t, txflow.StateIdle, snap.State)

	f.ok(http.MethodDelete, "/api/v1/transactions/tx-1", nil, nil)
	assert.Equal(t, errno.ErrTransactionNotFound.Code, f.do(http.MethodGet, "/api/v1/transactions/tx-1", nil).Code)
}

func TestValidateRejectsBadDraft(t *testing.T) {
	f := newFixture(t, shell.Options{}, nil)

	var snap txflow.Snapshot
	f.ok(http.MethodPost, "/api/v1/transactions", gin.H{"id": "tx-1", "draft": gin.H{"to": addrB}}, &snap)
	f.ok(http.MethodPost, "/api/v1/transactions/tx-1/validate", nil, &snap)

	assert.Equal(t, txflow.StateInputting, snap.State)
	assert.Contains(t, snap.Context.Error, txflow.ErrInvalidFrom.Error())
	assert.Len(t, f.shell.Notifications.Visible(), 1)
}

func TestEventErrors(t *testing.T) {
	f := newFixture(t, shell.Options{}, nil)
	f.ok(http.MethodPost, "/api/v1/transactions", gin.H{"id": "tx-1"}, nil)

	env := f.sendEvent("tx-1", txflow.EventSign, nil)
	assert.Equal(t, errno.ErrIllegalTransition.Code, env.Code)

	env = f.sendEvent("tx-1", "TELEPORT", nil)
	assert.Equal(t, errno.ErrUnknownEvent.Code, env.Code)

	env = f.sendEvent("missing", txflow.EventStart, nil)
	assert.Equal(t, errno.ErrTransactionNotFound.Code, env.Code)

	env = f.do(http.MethodPost, "/api/v1/transactions/tx-1/events", gin.H{"payload": gin.H{}})
	assert.Equal(t, errno.ErrBind.Code, env.Code)
}

func TestRetryScheduledOverHTTP(t *testing.T) {
	f := newFixture(t, shell.Options{}, nil)
	f.ok(http.MethodPost, "/api/v1/transactions", gin.H{
		"id":    "tx-1",
		"draft": gin.H{"from": addrA, "to": addrB, "amount": "1"},
	}, nil)
	f.ok(http.MethodPost, "/api/v1/transactions/tx-1/validate", nil, nil)
	for _, typ := range []txflow.EventType{txflow.EventSign, txflow.EventBroadcast} {
		require.Equal(t, errno.OK.Code, f.sendEvent("tx-1", typ, nil).Code)
	}

	var snap txflow.Snapshot
	f.ok(http.MethodPost, "/api/v1/transactions/tx-1/events", gin.H{
		"type": txflow.EventError, "payload": gin.H{"error": "nonce too low"},
	}, &snap)
	assert.Equal(t, txflow.StateError, snap.State)
	assert.True(t, snap.RetryScheduled)

	f.clock.Advance(time.Second)
	f.ok(http.MethodGet, "/api/v1/transactions/tx-1", nil, &snap)
	assert.Equal(t, txflow.StateInputting, snap.State)
	assert.Equal(t, 1, snap.Context.RetryCount)
}

func TestNotificationEndpoints(t *testing.T) {
	f := newFixture(t, shell.Options{}, nil)

	var added map[string]string
	f.ok(http.MethodPost, "/api/v1/notifications", gin.H{"message": "hello", "priority": "warning", "duration_ms": -1}, &added)
	require.NotEmpty(t, added["id"])

	v := f.shell.Notifications.Visible()
	require.Len(t, v, 1)
	assert.Equal(t, notify.PriorityWarning, v[0].Priority)
	assert.Equal(t, notify.Forever, v[0].Duration)

	env := f.do(http.MethodPost, "/api/v1/notifications", gin.H{"message": "x", "priority": "loud"})
	assert.Equal(t, errno.ErrBind.Code, env.Code)
	assert.Contains(t, env.Msg, "Priority")

	env = f.do(http.MethodPost, "/api/v1/notifications", gin.H{"message": "x", "duration_ms": -5})
	assert.Equal(t, errno.ErrBind.Code, env.Code)

	env = f.do(http.MethodPost, "/api/v1/notifications/"+added["id"]+"/trigger", nil)
	assert.Equal(t, errno.ErrNotificationInvalid.Code, env.Code)

	var removed map[string]bool
	f.ok(http.MethodDelete, "/api/v1/notifications/"+added["id"], nil, &removed)
	assert.True(t, removed["removed"])
	f.ok(http.MethodDelete, "/api/v1/notifications/"+added["id"], nil, &removed)
	assert.False(t, removed["removed"])

	f.ok(http.MethodPost, "/api/v1/notifications", gin.H{"message": "a"}, nil)
	f.ok(http.MethodDelete, "/api/v1/notifications", nil, nil)
	assert.Empty(t, f.shell.Notifications.Visible())
}

func TestModalEndpoints(t *testing.T) {
	f := newFixture(t, shell.Options{}, nil)

	f.ok(http.MethodPost, "/api/v1/modals", gin.H{"id": "confirm", "component": "ConfirmTx"}, nil)
	f.ok(http.MethodPost, "/api/v1/modals", gin.H{"id": "pin", "component": "PinPad", "close_on_escape": false}, nil)

	var res struct {
		Closed bool          `json:"closed"`
		Stack  []modal.Modal `json:"stack"`
	}
	f.ok(http.MethodPost, "/api/v1/modals/keys", gin.H{"key": "Escape"}, &res)
	assert.False(t, res.Closed)
	assert.Len(t, res.Stack, 2)

	var top modal.Modal
	f.ok(http.MethodPost, "/api/v1/modals/pop", nil, &top)
	assert.Equal(t, "pin", top.ID)

	f.ok(http.MethodPost, "/api/v1/modals/keys", gin.H{"key": "Escape"}, &res)
	assert.True(t, res.Closed)
	assert.Empty(t, res.Stack)

	assert.Equal(t, errno.ErrModalNotFound.Code, f.do(http.MethodPost, "/api/v1/modals/pop", nil).Code)
	assert.Equal(t, errno.ErrModalNotFound.Code, f.do(http.MethodDelete, "/api/v1/modals/nope", nil).Code)
	assert.Equal(t, errno.ErrBind.Code, f.do(http.MethodPost, "/api/v1/modals", gin.H{}).Code)
}

type wizardView struct {
	ID       string          `json:"id"`
	Template string          `json:"template"`
	State    wizard.RunState `json:"state"`
}

type stepResult struct {
	Advanced bool       `json:"advanced"`
	Wizard   wizardView `json:"wizard"`
}

func TestSendWizardSubmit(t *testing.T) {
	f := newFixture(t, shell.Options{}, nil)

	var w wizardView
	f.ok(http.MethodPost, "/api/v1/wizards", gin.H{"id": "send-1", "template": "send"}, &w)
	assert.Equal(t, "recipient", w.State.CurrentStepID)

	var next stepResult
	f.ok(http.MethodPost, "/api/v1/wizards/send-1/next", nil, &next)
	assert.False(t, next.Advanced)
	assert.Len(t, f.shell.Notifications.Visible(), 1)

	f.ok(http.MethodPatch, "/api/v1/wizards/send-1/steps/recipient", gin.H{"data": gin.H{"from": addrA, "to": addrB}}, nil)
	f.ok(http.MethodPost, "/api/v1/wizards/send-1/next", nil, &next)
	assert.True(t, next.Advanced)
	f.ok(http.MethodPatch, "/api/v1/wizards/send-1/steps/amount", gin.H{"data": gin.H{"amount": "2"}}, nil)
	f.ok(http.MethodPost, "/api/v1/wizards/send-1/next", nil, &next)
	assert.Equal(t, "review", next.Wizard.State.CurrentStepID)

	var snap txflow.Snapshot
	f.ok(http.MethodPost, "/api/v1/wizards/send-1/submit", nil, &snap)
	assert.Equal(t, "send-1", snap.FlowID)
	assert.Equal(t, txflow.StateInputting, snap.State)
	assert.Equal(t, addrB, snap.Context.To)

	assert.Equal(t, errno.ErrWizardNotFound.Code, f.do(http.MethodGet, "/api/v1/wizards/send-1", nil).Code)
}

func TestSubmitRequiresValidatedSteps(t *testing.T) {
	f := newFixture(t, shell.Options{}, nil)
	f.ok(http.MethodPost, "/api/v1/wizards", gin.H{"id": "send-1", "template": "send"}, nil)

	f.ok(http.MethodPatch, "/api/v1/wizards/send-1/steps/recipient", gin.H{"data": gin.H{"to": "not-an-address"}}, nil)
	f.ok(http.MethodPatch, "/api/v1/wizards/send-1/steps/amount", gin.H{"data": gin.H{"amount": "-5"}}, nil)
	// GoTo 跳过校验直接到确认页
	f.ok(http.MethodPost, "/api/v1/wizards/send-1/goto", gin.H{"step_id": "review"}, nil)

	env := f.do(http.MethodPost, "/api/v1/wizards/send-1/submit", nil)
	assert.Equal(t, errno.ErrWizardIncomplete.Code, env.Code)
	assert.Empty(t, f.shell.Transactions())

	var w wizardView
	f.ok(http.MethodGet, "/api/v1/wizards/send-1", nil, &w)
	assert.Equal(t, "review", w.State.CurrentStepID)
}

func TestWizardNavigationErrors(t *testing.T) {
	f := newFixture(t, shell.Options{}, nil)

	assert.Equal(t, errno.ErrUnknownTemplate.Code,
		f.do(http.MethodPost, "/api/v1/wizards", gin.H{"template": "swap"}).Code)

	var w wizardView
	f.ok(http.MethodPost, "/api/v1/wizards", gin.H{"template": "inheritance"}, &w)
	require.NotEmpty(t, w.ID)
	base := "/api/v1/wizards/" + w.ID

	assert.Equal(t, errno.ErrStepNotFound.Code, f.do(http.MethodPost, base+"/goto", gin.H{"step_id": "nope"}).Code)
	assert.Equal(t, errno.ErrStepNotFound.Code,
		f.do(http.MethodPatch, base+"/steps/nope", gin.H{"data": gin.H{"a": 1}}).Code)
	assert.Equal(t, errno.ErrUnknownTemplate.Code, f.do(http.MethodPost, base+"/submit", nil).Code)

	f.ok(http.MethodPost, base+"/goto", gin.H{"step_id": "delay"}, &w)
	assert.Equal(t, "delay", w.State.CurrentStepID)

	var prev struct {
		Moved  bool       `json:"moved"`
		Wizard wizardView `json:"wizard"`
	}
	f.ok(http.MethodPost, base+"/previous", nil, &prev)
	assert.True(t, prev.Moved)
	assert.Equal(t, "allocation", prev.Wizard.State.CurrentStepID)

	f.ok(http.MethodPost, base+"/reset", nil, &w)
	assert.Equal(t, "beneficiaries", w.State.CurrentStepID)

	var tpl struct {
		Templates []string `json:"templates"`
		Open      []string `json:"open"`
	}
	f.ok(http.MethodGet, "/api/v1/wizards/templates", nil, &tpl)
	assert.ElementsMatch(t, []string{"send", "inheritance"}, tpl.Templates)
	assert.Equal(t, []string{w.ID}, tpl.Open)

	f.ok(http.MethodDelete, base, nil, nil)
	assert.Equal(t, errno.ErrWizardNotFound.Code, f.do(http.MethodDelete, base, nil).Code)
}

func TestWizardDraftSurvivesRestart(t *testing.T) {
	drafts := cache.NewMemoryCache(time.Hour, time.Hour)
	f := newFixture(t, shell.Options{Drafts: drafts, DraftTTL: time.Hour}, nil)

	f.ok(http.MethodPost, "/api/v1/wizards", gin.H{"id": "send-1", "template": "send"}, nil)
	f.ok(http.MethodPatch, "/api/v1/wizards/send-1/steps/recipient", gin.H{"data": gin.H{"to": addrB}}, nil)
	f.ok(http.MethodPost, "/api/v1/wizards/send-1/next", nil, nil)

	restarted := newFixture(t, shell.Options{Drafts: drafts}, nil)
	var w wizardView
	restarted.ok(http.MethodGet, "/api/v1/wizards/send-1", nil, &w)
	assert.Equal(t, "send", w.Template)
	assert.Equal(t, "amount", w.State.CurrentStepID)
	assert.Equal(t, []string{"recipient"}, w.State.CompletedSteps)
}

type fakeAudit struct {
	records []model.TransitionRecord
}

func (f *fakeAudit) Save(_ context.Context, rec *model.TransitionRecord) error {
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeAudit) ListByFlow(_ context.Context, flowID string, limit int) ([]model.TransitionRecord, error) {
	var out []model.TransitionRecord
	for _, r := range f.records {
		if r.FlowID == flowID && (limit <= 0 || len(out) < limit) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAudit) Purge(context.Context, time.Time) (int64, error) { return 0, nil }

func TestTransactionAudit(t *testing.T) {
	f := newFixture(t, shell.Options{}, nil)
	assert.Equal(t, errno.ErrDatabase.Code, f.do(http.MethodGet, "/api/v1/transactions/tx-1/audit", nil).Code)

	audit := &fakeAudit{records: []model.TransitionRecord{
		{FlowID: "tx-1", FromState: "idle", ToState: "inputting", Event: "START"},
		{FlowID: "tx-1", FromState: "inputting", ToState: "validating", Event: "VALIDATE"},
		{FlowID: "tx-2", FromState: "idle", ToState: "inputting", Event: "START"},
	}}
	f = newFixture(t, shell.Options{}, audit)

	var recs []model.TransitionRecord
	f.ok(http.MethodGet, "/api/v1/transactions/tx-1/audit?limit=1", nil, &recs)
	require.Len(t, recs, 1)
	assert.Equal(t, "START", recs[0].Event)
}
