package flows

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-flow/internal/notify"
	"wallet-flow/internal/txflow"
	"wallet-flow/internal/wizard"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
	carol = "0x3333333333333333333333333333333333333333"
)

// recorder 记录投递的通知
type recorder struct {
	reqs []notify.Request
}

func (r *recorder) Add(reqs ...notify.Request) []string {
	r.reqs = append(r.reqs, reqs...)
	return nil
}

func (r *recorder) last() string {
	if len(r.reqs) == 0 {
		return ""
	}
	return r.reqs[len(r.reqs)-1].Message
}

func TestSendWizardHappyPath(t *testing.T) {
	n := &recorder{}
	w := wizard.MustNew(SendSteps(n))
	ctx := context.Background()

	require.NoError(t, w.UpdateStepData(StepRecipient, map[string]any{"from": alice, "to": bob}))
	require.True(t, w.Next(ctx))
	require.NoError(t, w.UpdateStepData(StepAmount, map[string]any{"amount": "0.25", "gas_price": 12.5}))
	require.True(t, w.Next(ctx))
	assert.Equal(t, StepReview, w.Current().ID)
	assert.Empty(t, n.reqs)

	d, err := SendDraft(w.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, alice, d.From)
	assert.Equal(t, bob, d.To)
	assert.True(t, d.Amount.Equal(decimal.RequireFromString("0.25")))
	assert.True(t, d.GasPrice.Equal(decimal.RequireFromString("12.5")))
	assert.NoError(t, d.Validate())
}

func TestSendRecipientValidation(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		msg  string
	}{
		{"missing", map[string]any{}, "Enter a valid recipient address"},
		{"malformed", map[string]any{"to": "0x12"}, "Enter a valid recipient address"},
		{"bad sender", map[string]any{"to": bob, "from": "nope"}, "Sender address is not valid"},
		{"self send", map[string]any{"to": bob, "from": "0x2222222222222222222222222222222222222222"}, "Recipient must differ from the sender"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recorder{}
			w := wizard.MustNew(SendSteps(n))
			require.NoError(t, w.UpdateStepData(StepRecipient, tt.data))

			assert.False(t, w.Next(context.Background()))
			assert.Equal(t, StepRecipient, w.Current().ID)
			require.Len(t, n.reqs, 1)
			assert.Equal(t, tt.msg, n.last())
			assert.Equal(t, notify.PriorityError, n.reqs[0].Priority)
		})
	}
}

func TestSendAmountValidation(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		ok   bool
	}{
		{"string amount", map[string]any{"amount": "1"}, true},
		{"float amount", map[string]any{"amount": 0.1}, true},
		{"zero", map[string]any{"amount": "0"}, false},
		{"negative", map[string]any{"amount": -1.0}, false},
		{"garbage", map[string]any{"amount": "abc"}, false},
		{"missing", map[string]any{}, false},
		{"negative gas", map[string]any{"amount": "1", "gas_price": "-2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recorder{}
			w := wizard.MustNew(SendSteps(n))
			require.True(t, w.GoTo(StepAmount))
			require.NoError(t, w.UpdateStepData(StepAmount, tt.data))

			assert.Equal(t, tt.ok, w.Next(context.Background()))
			assert.Equal(t, !tt.ok, len(n.reqs) == 1)
		})
	}
}

func TestSubmitDraftRequiresCompletedSteps(t *testing.T) {
	n := &recorder{}
	w := wizard.MustNew(SendSteps(n))
	ctx := context.Background()

	require.NoError(t, w.UpdateStepData(StepRecipient, map[string]any{"to": "not-an-address"}))
	require.NoError(t, w.UpdateStepData(StepAmount, map[string]any{"amount": "-5"}))
	_, err := SubmitDraft(w.Snapshot())
	assert.ErrorIs(t, err, ErrStepsIncomplete)

	require.NoError(t, w.UpdateStepData(StepRecipient, map[string]any{"to": bob}))
	require.True(t, w.Next(ctx))
	_, err = SubmitDraft(w.Snapshot())
	assert.ErrorIs(t, err, ErrStepsIncomplete)

	require.NoError(t, w.UpdateStepData(StepAmount, map[string]any{"amount": "1"}))
	require.True(t, w.Next(ctx))
	d, err := SubmitDraft(w.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, bob, d.To)

	// 完成后改写的数据仍要满足约束
	require.NoError(t, w.UpdateStepData(StepAmount, map[string]any{"amount": "0"}))
	_, err = SubmitDraft(w.Snapshot())
	assert.ErrorIs(t, err, txflow.ErrInvalidAmount)
}

func TestSendDraftRequiresAmount(t *testing.T) {
	_, err := SendDraft(wizard.RunState{})
	assert.Error(t, err)
}

func TestInheritanceWizard(t *testing.T) {
	n := &recorder{}
	w := wizard.MustNew(InheritanceSteps(n))
	ctx := context.Background()

	require.NoError(t, w.UpdateStepData(StepBeneficiaries, map[string]any{"beneficiaries": []any{alice, bob}}))
	require.True(t, w.Next(ctx))

	require.NoError(t, w.UpdateStepData(StepAllocation, map[string]any{"shares": map[string]any{alice: "60", bob: 40.0}}))
	require.True(t, w.Next(ctx))

	require.NoError(t, w.UpdateStepData(StepDelay, map[string]any{"days": 180}))
	require.True(t, w.Next(ctx))

	assert.Equal(t, StepPlanReview, w.Current().ID)
	assert.Empty(t, n.reqs)
	assert.InDelta(t, 100.0, w.Progress(), 1e-9)
}

func TestInheritanceValidation(t *testing.T) {
	tests := []struct {
		name string
		step string
		data map[string]any
	}{
		{"no beneficiaries", StepBeneficiaries, map[string]any{"beneficiaries": []any{}}},
		{"bad beneficiary", StepBeneficiaries, map[string]any{"beneficiaries": []string{"0xzz"}}},
		{"duplicate beneficiary", StepBeneficiaries, map[string]any{"beneficiaries": []string{alice, "0x1111111111111111111111111111111111111111"}}},
		{"shares under 100", StepAllocation, map[string]any{"shares": map[string]any{alice: "50", bob: "20"}}},
		{"shares over 100", StepAllocation, map[string]any{"shares": map[string]any{alice: "50", bob: "20", carol: "31"}}},
		{"zero share", StepAllocation, map[string]any{"shares": map[string]any{alice: "100", bob: "0"}}},
		{"missing shares", StepAllocation, map[string]any{}},
		{"delay too short", StepDelay, map[string]any{"days": 7}},
		{"delay too long", StepDelay, map[string]any{"days": "4000"}},
		{"fractional delay", StepDelay, map[string]any{"days": 45.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recorder{}
			w := wizard.MustNew(InheritanceSteps(n))
			require.True(t, w.GoTo(tt.step))
			require.NoError(t, w.UpdateStepData(tt.step, tt.data))

			assert.False(t, w.Next(context.Background()))
			assert.Equal(t, tt.step, w.Current().ID)
			assert.False(t, w.IsCompleted(tt.step))
			assert.Len(t, n.reqs, 1)
		})
	}
}

func TestStepsFor(t *testing.T) {
	for _, name := range Templates() {
		steps, err := StepsFor(name, nil)
		require.NoError(t, err)
		_, err = wizard.New(steps)
		assert.NoError(t, err, name)
	}

	_, err := StepsFor("swap", nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestRejectWithoutNotifier(t *testing.T) {
	w := wizard.MustNew(SendSteps(nil))
	assert.False(t, w.Next(context.Background()))
}
