package txflow

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-flow/pkg/timer"
)

const (
	addrA = "0x52908400098527886E0F7030069857D2E4169EE7"
	addrB = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
)

func newTestMachine(t *testing.T, opts ...Option) (*Machine, *timer.Manual) {
	t.Helper()
	clock := timer.NewManual()
	opts = append([]Option{WithScheduler(clock)}, opts...)
	return New("flow-1", opts...), clock
}

func testDraft() Draft {
	return Draft{
		From:     addrA,
		To:       addrB,
		Amount:   decimal.RequireFromString("0.25"),
		GasPrice: decimal.NewFromInt(30),
	}
}

// driveTo 按合法路径把状态机推进到目标状态
func driveTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	path := map[State][]Event{
		StateIdle:         nil,
		StateInputting:    {Start{Draft: testDraft()}},
		StateValidating:   {Start{Draft: testDraft()}, Validate{}},
		StateConfirming:   {Start{Draft: testDraft()}, Validate{}, Valid{}},
		StateSigning:      {Start{Draft: testDraft()}, Validate{}, Valid{}, Sign{}},
		StateBroadcasting: {Start{Draft: testDraft()}, Validate{}, Valid{}, Sign{}, Broadcast{}},
		StatePending:      {Start{Draft: testDraft()}, Validate{}, Valid{}, Sign{}, Broadcast{}, Submitted{TxHash: "0xabc"}},
		StateSuccess:      {Start{Draft: testDraft()}, Validate{}, Valid{}, Sign{}, Broadcast{}, Submitted{TxHash: "0xabc"}, Success{}},
		StateError:        {Start{Draft: testDraft()}, Validate{}, Failure{Err: errors.New("rpc down")}},
	}
	for _, ev := range path[target] {
		require.NoError(t, m.Send(ev), "driving to %s with %s", target, ev.Type())
	}
	require.Equal(t, target, m.State())
}

func TestHappyPath(t *testing.T) {
	m, _ := newTestMachine(t)
	driveTo(t, m, StateSuccess)

	assert.Equal(t, []State{
		StateIdle, StateInputting, StateValidating, StateConfirming,
		StateSigning, StateBroadcasting, StatePending, StateSuccess,
	}, m.History())
	assert.Equal(t, "0xabc", m.Context().TxHash)
	assert.Equal(t, addrB, m.Context().To)

	prev, ok := m.Previous()
	assert.True(t, ok)
	assert.Equal(t, StatePending, prev)
}

// 不在转移表中的 (state, event) 组合不能改变状态与上下文
func TestTransitionTableClosure(t *testing.T) {
	for _, s := range States {
		for _, et := range EventTypes {
			if _, ok := transitions[s][et]; ok {
				continue
			}
			t.Run(string(s)+"/"+string(et), func(t *testing.T) {
				m, _ := newTestMachine(t)
				driveTo(t, m, s)
				before := m.Snapshot()

				ev, err := ParseEvent(et, []byte(`{"from":"`+addrB+`","tx_hash":"0xdead","error":"x"}`))
				require.NoError(t, err)

				err = m.Send(ev)
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrIllegalTransition))

				var ite *IllegalTransitionError
				require.True(t, errors.As(err, &ite))
				assert.Equal(t, s, ite.State)
				assert.Equal(t, et, ite.Event)

				assert.Equal(t, before, m.Snapshot())
			})
		}
	}
}

func TestRetryBound(t *testing.T) {
	m, clock := newTestMachine(t)
	driveTo(t, m, StateInputting)

	autoRetries := 0
	for i := 1; i <= 4; i++ {
		require.NoError(t, m.Send(Validate{}))
		require.NoError(t, m.Send(Failure{Err: errors.New("nonce too low")}))
		assert.Equal(t, StateError, m.State())
		assert.Equal(t, i, m.Context().RetryCount)

		if clock.Pending() == 1 {
			autoRetries++
			clock.Advance(time.Duration(1<<uint(i-1)) * time.Second)
			assert.Equal(t, StateInputting, m.State(), "attempt %d should auto-retry", i)
		}
	}

	assert.Equal(t, 3, autoRetries)
	assert.Equal(t, StateError, m.State())
	assert.Equal(t, 0, clock.Pending())
	assert.False(t, m.Snapshot().RetryScheduled)

	// 长时间等待也不会再自动重试
	clock.Advance(time.Hour)
	assert.Equal(t, StateError, m.State())

	// 手动 RETRY 仍然可用
	require.NoError(t, m.Send(Retry{}))
	assert.Equal(t, StateInputting, m.State())
}

func TestRetryBackoffSequence(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 4 * time.Second},
		{10, 4 * time.Second},
	}
	m, _ := newTestMachine(t)
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.backoffFor(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetryNotFiredBeforeDelay(t *testing.T) {
	m, clock := newTestMachine(t)
	driveTo(t, m, StateError)

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, StateError, m.State())
	clock.Advance(time.Millisecond)
	assert.Equal(t, StateInputting, m.State())
}

func TestResetCancelsScheduledRetry(t *testing.T) {
	m, clock := newTestMachine(t)
	driveTo(t, m, StateError)
	require.True(t, m.Snapshot().RetryScheduled)

	m.Reset()
	clock.Advance(time.Minute)

	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, []State{StateIdle}, m.History())
}

func TestManualRetryCancelsScheduledRetry(t *testing.T) {
	m, clock := newTestMachine(t)
	driveTo(t, m, StateError)

	require.NoError(t, m.Send(Retry{}))
	require.NoError(t, m.Send(Validate{}))
	assert.Equal(t, 0, clock.Pending())

	clock.Advance(time.Minute)
	assert.Equal(t, StateValidating, m.State())
}

// 已经被调度器取出但晚于 Reset 执行的回调必须放弃
func TestStaleRetryCallbackIgnored(t *testing.T) {
	var captured func()
	stub := schedulerFunc(func(d time.Duration, f func()) timer.Timer {
		captured = f
		return noopTimer{}
	})
	m := New("flow-stale", WithScheduler(stub))
	driveTo(t, m, StateError)
	require.NotNil(t, captured)

	m.Reset()
	driveTo(t, m, StateInputting)
	captured()

	assert.Equal(t, StateInputting, m.State())
	assert.Equal(t, []State{StateIdle, StateInputting}, m.History())
}

func TestResetUniversality(t *testing.T) {
	for _, s := range States {
		t.Run(string(s), func(t *testing.T) {
			m, _ := newTestMachine(t)
			driveTo(t, m, s)
			m.Reset()

			snap := m.Snapshot()
			assert.Equal(t, StateIdle, snap.State)
			assert.Equal(t, Context{}, snap.Context)
			assert.Equal(t, []State{StateIdle}, snap.History)
		})
	}
}

func TestTableResetClearsContext(t *testing.T) {
	m, _ := newTestMachine(t)
	driveTo(t, m, StateSuccess)

	require.NoError(t, m.Send(Reset{}))
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, Context{}, m.Context())
	assert.Equal(t, []State{StateIdle}, m.History())
}

func TestBeginStartsFresh(t *testing.T) {
	m, clock := newTestMachine(t)
	driveTo(t, m, StateError)

	d := testDraft()
	d.Amount = decimal.NewFromInt(2)
	require.NoError(t, m.Begin(d))

	assert.Equal(t, StateInputting, m.State())
	assert.Equal(t, 0, m.Context().RetryCount)
	assert.Empty(t, m.Context().Error)
	assert.True(t, m.Context().Amount.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 0, clock.Pending())
}

func TestInputMergesShallow(t *testing.T) {
	m, _ := newTestMachine(t)
	driveTo(t, m, StateInputting)

	require.NoError(t, m.Send(Input{Draft: Draft{To: addrA}}))
	c := m.Context()
	assert.Equal(t, addrA, c.To)
	assert.Equal(t, addrA, c.From)
	assert.True(t, c.Amount.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, StateInputting, m.State())
}

func TestFailureRecordsError(t *testing.T) {
	m, _ := newTestMachine(t)
	driveTo(t, m, StateError)
	assert.Equal(t, "rpc down", m.Context().Error)
}

func TestInvalidReplacesStaleError(t *testing.T) {
	m, clock := newTestMachine(t)
	driveTo(t, m, StateError)
	clock.Advance(time.Second)
	require.Equal(t, StateInputting, m.State())

	require.NoError(t, m.Send(Validate{}))
	require.NoError(t, m.Send(Invalid{}))
	assert.Equal(t, StateInputting, m.State())
	assert.Empty(t, m.Context().Error)

	require.NoError(t, m.Send(Validate{}))
	require.NoError(t, m.Send(Invalid{Reason: "amount exceeds balance"}))
	assert.Equal(t, "amount exceeds balance", m.Context().Error)
}

func TestZeroBackoffStillSchedules(t *testing.T) {
	var got []Transition
	m, clock := newTestMachine(t,
		WithRetryPolicy(2, []time.Duration{0}),
		WithListener(ListenerFunc(func(tr Transition) { got = append(got, tr) })))
	driveTo(t, m, StateError)

	last := got[len(got)-1]
	assert.True(t, last.RetryScheduled)
	assert.Zero(t, last.RetryIn)
	assert.True(t, m.Snapshot().RetryScheduled)

	clock.Advance(0)
	assert.Equal(t, StateInputting, m.State())
}

func TestAnimationFollowsState(t *testing.T) {
	m, _ := newTestMachine(t)
	assert.Equal(t, Animation{Enter: "fade-in", Exit: "fade-out"}, m.Animation())

	driveTo(t, m, StateError)
	assert.Equal(t, Animation{Enter: "shake", Exit: "fade-out"}, m.Animation())

	for _, s := range States {
		assert.NotEmpty(t, AnimationFor(s).Enter, "state %s has no animation", s)
	}
}

func TestPermitted(t *testing.T) {
	m, _ := newTestMachine(t)
	assert.Equal(t, []EventType{EventStart}, m.Permitted())
	assert.True(t, m.Can(EventStart))
	assert.False(t, m.Can(EventReset))

	driveTo(t, m, StateError)
	assert.Equal(t, []EventType{EventRetry, EventReset}, m.Permitted())
}

func TestCloseStopsEverything(t *testing.T) {
	m, clock := newTestMachine(t)
	driveTo(t, m, StateError)
	m.Close()

	clock.Advance(time.Minute)
	assert.Equal(t, StateError, m.State())
	assert.ErrorIs(t, m.Send(Retry{}), ErrClosed)
	assert.ErrorIs(t, m.Begin(testDraft()), ErrClosed)
}

func TestListenerReceivesTransitions(t *testing.T) {
	var got []Transition
	m, clock := newTestMachine(t, WithListener(ListenerFunc(func(tr Transition) {
		got = append(got, tr)
	})))

	driveTo(t, m, StateError)
	clock.Advance(time.Second)

	require.Len(t, got, 4)
	assert.Equal(t, EventError, got[2].Event)
	assert.Equal(t, time.Second, got[2].RetryIn)
	assert.True(t, got[2].RetryScheduled)
	assert.False(t, got[3].RetryScheduled)
	assert.Equal(t, 1, got[2].Context.RetryCount)
	assert.Equal(t, StateError, got[3].From)
	assert.Equal(t, StateInputting, got[3].To)
	assert.Equal(t, EventRetry, got[3].Event)
	assert.Equal(t, "flow-1", got[3].FlowID)
}

func TestCustomRetryPolicy(t *testing.T) {
	m, clock := newTestMachine(t, WithRetryPolicy(1, []time.Duration{10 * time.Millisecond}))
	driveTo(t, m, StateError)

	clock.Advance(10 * time.Millisecond)
	require.Equal(t, StateInputting, m.State())

	require.NoError(t, m.Send(Validate{}))
	require.NoError(t, m.Send(Failure{}))
	assert.Equal(t, 0, clock.Pending())
}

type schedulerFunc func(d time.Duration, f func()) timer.Timer

func (s schedulerFunc) AfterFunc(d time.Duration, f func()) timer.Timer { return s(d, f) }

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }
