package shell

import (
	"fmt"

	"go.uber.org/zap"

	"wallet-flow/internal/notify"
	"wallet-flow/internal/txflow"
)

// notificationBridge 把交易状态转移翻译成用户可见的通知
type notificationBridge struct {
	shell *Shell
}

func (b *notificationBridge) OnTransition(t txflow.Transition) {
	q := b.shell.Notifications

	switch {
	case t.To == txflow.StateError && t.RetryScheduled:
		q.Add(notify.Request{
			Message:  fmt.Sprintf("Transaction failed: %s. Retrying in %s", t.Context.Error, t.RetryIn),
			Priority: notify.PriorityWarning,
		})

	case t.To == txflow.StateError:
		// 自动重试已用尽，需要用户手动重试
		id := t.FlowID
		q.Add(notify.Request{
			Message:  fmt.Sprintf("Transaction failed: %s", t.Context.Error),
			Priority: notify.PriorityError,
			Duration: notify.Forever,
			Action: &notify.Action{
				Label:   "Retry",
				Handler: func() { b.retry(id) },
			},
		})

	case t.To == txflow.StateSuccess:
		q.Add(notify.Request{
			Message:  "Transaction confirmed",
			Priority: notify.PrioritySuccess,
		})

	case t.Event == txflow.EventInvalid && t.Context.Error != "":
		q.Add(notify.Request{
			Message:  t.Context.Error,
			Priority: notify.PriorityWarning,
		})
	}
}

func (b *notificationBridge) retry(id string) {
	m, ok := b.shell.Transaction(id)
	if !ok {
		return
	}
	if err := m.Send(txflow.Retry{}); err != nil {
		b.shell.log.Debug("手动重试被拒绝", zap.String("flow_id", id), zap.Error(err))
	}
}
