package event

import (
	"time"

	"wallet-flow/internal/txflow"
)

// TopicTransaction 交易状态转移事件
const TopicTransaction = "wallet_flow_events_tx"

// TransactionTransitioned 交易状态机的一次已接受转移
// Topic: wallet_flow_events_tx, Key: FlowID
type TransactionTransitioned struct {
	FlowID     string `json:"flow_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Event      string `json:"event"`
	Sender     string `json:"sender,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	Amount     string `json:"amount"` // Decimal string
	TxHash     string `json:"tx_hash,omitempty"`
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	// RetryScheduled 区分 0ms 重试与未调度
	RetryScheduled bool      `json:"retry_scheduled,omitempty"`
	RetryInMs      int64     `json:"retry_in_ms,omitempty"`
	At             time.Time `json:"at"`
}

// FromTransition 由状态机的 Transition 构造事件
func FromTransition(t txflow.Transition) TransactionTransitioned {
	return TransactionTransitioned{
		FlowID:         t.FlowID,
		From:           string(t.From),
		To:             string(t.To),
		Event:          string(t.Event),
		Sender:         t.Context.From,
		Recipient:      t.Context.To,
		Amount:         t.Context.Amount.String(),
		TxHash:         t.Context.TxHash,
		Error:          t.Context.Error,
		RetryCount:     t.Context.RetryCount,
		RetryScheduled: t.RetryScheduled,
		RetryInMs:      t.RetryIn.Milliseconds(),
		At:             t.At,
	}
}
