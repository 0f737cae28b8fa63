package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransitionRecord 交易状态转移审计记录
type TransitionRecord struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	FlowID     string          `gorm:"type:varchar(64);not null;index" json:"flow_id"`
	FromState  string          `gorm:"type:varchar(20);not null" json:"from_state"`
	ToState    string          `gorm:"type:varchar(20);not null" json:"to_state"`
	Event      string          `gorm:"type:varchar(20);not null" json:"event"`
	Sender     string          `gorm:"type:varchar(42)" json:"sender"`
	Recipient  string          `gorm:"type:varchar(42)" json:"recipient"`
	Amount     decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"amount"`
	TxHash     string          `gorm:"type:varchar(66)" json:"tx_hash"`
	Error      string          `gorm:"type:text" json:"error"`
	RetryCount int             `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`
}

func (TransitionRecord) TableName() string {
	return "transition_records"
}
