package txflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// Context 一次交易尝试的上下文，只属于创建它的 Machine
type Context struct {
	From       string          `json:"from,omitempty"`
	To         string          `json:"to,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	GasPrice   decimal.Decimal `json:"gas_price"`
	Data       string          `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	TxHash     string          `json:"tx_hash,omitempty"`
	RetryCount int             `json:"retry_count"`
}

// Draft 用户输入的交易草稿，合并进 Context 时只覆盖非零字段
type Draft struct {
	From     string          `json:"from,omitempty"`
	To       string          `json:"to,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	GasPrice decimal.Decimal `json:"gas_price"`
	Data     string          `json:"data,omitempty"`
}

func (d Draft) mergeInto(c *Context) {
	if d.From != "" {
		c.From = d.From
	}
	if d.To != "" {
		c.To = d.To
	}
	if !d.Amount.IsZero() {
		c.Amount = d.Amount
	}
	if !d.GasPrice.IsZero() {
		c.GasPrice = d.GasPrice
	}
	if d.Data != "" {
		c.Data = d.Data
	}
}

// Draft 取出上下文中的草稿部分
func (c Context) Draft() Draft {
	return Draft{From: c.From, To: c.To, Amount: c.Amount, GasPrice: c.GasPrice, Data: c.Data}
}

var (
	ErrInvalidFrom     = errors.New("from is not a valid hex address")
	ErrInvalidTo       = errors.New("to is not a valid hex address")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidGasPrice = errors.New("gas price must not be negative")
	ErrInvalidData     = errors.New("data is not valid hex")
)

// Validate 校验草稿，供提交方在发送 VALID / INVALID 之前调用
func (d Draft) Validate() error {
	var errs []error
	if !common.IsHexAddress(d.From) {
		errs = append(errs, ErrInvalidFrom)
	}
	if !common.IsHexAddress(d.To) {
		errs = append(errs, ErrInvalidTo)
	}
	if !d.Amount.IsPositive() {
		errs = append(errs, ErrInvalidAmount)
	}
	if d.GasPrice.IsNegative() {
		errs = append(errs, ErrInvalidGasPrice)
	}
	if d.Data != "" {
		data := d.Data
		if !strings.HasPrefix(data, "0x") {
			data = "0x" + data
		}
		if _, err := hexutil.Decode(data); err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidData, err))
		}
	}
	return errors.Join(errs...)
}

// ValidTxHash 检查是否为 32 字节 hex 哈希
func ValidTxHash(h string) bool {
	b, err := hexutil.Decode(h)
	return err == nil && len(b) == common.HashLength
}
