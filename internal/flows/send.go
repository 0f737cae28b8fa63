package flows

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"wallet-flow/internal/notify"
	"wallet-flow/internal/txflow"
	"wallet-flow/internal/wizard"
)

// 发送向导步骤 ID
const (
	StepRecipient = "recipient"
	StepAmount    = "amount"
	StepReview    = "review"
)

// SendSteps 发送交易向导: 收款地址 -> 金额 -> 确认。
// 校验失败通过 n 投递 error 通知，向导本身只负责不前进。
func SendSteps(n notify.Notifier) []wizard.Step {
	return []wizard.Step{
		{
			ID:        StepRecipient,
			Title:     "Recipient",
			Component: "SendRecipientForm",
			Validate: func(ctx context.Context, data map[string]any) (bool, error) {
				to := stringField(data, "to")
				if !common.IsHexAddress(to) {
					return reject(n, "Enter a valid recipient address")
				}
				if from := stringField(data, "from"); from != "" {
					if !common.IsHexAddress(from) {
						return reject(n, "Sender address is not valid")
					}
					if common.HexToAddress(from) == common.HexToAddress(to) {
						return reject(n, "Recipient must differ from the sender")
					}
				}
				return true, nil
			},
		},
		{
			ID:        StepAmount,
			Title:     "Amount",
			Component: "SendAmountForm",
			Validate: func(ctx context.Context, data map[string]any) (bool, error) {
				amount, err := decimalField(data, "amount")
				if err != nil || !amount.IsPositive() {
					return reject(n, "Amount must be greater than zero")
				}
				if _, ok := data["gas_price"]; ok {
					gas, err := decimalField(data, "gas_price")
					if err != nil || gas.IsNegative() {
						return reject(n, "Gas price must not be negative")
					}
				}
				return true, nil
			},
		},
		{
			ID:        StepReview,
			Title:     "Review",
			Component: "SendReview",
		},
	}
}

// SendDraft 把发送向导的步骤数据组装成交易草稿
func SendDraft(rs wizard.RunState) (txflow.Draft, error) {
	recipient := rs.StepData[StepRecipient]
	amountData := rs.StepData[StepAmount]

	d := txflow.Draft{
		From: stringField(recipient, "from"),
		To:   stringField(recipient, "to"),
		Data: stringField(amountData, "data"),
	}
	amount, err := decimalField(amountData, "amount")
	if err != nil {
		return txflow.Draft{}, fmt.Errorf("amount: %w", err)
	}
	d.Amount = amount
	if _, ok := amountData["gas_price"]; ok {
		if d.GasPrice, err = decimalField(amountData, "gas_price"); err != nil {
			return txflow.Draft{}, fmt.Errorf("gas_price: %w", err)
		}
	}
	return d, nil
}

// ErrStepsIncomplete 发送向导尚有未通过校验的步骤
var ErrStepsIncomplete = errors.New("send wizard steps are not completed")

// SubmitDraft 提交前的把关: 收款与金额两步必须已通过校验，
// 其后通过 UpdateStepData 改写的数据同样要满足草稿约束
func SubmitDraft(rs wizard.RunState) (txflow.Draft, error) {
	for _, id := range []string{StepRecipient, StepAmount} {
		if !slices.Contains(rs.CompletedSteps, id) {
			return txflow.Draft{}, fmt.Errorf("%w: %s", ErrStepsIncomplete, id)
		}
	}
	d, err := SendDraft(rs)
	if err != nil {
		return txflow.Draft{}, err
	}
	var errs []error
	if !common.IsHexAddress(d.To) {
		errs = append(errs, txflow.ErrInvalidTo)
	}
	if d.From != "" && !common.IsHexAddress(d.From) {
		errs = append(errs, txflow.ErrInvalidFrom)
	}
	if !d.Amount.IsPositive() {
		errs = append(errs, txflow.ErrInvalidAmount)
	}
	if d.GasPrice.IsNegative() {
		errs = append(errs, txflow.ErrInvalidGasPrice)
	}
	if err := errors.Join(errs...); err != nil {
		return txflow.Draft{}, err
	}
	return d, nil
}

var ErrUnknownTemplate = errors.New("unknown wizard template")

// 模板名
const (
	TemplateSend        = "send"
	TemplateInheritance = "inheritance"
)

// Templates 可用的向导模板名
func Templates() []string {
	return []string{TemplateSend, TemplateInheritance}
}

// StepsFor 按模板名构造步骤
func StepsFor(template string, n notify.Notifier) ([]wizard.Step, error) {
	switch template {
	case TemplateSend:
		return SendSteps(n), nil
	case TemplateInheritance:
		return InheritanceSteps(n), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, template)
	}
}

func reject(n notify.Notifier, message string) (bool, error) {
	if n != nil {
		n.Add(notify.Request{Message: message, Priority: notify.PriorityError})
	}
	return false, nil
}
