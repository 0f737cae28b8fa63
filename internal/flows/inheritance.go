package flows

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"wallet-flow/internal/notify"
	"wallet-flow/internal/wizard"
)

// 遗产计划向导步骤 ID
const (
	StepBeneficiaries = "beneficiaries"
	StepAllocation    = "allocation"
	StepDelay         = "delay"
	StepPlanReview    = "plan_review"
)

const (
	MaxBeneficiaries = 10
	// 不活跃等待期 (天)
	MinDelayDays = 30
	MaxDelayDays = 3650
)

var hundred = decimal.NewFromInt(100)

// InheritanceSteps 遗产计划向导: 受益人 -> 份额分配 -> 生效延迟 -> 确认
func InheritanceSteps(n notify.Notifier) []wizard.Step {
	return []wizard.Step{
		{
			ID:        StepBeneficiaries,
			Title:     "Beneficiaries",
			Component: "BeneficiaryList",
			Validate: func(ctx context.Context, data map[string]any) (bool, error) {
				addrs, err := addressList(data, "beneficiaries")
				if err != nil {
					return reject(n, fmt.Sprintf("Invalid beneficiary: %v", err))
				}
				if len(addrs) == 0 {
					return reject(n, "Add at least one beneficiary")
				}
				if len(addrs) > MaxBeneficiaries {
					return reject(n, fmt.Sprintf("At most %d beneficiaries are allowed", MaxBeneficiaries))
				}
				seen := make(map[string]bool, len(addrs))
				for _, a := range addrs {
					if seen[a] {
						return reject(n, "Each beneficiary can only be listed once")
					}
					seen[a] = true
				}
				return true, nil
			},
		},
		{
			ID:        StepAllocation,
			Title:     "Allocation",
			Component: "AllocationForm",
			Validate: func(ctx context.Context, data map[string]any) (bool, error) {
				shares, err := shareMap(data, "shares")
				if err != nil {
					return reject(n, fmt.Sprintf("Invalid allocation: %v", err))
				}
				total := decimal.Zero
				for _, s := range shares {
					if !s.IsPositive() {
						return reject(n, "Every share must be greater than zero")
					}
					total = total.Add(s)
				}
				if !total.Equal(hundred) {
					return reject(n, fmt.Sprintf("Shares must add up to 100%%, got %s%%", total.String()))
				}
				return true, nil
			},
		},
		{
			ID:        StepDelay,
			Title:     "Activation delay",
			Component: "DelayPicker",
			Validate: func(ctx context.Context, data map[string]any) (bool, error) {
				days, err := decimalField(data, "days")
				if err != nil || !days.IsInteger() {
					return reject(n, "Delay must be a whole number of days")
				}
				if days.LessThan(decimal.NewFromInt(MinDelayDays)) || days.GreaterThan(decimal.NewFromInt(MaxDelayDays)) {
					return reject(n, fmt.Sprintf("Delay must be between %d and %d days", MinDelayDays, MaxDelayDays))
				}
				return true, nil
			},
		},
		{
			ID:        StepPlanReview,
			Title:     "Review",
			Component: "PlanReview",
		},
	}
}
