package request

import (
	"encoding/json"

	"wallet-flow/internal/txflow"
)

type OpenTransactionRequest struct {
	ID string `json:"id" binding:"omitempty,max=64"`
	// Draft 非空时立即 Begin
	Draft *txflow.Draft `json:"draft"`
}

// SendEventRequest {type, payload}
type SendEventRequest struct {
	Type    txflow.EventType `json:"type" binding:"required"`
	Payload json.RawMessage  `json:"payload" swaggertype:"object"`
}

type AddNotificationRequest struct {
	Message    string `json:"message" binding:"required,max=512"`
	Priority   string `json:"priority" binding:"omitempty,priority"`
	// DurationMs 0 使用默认时长，-1 不自动消失
	DurationMs int64  `json:"duration_ms" binding:"min=-1"`
}

type OpenModalRequest struct {
	ID              string         `json:"id" binding:"omitempty,max=64"`
	Component       string         `json:"component" binding:"required,max=128"`
	Props           map[string]any `json:"props"`
	Backdrop        *bool          `json:"backdrop"`
	CloseOnEscape   *bool          `json:"close_on_escape"`
	CloseOnBackdrop *bool          `json:"close_on_backdrop"`
}

type KeyRequest struct {
	Key string `json:"key" binding:"required"`
}

type OpenWizardRequest struct {
	ID       string `json:"id" binding:"omitempty,max=64"`
	Template string `json:"template" binding:"required"`
}

type GoToRequest struct {
	StepID string `json:"step_id" binding:"required"`
}

type StepDataRequest struct {
	Data map[string]any `json:"data" binding:"required"`
}
