package txflow

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event 状态机事件。每种事件只携带自己合法的负载，
// 非法的 "事件 + 负载" 组合在编译期就无法构造。
type Event interface {
	Type() EventType
	apply(c *Context)
}

// Start 开始录入一笔新交易
type Start struct{ Draft Draft }

// Input 录入阶段修改草稿
type Input struct{ Draft Draft }

// Validate 提交校验
type Validate struct{}

// Valid 校验通过
type Valid struct{}

// Invalid 校验未通过，回到录入
type Invalid struct{ Reason string }

// Sign 用户确认，进入签名
type Sign struct{}

// Cancel 确认页返回修改
type Cancel struct{}

// Broadcast 签名完成，开始广播
type Broadcast struct{}

// Submitted 节点已接收交易，进入 pending
type Submitted struct{ TxHash string }

// Success 交易上链成功
type Success struct{}

// Failure 任一阶段失败 (ERROR)
type Failure struct{ Err error }

// Retry 重试 (自动调度或用户手动)
type Retry struct{}

// Reset 终态下回到 idle
type Reset struct{}

func (Start) Type() EventType     { return EventStart }
func (Input) Type() EventType     { return EventInput }
func (Validate) Type() EventType  { return EventValidate }
func (Valid) Type() EventType     { return EventValid }
func (Invalid) Type() EventType   { return EventInvalid }
func (Sign) Type() EventType      { return EventSign }
func (Cancel) Type() EventType    { return EventCancel }
func (Broadcast) Type() EventType { return EventBroadcast }
func (Submitted) Type() EventType { return EventSubmitted }
func (Success) Type() EventType   { return EventSuccess }
func (Failure) Type() EventType   { return EventError }
func (Retry) Type() EventType     { return EventRetry }
func (Reset) Type() EventType     { return EventReset }

func (e Start) apply(c *Context)   { e.Draft.mergeInto(c) }
func (e Input) apply(c *Context)   { e.Draft.mergeInto(c) }
func (Validate) apply(*Context)    {}
func (Valid) apply(c *Context)     { c.Error = "" }
func (e Invalid) apply(c *Context) { c.Error = e.Reason }
func (Sign) apply(*Context)        {}
func (Cancel) apply(*Context)      {}
func (Broadcast) apply(*Context)   {}
func (e Submitted) apply(c *Context) {
	if e.TxHash != "" {
		c.TxHash = e.TxHash
	}
}
func (Success) apply(c *Context) { c.Error = "" }
func (e Failure) apply(c *Context) {
	if e.Err != nil {
		c.Error = e.Err.Error()
	}
}
func (Retry) apply(*Context) {}
func (Reset) apply(*Context) {}

// ErrUnknownEvent ParseEvent 遇到未知事件类型
var ErrUnknownEvent = errors.New("unknown event type")

// Payload 线上 (HTTP / CLI) 事件负载，字段按事件类型取用
type Payload struct {
	Draft
	Reason string `json:"reason,omitempty"`
	TxHash string `json:"tx_hash,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ParseEvent 将 {type, payload} 形式转换为具体事件
func ParseEvent(t EventType, raw json.RawMessage) (Event, error) {
	var p Payload
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
	}

	switch t {
	case EventStart:
		return Start{Draft: p.Draft}, nil
	case EventInput:
		return Input{Draft: p.Draft}, nil
	case EventValidate:
		return Validate{}, nil
	case EventValid:
		return Valid{}, nil
	case EventInvalid:
		return Invalid{Reason: p.Reason}, nil
	case EventSign:
		return Sign{}, nil
	case EventCancel:
		return Cancel{}, nil
	case EventBroadcast:
		return Broadcast{}, nil
	case EventSubmitted:
		return Submitted{TxHash: p.TxHash}, nil
	case EventSuccess:
		return Success{}, nil
	case EventError:
		var err error
		if p.Error != "" {
			err = errors.New(p.Error)
		}
		return Failure{Err: err}, nil
	case EventRetry:
		return Retry{}, nil
	case EventReset:
		return Reset{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, t)
	}
}
