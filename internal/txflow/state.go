package txflow

// State 交易生命周期中的状态，同一时刻只有一个生效
type State string

const (
	StateIdle         State = "idle"
	StateInputting    State = "inputting"
	StateValidating   State = "validating"
	StateConfirming   State = "confirming"
	StateSigning      State = "signing"
	StateBroadcasting State = "broadcasting"
	StatePending      State = "pending"
	StateSuccess      State = "success"
	StateError        State = "error"
)

// States 按生命周期顺序列出全部状态
var States = []State{
	StateIdle,
	StateInputting,
	StateValidating,
	StateConfirming,
	StateSigning,
	StateBroadcasting,
	StatePending,
	StateSuccess,
	StateError,
}

// EventType 事件类型，transitions 表的第二维
type EventType string

const (
	EventStart     EventType = "START"
	EventInput     EventType = "INPUT"
	EventValidate  EventType = "VALIDATE"
	EventValid     EventType = "VALID"
	EventInvalid   EventType = "INVALID"
	EventSign      EventType = "SIGN"
	EventCancel    EventType = "CANCEL"
	EventBroadcast EventType = "BROADCAST"
	EventSubmitted EventType = "SUBMITTED"
	EventSuccess   EventType = "SUCCESS"
	EventError     EventType = "ERROR"
	EventRetry     EventType = "RETRY"
	EventReset     EventType = "RESET"
)

// EventTypes 全部事件类型
var EventTypes = []EventType{
	EventStart,
	EventInput,
	EventValidate,
	EventValid,
	EventInvalid,
	EventSign,
	EventCancel,
	EventBroadcast,
	EventSubmitted,
	EventSuccess,
	EventError,
	EventRetry,
	EventReset,
}

// transitions 静态状态转移表，表中不存在的 (state, event) 组合一律拒绝。
// 只有 success 与 error 可以通过 RESET 回到 idle。
var transitions = map[State]map[EventType]State{
	StateIdle: {
		EventStart: StateInputting,
	},
	StateInputting: {
		EventInput:    StateInputting,
		EventValidate: StateValidating,
	},
	StateValidating: {
		EventValid:   StateConfirming,
		EventInvalid: StateInputting,
		EventError:   StateError,
	},
	StateConfirming: {
		EventSign:   StateSigning,
		EventCancel: StateInputting,
	},
	StateSigning: {
		EventBroadcast: StateBroadcasting,
		EventError:     StateError,
	},
	StateBroadcasting: {
		EventSubmitted: StatePending,
		EventError:     StateError,
	},
	StatePending: {
		EventSuccess: StateSuccess,
		EventError:   StateError,
	},
	StateSuccess: {
		EventReset: StateIdle,
	},
	StateError: {
		EventRetry: StateInputting,
		EventReset: StateIdle,
	},
}

// Next 查表返回下一个状态
func Next(from State, ev EventType) (State, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}

// Terminal 是否为终态 (success / error)
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError
}

// Animation 状态的进入/退出动画标识，渲染层据此选择过渡效果
type Animation struct {
	Enter string `json:"enter"`
	Exit  string `json:"exit"`
}

var animations = map[State]Animation{
	StateIdle:         {Enter: "fade-in", Exit: "fade-out"},
	StateInputting:    {Enter: "slide-up", Exit: "slide-down"},
	StateValidating:   {Enter: "pulse", Exit: "fade-out"},
	StateConfirming:   {Enter: "scale-in", Exit: "scale-out"},
	StateSigning:      {Enter: "pulse", Exit: "fade-out"},
	StateBroadcasting: {Enter: "slide-left", Exit: "slide-right"},
	StatePending:      {Enter: "spin", Exit: "fade-out"},
	StateSuccess:      {Enter: "bounce-in", Exit: "fade-out"},
	StateError:        {Enter: "shake", Exit: "fade-out"},
}

// AnimationFor 返回状态对应的动画标识
func AnimationFor(s State) Animation {
	return animations[s]
}
