package notify

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Priority 通知优先级，数值越大越先展示
type Priority int

const (
	PriorityInfo Priority = iota
	PrioritySuccess
	PriorityWarning
	PriorityError
)

var priorityNames = map[Priority]string{
	PriorityInfo:    "info",
	PrioritySuccess: "success",
	PriorityWarning: "warning",
	PriorityError:   "error",
}

func (p Priority) String() string {
	if s, ok := priorityNames[p]; ok {
		return s
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority 解析 "info" / "success" / "warning" / "error"
func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return PriorityInfo, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Forever 关闭自动消失
const Forever time.Duration = math.MaxInt64

// Action 通知上的操作按钮
type Action struct {
	Label   string `json:"label"`
	Handler func() `json:"-"`
}

// Request Add 的入参，ID 与时间戳由队列生成
type Request struct {
	Message  string
	Priority Priority
	// Duration 为 0 时使用队列默认值，Forever 表示不自动消失
	Duration time.Duration
	Action   *Action
}

// Notification 已入队的通知
type Notification struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Priority  Priority      `json:"priority"`
	Duration  time.Duration `json:"duration"`
	Action    *Action       `json:"action,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Expires 是否会自动消失
func (n Notification) Expires() bool {
	return n.Duration != Forever
}
