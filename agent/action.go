package agent

import "fmt"

// Action 信号灯动作
type Action int

const (
	Hold    Action = iota // 保持当前相位
	Advance               // 切换到下一相位
)

// Actions 全部动作，按网络输出下标排列
var Actions = []Action{Hold, Advance}

func (a Action) String() string {
	switch a {
	case Hold:
		return "HOLD"
	case Advance:
		return "ADVANCE"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Valid 是否为已定义的动作
func (a Action) Valid() bool {
	return a >= 0 && int(a) < len(Actions)
}
