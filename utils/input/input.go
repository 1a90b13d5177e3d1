package input

import (
	"fmt"
	"os"

	"git.fiblab.net/general/common/v2/protoutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/config"
)

var log = logrus.WithField("module", "input")

// LoadProgram 读取本地模拟器的信号灯程序
// 功能：根据配置从protobuf文件或YAML相位列表构造mapv2.TrafficLight
// 参数：c-本地模拟器配置，numLanes-受控车道数（每个相位的灯色个数）
// 返回：信号灯程序与错误
// 算法说明：
// 1. 如果配置了program_file，检查文件有效性后用protoutil反序列化
// 2. 否则逐个解析YAML中的相位灯色字符串
// 3. 校验：至少一个相位，每个相位的灯色数与车道数一致，时长非负
func LoadProgram(c config.Local, numLanes int) (*mapv2.TrafficLight, error) {
	var tl *mapv2.TrafficLight
	if c.ProgramFile != "" {
		if err := checkProgramFile(c.ProgramFile); err != nil {
			return nil, err
		}
		var pb mapv2.TrafficLight
		if err := protoutil.UnmarshalFromFile(&pb, c.ProgramFile); err != nil {
			return nil, fmt.Errorf("load program from %s: %w", c.ProgramFile, err)
		}
		tl = &pb
		tl.JunctionId = c.JunctionID
		log.Infof("load program with %d phases from %s", len(tl.Phases), c.ProgramFile)
	} else {
		tl = &mapv2.TrafficLight{JunctionId: c.JunctionID}
		for i, p := range c.Phases {
			states, err := ParseStates(p.States)
			if err != nil {
				return nil, fmt.Errorf("phase %d: %w", i, err)
			}
			tl.Phases = append(tl.Phases, &mapv2.Phase{Duration: p.Duration, States: states})
		}
	}
	if len(tl.Phases) == 0 {
		return nil, fmt.Errorf("program of junction %d has no phase", c.JunctionID)
	}
	for i, p := range tl.Phases {
		if len(p.States) != numLanes {
			return nil, fmt.Errorf("number of lanes %d and phase %d states %d does not match", numLanes, i, len(p.States))
		}
		if p.Duration < 0 {
			return nil, fmt.Errorf("phase %d has negative duration %v", i, p.Duration)
		}
	}
	return tl, nil
}

// ParseStates 将SUMO风格的灯色字符串转换为灯色列表
// 说明：G/g为绿灯，y/Y为黄灯，r/R为红灯，其余字符报错
func ParseStates(s string) ([]mapv2.LightState, error) {
	states := make([]mapv2.LightState, 0, len(s))
	for i, ch := range s {
		switch ch {
		case 'G', 'g':
			states = append(states, mapv2.LightState_LIGHT_STATE_GREEN)
		case 'y', 'Y':
			states = append(states, mapv2.LightState_LIGHT_STATE_YELLOW)
		case 'r', 'R':
			states = append(states, mapv2.LightState_LIGHT_STATE_RED)
		default:
			return nil, fmt.Errorf("invalid light state %q at %d in %q", ch, i, s)
		}
	}
	return states, nil
}

// FormatStates 将灯色列表格式化为字符串，ParseStates的逆操作
func FormatStates(states []mapv2.LightState) string {
	return string(lo.Map(states, func(s mapv2.LightState, _ int) rune {
		switch s {
		case mapv2.LightState_LIGHT_STATE_GREEN:
			return 'G'
		case mapv2.LightState_LIGHT_STATE_YELLOW:
			return 'y'
		case mapv2.LightState_LIGHT_STATE_RED:
			return 'r'
		default:
			return '?'
		}
	}))
}

// checkProgramFile 检查程序文件是否存在且不是文件夹
func checkProgramFile(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("invalid program file %s: %w", path, err)
	}
	if stat.IsDir() {
		return fmt.Errorf("invalid program file %s: is a directory", path)
	}
	return nil
}
