package config

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gopkg.in/yaml.v2"
)

var ErrInvalid = errors.New("config: invalid")

const (
	KindLocal = "local"
	KindTraCI = "traci"
)

// Default 返回默认配置
// 功能：给出与SUMO示例场景一致的默认参数
// 说明：Load会在默认配置的基础上覆盖YAML中出现的字段
func Default() Config {
	return Config{
		Simulator: Simulator{
			Kind: KindLocal,
			Local: Local{
				JunctionID: 2,
				Seed:       42,
				Interval:   1,
				Phases: []PhaseConfig{
					{Duration: 0, States: "GGGrrr"},
					{Duration: 3, States: "yyyrrr"},
					{Duration: 0, States: "rrrGGG"},
					{Duration: 3, States: "rrryyy"},
				},
			},
			TraCI: TraCI{
				Addr:          "127.0.0.1:8813",
				RetryCount:    30,
				RetryInterval: 1,
			},
		},
		Agent: Agent{
			Alpha:   0.001,
			Gamma:   0.9,
			Epsilon: 0.1,
			Hidden:  []int{24, 24},
			Seed:    0,
		},
		Control: Control{
			TotalSteps:    10000,
			MinGreenSteps: 100,
			DetectorIDs: []string{
				"Node1_2_EB_0", "Node1_2_EB_1", "Node1_2_EB_2",
				"Node2_7_SB_0", "Node2_7_SB_1", "Node2_7_SB_2",
			},
			SignalID:          "Node2",
			HeartbeatInterval: 100,
		},
		Status: Status{
			Addr:           "127.0.0.1:8000",
			AllowedOrigin:  "http://localhost:3000",
			StreamInterval: 1,
		},
	}
}

// Load 解析YAML配置
// 功能：在默认配置上严格解析YAML（未知字段报错），并校验结果
// 参数：data-YAML数据
// 返回：配置与错误
func Load(data []byte) (Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate 检查配置的正确性
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}
	check(c.Control.TotalSteps > 0, "total_steps must be positive, got %d", c.Control.TotalSteps)
	check(c.Control.MinGreenSteps >= 0, "min_green_steps must not be negative, got %d", c.Control.MinGreenSteps)
	check(len(c.Control.DetectorIDs) == 6, "detector_ids needs 6 entries, got %d", len(c.Control.DetectorIDs))
	check(len(lo.Uniq(c.Control.DetectorIDs)) == len(c.Control.DetectorIDs), "detector_ids has duplicates")
	check(c.Control.SignalID != "", "signal_id is empty")
	check(c.Agent.Alpha > 0, "alpha must be positive, got %v", c.Agent.Alpha)
	check(c.Agent.Gamma >= 0 && c.Agent.Gamma <= 1, "gamma must be in [0, 1], got %v", c.Agent.Gamma)
	check(c.Agent.Epsilon >= 0 && c.Agent.Epsilon <= 1, "epsilon must be in [0, 1], got %v", c.Agent.Epsilon)
	check(len(c.Agent.Hidden) > 0 && lo.EveryBy(c.Agent.Hidden, func(n int) bool { return n > 0 }), "hidden layer widths must be positive, got %v", c.Agent.Hidden)
	switch c.Simulator.Kind {
	case KindLocal:
		l := c.Simulator.Local
		check(l.Interval > 0, "local.interval must be positive, got %v", l.Interval)
		check(len(l.Lanes) == 0 || len(l.Lanes) == len(c.Control.DetectorIDs), "local.lanes needs %d entries, got %d", len(c.Control.DetectorIDs), len(l.Lanes))
		if l.ProgramFile == "" {
			check(len(l.Phases) > 0, "local.phases is empty")
			for i, p := range l.Phases {
				check(len(p.States) == len(c.Control.DetectorIDs), "local.phases[%d].states %q does not match %d detectors", i, p.States, len(c.Control.DetectorIDs))
				check(p.Duration >= 0, "local.phases[%d].duration is negative", i)
			}
		}
	case KindTraCI:
		check(c.Simulator.TraCI.Addr != "", "traci.addr is empty")
		check(c.Simulator.TraCI.RetryCount >= 0, "traci.retry_count must not be negative, got %d", c.Simulator.TraCI.RetryCount)
		check(c.Simulator.TraCI.RetryInterval >= 0, "traci.retry_interval must not be negative, got %v", c.Simulator.TraCI.RetryInterval)
	default:
		check(false, "unknown simulator kind %q", c.Simulator.Kind)
	}
	check(c.Status.Addr != "", "status.addr is empty")
	check(c.Status.StreamInterval > 0, "status.stream_interval must be positive, got %v", c.Status.StreamInterval)
	if c.Output.Mongo != nil {
		check(c.Output.Mongo.URI != "" && c.Output.Mongo.DB != "" && c.Output.Mongo.Col != "", "mongo output needs uri, db and col")
	}
	return errors.Join(errs...)
}
