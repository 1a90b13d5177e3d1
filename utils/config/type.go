package config

// PhaseConfig 本地模拟器的信号灯相位配置项
// 功能：描述一个相位的持续时间与每条检测车道的灯色
// 说明：States每个字符对应一个检测器（按detector_ids顺序），G/g为绿灯，y为黄灯，r为红灯
type PhaseConfig struct {
	Duration float64 `yaml:"duration"` // 相位时长（秒），0表示保持直到被外部切换
	States   string  `yaml:"states"`   // 灯色字符串
}

// LaneConfig 本地模拟器的车道配置项
type LaneConfig struct {
	ArrivalRate   float64 `yaml:"arrival_rate"`   // 每步到达一辆车的概率
	DischargeRate float64 `yaml:"discharge_rate"` // 绿灯时每步驶离一辆车的概率
}

// Local 进程内单路口模拟器配置
// 功能：定义本地排队模拟器的路口、车道与相位程序
// 说明：ProgramFile非空时从protobuf文件读取信号灯程序，优先级高于Phases
type Local struct {
	JunctionID  int32         `yaml:"junction_id"`            // RPC中使用的路口ID
	Seed        uint64        `yaml:"seed"`                   // 随机种子
	Interval    float64       `yaml:"interval"`               // 每步的时间间隔（秒）
	Lanes       []LaneConfig  `yaml:"lanes,omitempty"`        // 车道参数，按detector_ids顺序，缺省使用默认值
	Phases      []PhaseConfig `yaml:"phases,omitempty"`       // 相位程序
	ProgramFile string        `yaml:"program_file,omitempty"` // 信号灯程序文件（mapv2.TrafficLight）
}

// TraCI 外部SUMO进程的连接配置
type TraCI struct {
	Addr          string  `yaml:"addr"`           // SUMO --remote-port 地址
	RetryCount    int     `yaml:"retry_count"`    // 启动阶段连接重试次数
	RetryInterval float64 `yaml:"retry_interval"` // 重试间隔（秒）
}

// Simulator 仿真适配器配置
// 功能：选择仿真后端（local或traci）并给出对应参数
type Simulator struct {
	Kind  string `yaml:"kind"` // local | traci
	Local Local  `yaml:"local,omitempty"`
	TraCI TraCI  `yaml:"traci,omitempty"`
}

// Agent 在线DQN智能体配置
type Agent struct {
	Alpha   float64 `yaml:"alpha"`   // 学习率
	Gamma   float64 `yaml:"gamma"`   // 折扣因子
	Epsilon float64 `yaml:"epsilon"` // 探索率
	Hidden  []int   `yaml:"hidden"`  // 隐藏层宽度
	Seed    uint64  `yaml:"seed"`    // 随机种子（参数初始化与探索）
}

// Control 控制循环配置
// 功能：定义训练总步数、最小绿灯时长以及被控制的检测器和信号灯
type Control struct {
	TotalSteps        int      `yaml:"total_steps"`        // 总步数
	MinGreenSteps     int      `yaml:"min_green_steps"`    // 两次切换相位之间的最小步数
	DetectorIDs       []string `yaml:"detector_ids"`       // 6个检测器ID，前3个为EB，后3个为SB
	SignalID          string   `yaml:"signal_id"`          // 被控制的信号灯ID
	HeartbeatInterval int      `yaml:"heartbeat_interval"` // 心跳日志间隔步数
}

// Status 实时状态服务配置
type Status struct {
	Addr           string  `yaml:"addr"`            // HTTP监听地址
	AllowedOrigin  string  `yaml:"allowed_origin"`  // 允许跨域访问的前端地址
	StreamInterval float64 `yaml:"stream_interval"` // websocket推送间隔（秒）
}

// Mongo MongoDB输出配置
type Mongo struct {
	URI string `yaml:"uri"`
	DB  string `yaml:"db"`
	Col string `yaml:"col"`
}

// Output 训练历史输出配置，每一项为空则不输出
type Output struct {
	Workbook string `yaml:"workbook,omitempty"` // xlsx文件路径
	SQLite   string `yaml:"sqlite,omitempty"`   // sqlite数据库路径
	Mongo    *Mongo `yaml:"mongo,omitempty"`
}

// Config YAML配置文件的根结构
// 功能：定义整个训练任务的配置结构
type Config struct {
	Simulator Simulator `yaml:"simulator"`
	Agent     Agent     `yaml:"agent"`
	Control   Control   `yaml:"control"`
	Status    Status    `yaml:"status"`
	Output    Output    `yaml:"output"`
}
