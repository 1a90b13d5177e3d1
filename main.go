package main

import (
	"context"
	"encoding/base64"
	"flag"
	"os"
	"time"

	"git.fiblab.net/sim/syncer/v3"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/report"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/sim"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/sim/local"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/sim/traci"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/status"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/task"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/config"
)

var (
	// 分布式模式syncer地址，如果设置为空则激活独立部署模式
	syncerAddr = flag.String("syncer", "", "syncer address (empty means standalone mode), e.g. http://localhost:53001")
	// 训练任务名，作为本次训练ID的前缀
	job = flag.String("job", "job0", "the name of the training task")
	// sidecar监听的RPC地址
	grpcAddr = flag.String("listen", ":51102", "gRPC listening address")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "signal-rl")
)

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	// 获取配置，未指定时使用默认配置
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	}
	c, err := config.Load(file)
	if err != nil {
		log.Panicf("config file load err: %v", err)
	}
	log.Infof("%+v", c)

	runID := *job + "-" + uuid.NewString()
	sidecar := syncer.NewSidecar(task.SelfName, *grpcAddr, *syncerAddr)

	// 打开唯一的模拟器会话
	var adapter sim.Adapter
	switch c.Simulator.Kind {
	case config.KindLocal:
		s, err := local.New(c.Simulator.Local, c.Control.DetectorIDs, c.Control.SignalID)
		if err != nil {
			log.Panicf("failed to create local simulator: %v", err)
		}
		s.Register(sidecar)
		adapter = s
	case config.KindTraCI:
		client, err := traci.Dial(
			c.Simulator.TraCI.Addr,
			c.Simulator.TraCI.RetryCount,
			seconds(c.Simulator.TraCI.RetryInterval),
		)
		if err != nil {
			log.Panicf("failed to connect SUMO: %v", err)
		}
		adapter = client
	}

	cell := status.NewCell()
	server := status.NewServer(c.Status.Addr, c.Status.AllowedOrigin, cell, seconds(c.Status.StreamInterval))
	t, err := task.NewContext(runID, c, adapter, agent.New(c.Agent), cell, sidecar, server)
	if err != nil {
		adapter.Close()
		log.Panicf("failed to create task: %v", err)
	}

	h, runErr := t.Run()
	if h != nil && h.Len() > 0 {
		if err := report.Export(context.Background(), c.Output, h); err != nil {
			log.Errorf("export history: %v", err)
		}
	}
	if runErr != nil {
		log.Fatalf("run %s failed: %v", runID, runErr)
	}
}
