package local

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"git.fiblab.net/sim/syncer/v3"
	"google.golang.org/protobuf/proto"
)

// Register 将信号灯查询服务注册到sidecar
// 说明：只提供GetTrafficLight，其余设置接口保持未实现，相位只能由控制循环修改
func (s *Simulator) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		mapv2connect.TrafficLightServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return mapv2connect.NewTrafficLightServiceHandler(s, opts...)
		},
		syncer.WithNoLock(),
	)
}

// GetTrafficLight RPC接口：获取路口信号灯状态
// 返回：信号灯程序副本、当前相位与剩余时间
func (s *Simulator) GetTrafficLight(
	ctx context.Context, in *connect.Request[mapv2.GetTrafficLightRequest],
) (*connect.Response[mapv2.GetTrafficLightResponse], error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if in.Msg.JunctionId != s.junctionID {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("junction id does not exist"))
	}
	rt := s.light.runtime
	return connect.NewResponse(&mapv2.GetTrafficLightResponse{
		TrafficLight:  proto.Clone(rt.tl).(*mapv2.TrafficLight),
		PhaseIndex:    rt.step,
		TimeRemaining: rt.remainingT,
	}), nil
}
