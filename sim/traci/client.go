// TraCI客户端，通过TCP控制以--remote-port启动的SUMO进程
package traci

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/sim"
)

var log = logrus.WithField("module", "traci")

// 命令与变量ID
const (
	cmdGetVersion = 0x00
	cmdSimStep    = 0x02
	cmdClose      = 0x7f

	cmdGetLaneAreaVariable = 0xad
	cmdGetTLVariable       = 0xa2
	cmdSetTLVariable       = 0xc2

	varLastStepVehicleNumber = 0x10
	varTLCurrentPhase        = 0x28
	varTLCompleteProgram     = 0x2b
	varTLPhaseIndex          = 0x22

	// 查询命令的响应ID为命令ID+0x10
	responseOffset = 0x10
)

// 状态码，0x01为未实现，0xff为失败
const rtypeOK = 0x00

// StatusError SUMO返回的非OK状态
type StatusError struct {
	Command     byte
	Result      byte
	Description string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("traci: command 0x%02x failed with status 0x%02x: %s", e.Command, e.Result, e.Description)
}

// Client TraCI会话
// 功能：实现sim.Adapter，每次调用发送一条命令并同步等待响应
// 说明：一个进程内只打开一个会话，调用方不做重试
type Client struct {
	mtx     sync.Mutex
	conn    net.Conn
	closed  bool
	Version int    // TraCI API版本
	Server  string // SUMO版本描述
}

var _ sim.Adapter = (*Client)(nil)

// Dial 连接SUMO
// 功能：在SUMO启动期间按固定间隔重试连接，连接成功后查询版本
// 参数：addr-SUMO地址，retryCount-重试次数，interval-重试间隔
// 返回：会话与错误
// 说明：重试只发生在建立连接阶段，连接建立后的任何错误都直接返回
func Dial(addr string, retryCount int, interval time.Duration) (*Client, error) {
	if retryCount < 0 {
		return nil, fmt.Errorf("traci: negative retry count %d", retryCount)
	}
	var conn net.Conn
	var err error
	for i := 0; i <= retryCount; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		log.Debugf("dial %s failed (%d/%d): %v", addr, i, retryCount, err)
		if i < retryCount {
			time.Sleep(interval)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("traci: SUMO `%v` did not become ready after %d retries: %w", addr, retryCount, err)
	}
	return newClient(conn)
}

func newClient(conn net.Conn) (*Client, error) {
	c := &Client{conn: conn}
	if err := c.version(); err != nil {
		conn.Close()
		return nil, err
	}
	log.Infof("connected to %s (api %d)", c.Server, c.Version)
	return c, nil
}

// do 发送一条命令，检查状态响应，返回状态之后剩余的消息内容
func (c *Client) do(id byte, content []byte) (*reader, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.closed {
		return nil, sim.ErrClosed
	}
	var w writer
	w.command(id, content)
	if _, err := c.conn.Write(message(w.Bytes())); err != nil {
		return nil, fmt.Errorf("traci: send command 0x%02x: %w", id, err)
	}
	var head [4]byte
	if _, err := io.ReadFull(c.conn, head[:]); err != nil {
		return nil, fmt.Errorf("traci: receive response of 0x%02x: %w", id, err)
	}
	n := int(binary.BigEndian.Uint32(head[:])) - 4
	if n < 0 {
		return nil, fmt.Errorf("traci: invalid message length %d", n+4)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, fmt.Errorf("traci: receive response of 0x%02x: %w", id, err)
	}
	r := newReader(body)
	statusID, status, err := r.command()
	if err != nil {
		return nil, fmt.Errorf("traci: read status of 0x%02x: %w", id, err)
	}
	if statusID != id {
		return nil, fmt.Errorf("traci: status for command 0x%02x, expected 0x%02x", statusID, id)
	}
	result, err := status.ubyte()
	if err != nil {
		return nil, err
	}
	description, err := status.str()
	if err != nil {
		return nil, err
	}
	if result != rtypeOK {
		return nil, &StatusError{Command: id, Result: result, Description: description}
	}
	return r, nil
}

// get 查询对象变量，返回解析后的值
func (c *Client) get(domain byte, variable byte, objectID string) (any, error) {
	var w writer
	w.ubyte(variable)
	w.str(objectID)
	r, err := c.do(domain, w.Bytes())
	if err != nil {
		return nil, err
	}
	id, res, err := r.command()
	if err != nil {
		return nil, fmt.Errorf("traci: read response of 0x%02x: %w", domain, err)
	}
	if id != domain+responseOffset {
		return nil, fmt.Errorf("traci: response 0x%02x for command 0x%02x", id, domain)
	}
	v, err := res.ubyte()
	if err != nil {
		return nil, err
	}
	obj, err := res.str()
	if err != nil {
		return nil, err
	}
	if v != variable || obj != objectID {
		return nil, fmt.Errorf("traci: response for %s/0x%02x, expected %s/0x%02x", obj, v, objectID, variable)
	}
	return res.value()
}

func (c *Client) getInt(domain byte, variable byte, objectID string) (int, error) {
	v, err := c.get(domain, variable, objectID)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("traci: expected int for %s/0x%02x, got %T", objectID, variable, v)
	}
	return n, nil
}

func (c *Client) version() error {
	r, err := c.do(cmdGetVersion, nil)
	if err != nil {
		return err
	}
	_, res, err := r.command()
	if err != nil {
		return fmt.Errorf("traci: read version: %w", err)
	}
	v, err := res.int32()
	if err != nil {
		return err
	}
	s, err := res.str()
	if err != nil {
		return err
	}
	c.Version, c.Server = int(v), s
	return nil
}

// Advance 推进一个仿真步（目标时间0表示仅推进一步）
func (c *Client) Advance() error {
	var w writer
	w.double(0)
	if _, err := c.do(cmdSimStep, w.Bytes()); err != nil {
		return fmt.Errorf("simulation step: %w", err)
	}
	return nil
}

// QueueLength E2检测器上一步的车辆数
func (c *Client) QueueLength(detectorID string) (int, error) {
	return c.getInt(cmdGetLaneAreaVariable, varLastStepVehicleNumber, detectorID)
}

// Phase 信号灯当前相位
func (c *Client) Phase(signalID string) (int, error) {
	return c.getInt(cmdGetTLVariable, varTLCurrentPhase, signalID)
}

// PhaseCount 信号灯第一个程序中的相位数
// 算法说明：完整程序定义为compound(逻辑数)，每个逻辑为
// compound(programID, type, currentPhaseIndex, compound(相位...), compound(参数...))
func (c *Client) PhaseCount(signalID string) (int, error) {
	v, err := c.get(cmdGetTLVariable, varTLCompleteProgram, signalID)
	if err != nil {
		return 0, err
	}
	logics, ok := v.([]any)
	if !ok || len(logics) == 0 {
		return 0, fmt.Errorf("traci: traffic light %s has no program logic", signalID)
	}
	logic, ok := logics[0].([]any)
	if !ok || len(logic) < 4 {
		return 0, fmt.Errorf("traci: malformed program logic of %s", signalID)
	}
	phases, ok := logic[3].([]any)
	if !ok || len(phases) == 0 {
		return 0, fmt.Errorf("traci: traffic light %s has no phases", signalID)
	}
	return len(phases), nil
}

// SetPhase 切换相位，已处于该相位时不发送命令（SUMO会重置相位计时）
func (c *Client) SetPhase(signalID string, phase int) error {
	current, err := c.Phase(signalID)
	if err != nil {
		return err
	}
	if current == phase {
		return nil
	}
	var w writer
	w.ubyte(varTLPhaseIndex)
	w.str(signalID)
	w.ubyte(typeInt)
	w.int32(int32(phase))
	if _, err := c.do(cmdSetTLVariable, w.Bytes()); err != nil {
		return fmt.Errorf("set phase of %s: %w", signalID, err)
	}
	return nil
}

// Close 结束仿真并关闭连接，重复调用无副作用
func (c *Client) Close() error {
	_, err := c.do(cmdClose, nil)
	if errors.Is(err, sim.ErrClosed) {
		return nil
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.closed = true
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}
