package traci

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// TraCI数据类型标记
const (
	typeUByte      byte = 0x07
	typeByte       byte = 0x08
	typeInt        byte = 0x09
	typeDouble     byte = 0x0b
	typeString     byte = 0x0c
	typeStringList byte = 0x0e
	typeCompound   byte = 0x0f
)

var errShortRead = errors.New("traci: unexpected end of message")

// writer 按TraCI的大端格式写入数据
type writer struct {
	bytes.Buffer
}

func (w *writer) ubyte(b byte) {
	w.WriteByte(b)
}

func (w *writer) int32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.Write(b[:])
}

func (w *writer) double(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	w.Write(b[:])
}

func (w *writer) str(s string) {
	w.int32(int32(len(s)))
	w.WriteString(s)
}

func (w *writer) stringList(l []string) {
	w.int32(int32(len(l)))
	for _, s := range l {
		w.str(s)
	}
}

// command 写入一条命令：长度不超过255时使用1字节长度，否则使用0+4字节扩展长度
func (w *writer) command(id byte, content []byte) {
	n := 2 + len(content)
	if n <= 255 {
		w.ubyte(byte(n))
	} else {
		w.ubyte(0)
		w.int32(int32(n + 4))
	}
	w.ubyte(id)
	w.Write(content)
}

// message 给命令序列加上4字节的总长度（包含长度本身）
func message(commands []byte) []byte {
	var w writer
	w.int32(int32(4 + len(commands)))
	w.Write(commands)
	return w.Bytes()
}

// reader 按TraCI的大端格式读取数据
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) next(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, errShortRead
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) ubyte() (byte, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) int32() (int32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *reader) double() (float64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (r *reader) str() (string, error) {
	n, err := r.int32()
	if err != nil {
		return "", err
	}
	b, err := r.next(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// command 读取一条命令，返回命令ID与只包含命令内容的reader
func (r *reader) command() (byte, *reader, error) {
	n, err := r.ubyte()
	if err != nil {
		return 0, nil, err
	}
	header := 2
	length := int(n)
	if n == 0 {
		l, err := r.int32()
		if err != nil {
			return 0, nil, err
		}
		header = 6
		length = int(l)
	}
	id, err := r.ubyte()
	if err != nil {
		return 0, nil, err
	}
	content, err := r.next(length - header)
	if err != nil {
		return 0, nil, err
	}
	return id, newReader(content), nil
}

// value 读取一个带类型标记的值
// 返回：ubyte/byte/int转换为int，double为float64，string为string，
// stringlist为[]string，compound为[]any（元素递归解析）
func (r *reader) value() (any, error) {
	t, err := r.ubyte()
	if err != nil {
		return nil, err
	}
	switch t {
	case typeUByte:
		b, err := r.ubyte()
		return int(b), err
	case typeByte:
		b, err := r.ubyte()
		return int(int8(b)), err
	case typeInt:
		v, err := r.int32()
		return int(v), err
	case typeDouble:
		return r.double()
	case typeString:
		return r.str()
	case typeStringList:
		n, err := r.int32()
		if err != nil {
			return nil, err
		}
		l := make([]string, 0, n)
		for range n {
			s, err := r.str()
			if err != nil {
				return nil, err
			}
			l = append(l, s)
		}
		return l, nil
	case typeCompound:
		n, err := r.int32()
		if err != nil {
			return nil, err
		}
		items := make([]any, 0, n)
		for range n {
			v, err := r.value()
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("traci: unsupported value type 0x%02x", t)
	}
}
