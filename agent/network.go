package agent

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/randengine"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrDiverged 函数近似器出现NaN或Inf
var ErrDiverged = errors.New("agent: approximator diverged")

// Adam默认超参数
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// dense 全连接层 y = Wx + b
type dense struct {
	w *mat.Dense    // out x in
	b *mat.VecDense // out

	// Adam一阶、二阶矩，与w、b的底层数据一一对应
	mw, vw []float64
	mb, vb []float64
}

func newDense(in, out int, generator *randengine.Engine) *dense {
	// Glorot uniform初始化，偏置为0
	limit := math.Sqrt(6 / float64(in+out))
	data := make([]float64, in*out)
	for i := range data {
		data[i] = generator.Uniform(-limit, limit)
	}
	return &dense{
		w:  mat.NewDense(out, in, data),
		b:  mat.NewVecDense(out, nil),
		mw: make([]float64, in*out),
		vw: make([]float64, in*out),
		mb: make([]float64, out),
		vb: make([]float64, out),
	}
}

// gradient 单层参数梯度
type gradient struct {
	w *mat.Dense
	b *mat.VecDense
}

// Network 多层感知机
// 功能：隐藏层ReLU、输出层线性，以均方误差为损失，用Adam做单样本梯度下降
type Network struct {
	layers []*dense
	alpha  float64
	t      int // Adam步数
}

// NewNetwork 创建网络
// 参数：sizes-各层宽度（含输入与输出），alpha-学习率，generator-参数初始化随机数引擎
func NewNetwork(sizes []int, alpha float64, generator *randengine.Engine) *Network {
	if len(sizes) < 2 {
		panic(fmt.Sprintf("agent: network needs at least 2 layer sizes, got %v", sizes))
	}
	n := &Network{alpha: alpha}
	for i := 0; i+1 < len(sizes); i++ {
		n.layers = append(n.layers, newDense(sizes[i], sizes[i+1], generator))
	}
	return n
}

// forward 前向传播，返回每层激活（含输入）与每层线性输出
func (n *Network) forward(x []float64) (acts []*mat.VecDense, pres []*mat.VecDense) {
	a := mat.NewVecDense(len(x), slices.Clone(x))
	acts = append(acts, a)
	for i, l := range n.layers {
		out, _ := l.w.Dims()
		z := mat.NewVecDense(out, nil)
		z.MulVec(l.w, a)
		z.AddVec(z, l.b)
		pres = append(pres, z)
		next := mat.VecDenseCopyOf(z)
		if i < len(n.layers)-1 {
			relu(next)
		}
		acts = append(acts, next)
		a = next
	}
	return
}

func relu(v *mat.VecDense) {
	data := v.RawVector().Data
	for i, x := range data {
		if x < 0 {
			data[i] = 0
		}
	}
}

// Predict 前向计算输出
func (n *Network) Predict(x []float64) []float64 {
	acts, _ := n.forward(x)
	out := acts[len(acts)-1]
	return slices.Clone(out.RawVector().Data)
}

// backward 计算均方误差损失与各层梯度
func (n *Network) backward(x, target []float64) (float64, []gradient) {
	acts, pres := n.forward(x)
	y := acts[len(acts)-1].RawVector().Data
	k := float64(len(y))
	loss := 0.
	delta := mat.NewVecDense(len(y), nil)
	for i := range y {
		d := y[i] - target[i]
		loss += d * d
		delta.SetVec(i, 2*d/k)
	}
	loss /= k

	grads := make([]gradient, len(n.layers))
	for li := len(n.layers) - 1; li >= 0; li-- {
		l := n.layers[li]
		out, in := l.w.Dims()
		gw := mat.NewDense(out, in, nil)
		gw.Outer(1, delta, acts[li])
		grads[li] = gradient{w: gw, b: mat.VecDenseCopyOf(delta)}
		if li == 0 {
			break
		}
		prev := mat.NewVecDense(in, nil)
		prev.MulVec(l.w.T(), delta)
		for j := range in {
			if pres[li-1].AtVec(j) <= 0 {
				prev.SetVec(j, 0)
			}
		}
		delta = prev
	}
	return loss, grads
}

// Fit 向目标做一步梯度下降
// 返回：更新前的损失；损失或输出出现NaN/Inf时返回ErrDiverged且不更新参数
func (n *Network) Fit(x, target []float64) (float64, error) {
	if len(target) != n.OutputSize() {
		return 0, fmt.Errorf("agent: target size %d, expected %d", len(target), n.OutputSize())
	}
	loss, grads := n.backward(x, target)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return loss, ErrDiverged
	}
	n.t++
	for i, l := range n.layers {
		n.adam(l.w.RawMatrix().Data, grads[i].w.RawMatrix().Data, l.mw, l.vw)
		n.adam(l.b.RawVector().Data, grads[i].b.RawVector().Data, l.mb, l.vb)
	}
	return loss, nil
}

// adam 原地更新参数
func (n *Network) adam(params, grads, m, v []float64) {
	lr := n.alpha * math.Sqrt(1-math.Pow(adamBeta2, float64(n.t))) / (1 - math.Pow(adamBeta1, float64(n.t)))
	for i, g := range grads {
		m[i] = adamBeta1*m[i] + (1-adamBeta1)*g
		v[i] = adamBeta2*v[i] + (1-adamBeta2)*g*g
		params[i] -= lr * m[i] / (math.Sqrt(v[i]) + adamEpsilon)
	}
}

// InputSize 输入维度
func (n *Network) InputSize() int {
	_, in := n.layers[0].w.Dims()
	return in
}

// OutputSize 输出维度
func (n *Network) OutputSize() int {
	out, _ := n.layers[len(n.layers)-1].w.Dims()
	return out
}

// finite 所有值均为有限数
func finite(values []float64) bool {
	if floats.HasNaN(values) {
		return false
	}
	for _, v := range values {
		if math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
