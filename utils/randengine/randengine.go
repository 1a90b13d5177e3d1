// 随机数引擎，包装了golang.org/x/exp/rand，供探索策略与本地模拟器的车辆到达过程使用
package randengine

import (
	"flag"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于在不改配置的情况下换一组随机序列
)

// Engine 随机数引擎
// 功能：提供可复现的随机数生成
// 说明：非线程安全，需要并行采样时每个goroutine各持有一个引擎
type Engine struct {
	*rand.Rand // 底层随机数生成器
}

// New 创建随机数引擎
// 参数：seed-随机数种子（会叠加rand.seed_offset）
// 返回：随机数引擎指针
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// PTrue 以指定概率返回true
// 功能：伯努利采样，p<=0恒为false，p>=1恒为true
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Choice 在[0, n)中均匀选取一个下标
func (e *Engine) Choice(n int) int {
	if n <= 0 {
		panic("randengine: Choice with non-positive n")
	}
	return e.Intn(n)
}

// Uniform 在[lo, hi)中均匀采样
func (e *Engine) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*e.Float64()
}
