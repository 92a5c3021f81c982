package idgen

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// ============================================================================
// ID 生成器
// ============================================================================
//
// 账号与流水号都通过 Generator 注入，而不是直接调用全局随机数：
//   - 生产环境使用 Digits（随机数字串）
//   - 测试可以注入 Sequence，构造确定的序列甚至故意制造碰撞
//
// 【注意】Generator 只负责“生成候选值”，唯一性由调用方结合数据库
// 唯一索引检查并有限次重试。
//
// ============================================================================

// Generator 标识符生成器
type Generator interface {
	Next() string
}

const (
	AccountNumberDigits = 12
	TransactionIDPrefix = "TXN"
	TransactionIDDigits = 10
)

// Digits 生成 prefix + n 位随机数字
type Digits struct {
	mu     sync.Mutex
	prefix string
	n      int
	rnd    *rand.Rand
	max    int64
}

// NewDigits 创建随机数字生成器，n 取值 1-18
func NewDigits(prefix string, n int, seed int64) *Digits {
	if n < 1 || n > 18 {
		panic(fmt.Sprintf("idgen: digits must be in 1-18, got %d", n))
	}
	max := int64(1)
	for i := 0; i < n; i++ {
		max *= 10
	}
	return &Digits{
		prefix: prefix,
		n:      n,
		rnd:    rand.New(rand.NewSource(seed)),
		max:    max,
	}
}

// NewAccountNumberGenerator 12 位数字账号
func NewAccountNumberGenerator(seed int64) *Digits {
	return NewDigits("", AccountNumberDigits, seed)
}

// NewTransactionIDGenerator 流水号：TXN + 10 位数字
func NewTransactionIDGenerator(seed int64) *Digits {
	return NewDigits(TransactionIDPrefix, TransactionIDDigits, seed)
}

func (g *Digits) Next() string {
	g.mu.Lock()
	v := g.rnd.Int63n(g.max)
	g.mu.Unlock()
	return fmt.Sprintf("%s%0*d", g.prefix, g.n, v)
}

// Sequence 按顺序返回预设值，用完后重复最后一个值
type Sequence struct {
	mu     sync.Mutex
	values []string
	pos    int
}

func NewSequence(values ...string) *Sequence {
	if len(values) == 0 {
		panic("idgen: empty sequence")
	}
	return &Sequence{values: values}
}

func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.pos]
	if s.pos < len(s.values)-1 {
		s.pos++
	}
	return v
}

// IsAccountNumber 校验 12 位纯数字账号
func IsAccountNumber(s string) bool {
	return len(s) == AccountNumberDigits && isDigits(s)
}

// IsTransactionID 校验 TXN + 10 位数字
func IsTransactionID(s string) bool {
	rest, ok := strings.CutPrefix(s, TransactionIDPrefix)
	return ok && len(rest) == TransactionIDDigits && isDigits(rest)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
