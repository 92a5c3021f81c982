package money

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 金额类型
// ============================================================================
//
// 所有余额计算统一使用定点小数（2 位小数），底层是任意精度的 decimal，
// 任何路径都不允许出现 float64。
//
// 入参金额（存款/取款/转账）必须：
//   1. 大于 0
//   2. 小数位不超过 2 位
//
// ============================================================================

// Scale 金额小数位数
const Scale = 2

var ErrInvalidAmount = errors.New("invalid amount")

// Money 2 位小数的定点金额
type Money struct {
	d decimal.Decimal
}

func Zero() Money {
	return Money{d: decimal.Zero}
}

func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d}
}

// FromCents 以“分”构造金额，例如 FromCents(1050) == 10.50
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

// Parse 解析十进制字符串，不做小数位截断（由 ValidateAmount 负责校验）
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{d: d}, nil
}

// MustParse 仅用于常量和测试
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ValidateAmount 校验外部传入的金额：必须为正且最多 2 位小数
func ValidateAmount(m Money) error {
	if !m.d.IsPositive() {
		return fmt.Errorf("%w: must be positive, got %s", ErrInvalidAmount, m.d.String())
	}
	if !m.d.Round(Scale).Equal(m.d) {
		return fmt.Errorf("%w: at most %d decimal places, got %s", ErrInvalidAmount, Scale, m.d.String())
	}
	return nil
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) Neg() Money { return Money{d: m.d.Neg()} }

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

func (m Money) IsZero() bool { return m.d.IsZero() }

// MulRate 计算 m * rate / divisor，按四舍五入（half-up）保留 2 位小数。
// 例如月息：balance.MulRate(0.04, 12)
func (m Money) MulRate(rate decimal.Decimal, divisor int64) Money {
	v := m.d.Mul(rate)
	if divisor != 1 {
		v = v.Div(decimal.NewFromInt(divisor))
	}
	return Money{d: v.Round(Scale)}
}

// String 始终输出 2 位小数，例如 "600.00"、"-510.00"
func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

// Value 实现 driver.Valuer，数据库中以 decimal(20,2) 存储
func (m Money) Value() (driver.Value, error) {
	return m.d.StringFixed(Scale), nil
}

// Scan 实现 sql.Scanner
func (m *Money) Scan(value interface{}) error {
	return m.d.Scan(value)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON 同时接受 "12.34" 与 12.34 两种写法
func (m *Money) UnmarshalJSON(data []byte) error {
	if err := m.d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	return nil
}

// Sum 累加一组金额
func Sum(values ...Money) Money {
	total := Zero()
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
