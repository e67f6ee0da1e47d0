package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Money 两位小数的定点数，规则参数（折扣百分比、减免金额、一口价）统一用它落库
// JSON 输出为数字，便于店铺脚本直接参与计算。
type Money struct {
	decimal.Decimal
}

// NewMoneyFromFloat 从浮点数创建金额，按分四舍五入
func NewMoneyFromFloat(amount float64) Money {
	return Money{Decimal: decimal.NewFromFloat(amount).Round(2)}
}

// Float 转为 float64 供定价计算使用
func (m Money) Float() float64 {
	f, _ := m.Decimal.Round(2).Float64()
	return f
}

// MarshalJSON 输出两位小数的数字
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.Round(2).StringFixed(2)), nil
}

// UnmarshalJSON 兼容字符串与数字两种写法
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		m.Decimal = decimal.Zero
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return err
	}
	m.Decimal = d.Round(2)
	return nil
}

// Value 用于数据库写入
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Round(2).Value()
}

// Scan 用于数据库读取
func (m *Money) Scan(value interface{}) error {
	if err := m.Decimal.Scan(value); err != nil {
		return err
	}
	m.Decimal = m.Decimal.Round(2)
	return nil
}

// String 返回两位小数格式
func (m Money) String() string {
	return m.Decimal.Round(2).StringFixed(2)
}
