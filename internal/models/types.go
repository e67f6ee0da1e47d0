package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/custom-pricing/internal/pricing"
)

// JSON 通用 JSON 对象列
type JSON map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return jsonValue(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	return json.Unmarshal(scanBytes(value), j)
}

// StringArray 字符串数组列（ID 列表、标签）
type StringArray []string

// Value 实现 driver.Valuer 接口
func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return jsonValue(s)
}

// Scan 实现 sql.Scanner 接口
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = StringArray{}
		return nil
	}
	return json.Unmarshal(scanBytes(value), s)
}

// TargetItems 后台选中的商品引用
type TargetItems []pricing.TargetItem

// Value 实现 driver.Valuer 接口
func (t TargetItems) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	return jsonValue(t)
}

// Scan 实现 sql.Scanner 接口
func (t *TargetItems) Scan(value interface{}) error {
	if value == nil {
		*t = TargetItems{}
		return nil
	}
	return json.Unmarshal(scanBytes(value), t)
}

// PriceWarnings 异步复核得到的定价预警
type PriceWarnings []pricing.PriceWarning

// Value 实现 driver.Valuer 接口
func (p PriceWarnings) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	return jsonValue(p)
}

// Scan 实现 sql.Scanner 接口
func (p *PriceWarnings) Scan(value interface{}) error {
	if value == nil {
		*p = PriceWarnings{}
		return nil
	}
	return json.Unmarshal(scanBytes(value), p)
}

// jsonValue 以文本写入，sqlite 的 json 函数不接受 BLOB
func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// scanBytes sqlite 返回 string，postgres 返回 []byte
func scanBytes(value interface{}) []byte {
	switch v := value.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return []byte("null")
	}
}
