package node

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind 字段值的类型.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
)

// Value 经过类型推断后的字段值.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
}

// textField 字段值始终保留为字符串. 名称中含有 "res" 的字段(Gres, GresUsed, AllocTRES ...)
// 是结构化文本, 不能被当作数值; 节点状态同样是文本.
func textField(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "res") || k == FieldState
}

// ParseValue 按字段名推断字段值类型: 文本字段原样保留, 其余字段含 '.' 时按浮点数解析, 否则按整数解析.
func ParseValue(key, raw string) (Value, error) {
	if textField(key) {
		return Value{Kind: KindString, Str: raw}, nil
	}
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ".") {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("field %s: invalid float %q", key, raw)
		}
		return Value{Kind: KindFloat, Float: f}, nil
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Value{}, fmt.Errorf("field %s: invalid integer %q", key, raw)
	}
	return Value{Kind: KindInt, Int: i}, nil
}

// AsInt 整数值; 小数部分为 0 的浮点数同样接受.
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.Int, true
	case KindFloat:
		if v.Float == float64(int64(v.Float)) {
			return int64(v.Float), true
		}
	}
	return 0, false
}

// AsFloat 数值转为浮点数.
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	}
	return 0, false
}
