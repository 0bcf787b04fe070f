package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// leadingNumber 匹配文本开头的十进制数字（如 "1.5eth" 取 "1.5"）
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Number 把任意JSON值宽松地转换为有限浮点数，无法解析时返回0
//
// nil、布尔值、对象、数组都视为缺失；字符串先去除首尾空白再解析。
func Number(v interface{}) float64 {
	switch val := v.(type) {
	case nil, bool:
		return 0
	case string:
		return Text(val)
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0
	}
	return finite(f)
}

// Text 解析用户输入的数字文本，失败时返回0（不阻塞提交）
func Text(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if f, err := cast.ToFloat64E(s); err == nil {
		return finite(f)
	}

	prefix := leadingNumber.FindString(s)
	if prefix == "" {
		return 0
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

// String 字符串字段，缺失或非字符串时返回空串；数字按最短形式转换
func String(v interface{}) string {
	switch val := v.(type) {
	case nil, bool, map[string]interface{}, []interface{}:
		return ""
	case string:
		return val
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

// Bool 欺诈标记，只接受布尔值或可解析的布尔文本，其余视为false
func Bool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0 && !math.IsNaN(val)
	case string:
		b, err := cast.ToBoolE(strings.TrimSpace(val))
		return err == nil && b
	default:
		return false
	}
}

// Time 解析ISO时间戳，失败时返回零值
func Time(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return time.Time{}
	}
	t, err := cast.ToTimeE(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

// OptionalTime 同Time，缺失或无法解析时为nil
func OptionalTime(v interface{}) *time.Time {
	t := Time(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
