package domain

import (
	"fmt"
	"time"
)

// timestampLayouts 按优先级尝试的 ISO-8601 布局
// agent 侧上报的是不带时区的 naive 时间（如 "2024-01-01T12:00:00"），
// 也兼容 RFC3339 和带小数秒的变体
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Timestamp 包装 time.Time，JSON 反序列化时做 ISO-8601 校验
// 已经是 time.Time 的值（程序内构造）原样通过
type Timestamp struct {
	time.Time
}

// NewTimestamp 从原生 time.Time 构造
func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

// ParseTimestamp 解析 ISO-8601 字符串
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, &ValidationError{
		Field:  "timestamp",
		Reason: fmt.Sprintf("invalid format %q, expected ISO 8601 (YYYY-MM-DDTHH:MM:SS)", s),
	}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return &ValidationError{Field: "timestamp", Reason: "must not be null"}
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return &ValidationError{Field: "timestamp", Reason: "must be an ISO 8601 string"}
	}
	parsed, err := ParseTimestamp(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format(time.RFC3339Nano) + `"`), nil
}
