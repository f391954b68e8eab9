package model

import (
	"fmt"
	"time"
)

const timeFormat = "2006-01-02 15:04:05"

// LocalTime 用于在 JSON 输出中将时间格式化为 "YYYY-MM-DD HH:MM:SS"。
type LocalTime time.Time

// MarshalJSON 实现 json.Marshaler 接口。
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Time(t).Format(timeFormat))), nil
}
