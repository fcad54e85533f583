package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// AccelerometerSample 加速度计采样（m/s²）
type AccelerometerSample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GpsSample GPS 采样；取值范围由上游 agent 保证，这里只要求有限值
type GpsSample struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AgentReading 一次 agent 上报：加速度 + GPS + 时间戳
// user_id 可选，缺省为 1（对应单用户 agent 部署）
type AgentReading struct {
	Accelerometer AccelerometerSample `json:"accelerometer"`
	GPS           GpsSample           `json:"gps"`
	Timestamp     Timestamp           `json:"timestamp"`
	UserID        int64               `json:"user_id,omitempty"`
}

// ProcessedRecord 带路况标签的上报数据，是入库的最小单元
// road_state 由 edge 侧分类器预先算好，本服务不做分类
type ProcessedRecord struct {
	RoadState string       `json:"road_state"`
	AgentData AgentReading `json:"agent_data"`
}

// StoredRecord 落库后的扁平行，id 由数据库分配
type StoredRecord struct {
	ID        int64     `json:"id"`
	RoadState string    `json:"road_state"`
	UserID    int64     `json:"user_id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationError 输入校验失败（客户端错误，区别于 NotFound 和存储错误）
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Validate 校验并归一化一条 ProcessedRecord：
// - road_state 非空
// - 所有浮点字段为有限值
// - timestamp 已成功解析（零值视为缺失）
// - user_id 缺省补为 1
// 必须在任何存储或广播动作之前调用。
func (r *ProcessedRecord) Validate() error {
	if strings.TrimSpace(r.RoadState) == "" {
		return &ValidationError{Field: "road_state", Reason: "must not be empty"}
	}
	a := r.AgentData.Accelerometer
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"agent_data.accelerometer.x", a.X},
		{"agent_data.accelerometer.y", a.Y},
		{"agent_data.accelerometer.z", a.Z},
		{"agent_data.gps.latitude", r.AgentData.GPS.Latitude},
		{"agent_data.gps.longitude", r.AgentData.GPS.Longitude},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &ValidationError{Field: f.name, Reason: "must be a finite number"}
		}
	}
	if r.AgentData.Timestamp.IsZero() {
		return &ValidationError{Field: "agent_data.timestamp", Reason: "is required"}
	}
	if r.AgentData.UserID < 0 {
		return &ValidationError{Field: "agent_data.user_id", Reason: "must not be negative"}
	}
	if r.AgentData.UserID == 0 {
		r.AgentData.UserID = 1
	}
	return nil
}

// Flatten 将一条校验过的记录展开为待落库的扁平行（id 为 0，由库分配）
func (r *ProcessedRecord) Flatten() StoredRecord {
	return StoredRecord{
		RoadState: r.RoadState,
		UserID:    r.AgentData.UserID,
		X:         r.AgentData.Accelerometer.X,
		Y:         r.AgentData.Accelerometer.Y,
		Z:         r.AgentData.Accelerometer.Z,
		Latitude:  r.AgentData.GPS.Latitude,
		Longitude: r.AgentData.GPS.Longitude,
		Timestamp: r.AgentData.Timestamp.Time,
	}
}
