// Package model はドメインモデルを定義する。
package model

import "time"

// Device はユーザーに紐付く灌漑デバイスを表す。
// IDはデバイス本体に印字されたリンクコードで、ユーザーが入力する。
type Device struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// SensorReading はデバイスが記録した1回分のセンサー計測値を表す。
type SensorReading struct {
	ID          string
	DeviceID    string
	Humidity    float64 // 土壌湿度（%）
	WaterLevel  float64 // タンク水位（リットル）
	Temperature float64 // 気温（摂氏）
	RecordedAt  time.Time
}

// SensorSnapshot はアシスタントのステータス要約に渡す現在値のスナップショット。
type SensorSnapshot struct {
	Humidity    float64   `json:"humidity"`
	WaterLevel  float64   `json:"waterLevel"`
	Temperature float64   `json:"temperature"`
	Timestamp   time.Time `json:"timestamp"`
}
