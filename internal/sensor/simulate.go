package sensor

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/clemmont/internal/model"
)

// 実機センサーが未接続のデバイス向けに生成する模擬計測値のレンジ。
const (
	humidityMin    = 55.0
	humidityMax    = 65.0
	waterLevelMin  = 60.0
	waterLevelMax  = 80.0
	temperatureMin = 22.0
	temperatureMax = 27.0
)

// randomInRange は[min, max)の乱数を返す。
func randomInRange(min, max float64) float64 {
	return min + rand.Float64()*(max-min)
}

// SimulatedReading はデバイスの模擬計測値を生成する。
// サンプリングワーカーが実機からの受信の代わりに使用する。
func SimulatedReading(deviceID string, now time.Time) *model.SensorReading {
	return &model.SensorReading{
		ID:          uuid.New().String(),
		DeviceID:    deviceID,
		Humidity:    randomInRange(humidityMin, humidityMax),
		WaterLevel:  randomInRange(waterLevelMin, waterLevelMax),
		Temperature: randomInRange(temperatureMin, temperatureMax),
		RecordedAt:  now,
	}
}

// simulatedSnapshot は計測値が1件もない場合に返すスナップショットを生成する。
func simulatedSnapshot(now time.Time) *model.SensorSnapshot {
	return &model.SensorSnapshot{
		Humidity:    randomInRange(humidityMin, humidityMax),
		WaterLevel:  randomInRange(waterLevelMin, waterLevelMax),
		Temperature: randomInRange(temperatureMin, temperatureMax),
		Timestamp:   now,
	}
}
