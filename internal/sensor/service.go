// Package sensor はセンサー計測値の取得・集計のドメインロジックを提供する。
package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/clemmont/internal/model"
	"github.com/hitoshi/clemmont/internal/repository"
)

// Service はセンサー計測値のビジネスロジックを提供する。
type Service struct {
	readings repository.ReadingRepository
	devices  repository.DeviceRepository
}

// NewService はServiceを生成する。
func NewService(readings repository.ReadingRepository, devices repository.DeviceRepository) *Service {
	return &Service{
		readings: readings,
		devices:  devices,
	}
}

// SnapshotForUser はユーザーの現在のセンサースナップショットを返す。
// ユーザーの全デバイスの最新計測値のうち最も新しいものを採用する。
// デバイス未登録や計測値なしの場合は模擬値を返す（スナップショットは常に得られる）。
func (s *Service) SnapshotForUser(ctx context.Context, userID string) (*model.SensorSnapshot, error) {
	devices, err := s.devices.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	var latest *model.SensorReading
	for _, d := range devices {
		r, err := s.readings.LatestByDeviceID(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch latest reading: %w", err)
		}
		if r == nil {
			continue
		}
		if latest == nil || r.RecordedAt.After(latest.RecordedAt) {
			latest = r
		}
	}

	if latest == nil {
		return simulatedSnapshot(time.Now()), nil
	}

	return &model.SensorSnapshot{
		Humidity:    latest.Humidity,
		WaterLevel:  latest.WaterLevel,
		Temperature: latest.Temperature,
		Timestamp:   latest.RecordedAt,
	}, nil
}

// ListReadings はデバイスの指定時刻以降の計測値を返す。
// 他ユーザーのデバイスはDEVICE_NOT_FOUNDエラーを返し、存在を漏らさない。
func (s *Service) ListReadings(ctx context.Context, userID, deviceID string, since time.Time) ([]*model.SensorReading, error) {
	device, err := s.devices.FindByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find device: %w", err)
	}
	if device == nil || device.UserID != userID {
		return nil, model.NewDeviceNotFoundError(deviceID)
	}

	readings, err := s.readings.ListByDeviceSince(ctx, deviceID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	return readings, nil
}

// RecordSample はデバイスの模擬計測値を1件生成し記録する。
// サンプリングワーカーから呼ばれる。
func (s *Service) RecordSample(ctx context.Context, deviceID string) (*model.SensorReading, error) {
	reading := SimulatedReading(deviceID, time.Now())
	if err := s.readings.Create(ctx, reading); err != nil {
		return nil, fmt.Errorf("failed to record reading: %w", err)
	}
	return reading, nil
}

// UserSnapshotSource は特定ユーザーに束縛されたスナップショット供給源。
// コマンドインタプリタのコラボレータとしてリクエスト単位で生成される。
type UserSnapshotSource struct {
	svc    *Service
	userID string
}

// ForUser はユーザーに束縛されたUserSnapshotSourceを返す。
func (s *Service) ForUser(userID string) *UserSnapshotSource {
	return &UserSnapshotSource{svc: s, userID: userID}
}

// Snapshot は束縛されたユーザーの現在のスナップショットを返す。
func (u *UserSnapshotSource) Snapshot(ctx context.Context) (*model.SensorSnapshot, error) {
	return u.svc.SnapshotForUser(ctx, u.userID)
}
