// Package device は散水デバイスのリンク管理のドメインロジックを提供する。
package device

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/clemmont/internal/model"
	"github.com/hitoshi/clemmont/internal/repository"
	"github.com/hitoshi/clemmont/internal/security"
)

// Service はデバイスの紐付け・解除・一覧のビジネスロジックを提供する。
type Service struct {
	devices   repository.DeviceRepository
	sanitizer security.TextSanitizerService
	limit     int // 1ユーザーあたりのリンク可能デバイス数の上限
}

// NewService はServiceを生成する。
func NewService(devices repository.DeviceRepository, sanitizer security.TextSanitizerService, limit int) *Service {
	return &Service{
		devices:   devices,
		sanitizer: sanitizer,
		limit:     limit,
	}
}

// LinkDevice はデバイス本体に印字されたIDでデバイスをユーザーに紐付ける。
// デバイスは同時に1アカウントにのみ紐付け可能で、
// 既にリンク済みの場合はDEVICE_ALREADY_LINKEDエラーを返す。
// ユーザーの上限超過時はDEVICE_LIMITエラーを返す。
func (s *Service) LinkDevice(ctx context.Context, userID, deviceID, name string) (*model.Device, error) {
	name = s.sanitizer.Sanitize(name)
	if name == "" {
		name = "Irrigation device"
	}

	existing, err := s.devices.FindByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find device: %w", err)
	}
	if existing != nil {
		return nil, model.NewDeviceAlreadyLinkedError(deviceID)
	}

	count, err := s.devices.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count devices: %w", err)
	}
	if count >= s.limit {
		return nil, model.NewDeviceLimitError(s.limit)
	}

	device := &model.Device{
		ID:        deviceID,
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}

	if err := s.devices.Create(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	slog.Info("device linked",
		slog.String("device_id", deviceID),
		slog.String("user_id", userID),
	)

	return device, nil
}

// ListDevices はユーザーのデバイス一覧をリンク日時の昇順で返す。
func (s *Service) ListDevices(ctx context.Context, userID string) ([]*model.Device, error) {
	devices, err := s.devices.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

// UnlinkDevice はデバイスの紐付けを解除する。
// 他ユーザーのデバイスはデバイスの存在自体を漏らさないため、
// 未存在と同じDEVICE_NOT_FOUNDエラーを返す。
func (s *Service) UnlinkDevice(ctx context.Context, userID, deviceID string) error {
	device, err := s.devices.FindByID(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("failed to find device: %w", err)
	}
	if device == nil || device.UserID != userID {
		return model.NewDeviceNotFoundError(deviceID)
	}

	if err := s.devices.Delete(ctx, deviceID); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	slog.Info("device unlinked",
		slog.String("device_id", deviceID),
		slog.String("user_id", userID),
	)

	return nil
}
