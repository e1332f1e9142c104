package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/clemmont/internal/model"
)

// PostgresDeviceRepo はPostgreSQLを使用したデバイスリポジトリ。
type PostgresDeviceRepo struct {
	db *sql.DB
}

// NewPostgresDeviceRepo はPostgresDeviceRepoを生成する。
func NewPostgresDeviceRepo(db *sql.DB) *PostgresDeviceRepo {
	return &PostgresDeviceRepo{db: db}
}

// FindByID は指定IDのデバイスを取得する。見つからない場合はnilを返す。
func (r *PostgresDeviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	device := &model.Device{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM devices WHERE id = $1`,
		id,
	).Scan(&device.ID, &device.UserID, &device.Name, &device.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find device: %w", err)
	}

	return device, nil
}

// ListByUserID はユーザーのデバイス一覧をリンク日時の昇順で返す。
func (r *PostgresDeviceRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at
		 FROM devices
		 WHERE user_id = $1
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// CountByUserID はユーザーのリンク済みデバイス数を返す。
func (r *PostgresDeviceRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM devices WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}

// ListAll は全デバイスを返す。サンプリングワーカーで使用する。
func (r *PostgresDeviceRepo) ListAll(ctx context.Context) ([]*model.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at FROM devices ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list all devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// Create はデバイスを作成する。
func (r *PostgresDeviceRepo) Create(ctx context.Context, device *model.Device) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (id, user_id, name, created_at)
		 VALUES ($1, $2, $3, $4)`,
		device.ID, device.UserID, device.Name, device.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}
	return nil
}

// Delete は指定IDのデバイスを削除する。
func (r *PostgresDeviceRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM devices WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("device not found: %s", id)
	}
	return nil
}

// scanDevices は複数行分のデバイスをスキャンする。
func scanDevices(rows *sql.Rows) ([]*model.Device, error) {
	var devices []*model.Device
	for rows.Next() {
		device := &model.Device{}
		if err := rows.Scan(&device.ID, &device.UserID, &device.Name, &device.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}
	return devices, nil
}

// compile-time interface check
var _ DeviceRepository = (*PostgresDeviceRepo)(nil)
