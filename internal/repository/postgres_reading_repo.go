package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/clemmont/internal/model"
)

// PostgresReadingRepo はPostgreSQLを使用したセンサー計測値リポジトリ。
type PostgresReadingRepo struct {
	db *sql.DB
}

// NewPostgresReadingRepo はPostgresReadingRepoを生成する。
func NewPostgresReadingRepo(db *sql.DB) *PostgresReadingRepo {
	return &PostgresReadingRepo{db: db}
}

// Create は計測値を1件記録する。
func (r *PostgresReadingRepo) Create(ctx context.Context, reading *model.SensorReading) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sensor_readings (id, device_id, humidity, water_level, temperature, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		reading.ID, reading.DeviceID, reading.Humidity, reading.WaterLevel, reading.Temperature, reading.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sensor reading: %w", err)
	}
	return nil
}

// LatestByDeviceID はデバイスの最新計測値を取得する。見つからない場合はnilを返す。
func (r *PostgresReadingRepo) LatestByDeviceID(ctx context.Context, deviceID string) (*model.SensorReading, error) {
	reading := &model.SensorReading{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, device_id, humidity, water_level, temperature, recorded_at
		 FROM sensor_readings
		 WHERE device_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT 1`,
		deviceID,
	).Scan(&reading.ID, &reading.DeviceID, &reading.Humidity, &reading.WaterLevel, &reading.Temperature, &reading.RecordedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest reading: %w", err)
	}

	return reading, nil
}

// ListByDeviceSince はデバイスの指定時刻以降の計測値をrecorded_at昇順で返す。
func (r *PostgresReadingRepo) ListByDeviceSince(ctx context.Context, deviceID string, since time.Time) ([]*model.SensorReading, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, humidity, water_level, temperature, recorded_at
		 FROM sensor_readings
		 WHERE device_id = $1 AND recorded_at >= $2
		 ORDER BY recorded_at ASC`,
		deviceID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	defer rows.Close()

	var readings []*model.SensorReading
	for rows.Next() {
		reading := &model.SensorReading{}
		if err := rows.Scan(&reading.ID, &reading.DeviceID, &reading.Humidity,
			&reading.WaterLevel, &reading.Temperature, &reading.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}

// DeleteOlderThan は指定時刻より古い計測値を削除し、削除件数を返す。
// 保持期間を超えた計測値のクリーンアップジョブで使用する。
func (r *PostgresReadingRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sensor_readings WHERE recorded_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old readings: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ ReadingRepository = (*PostgresReadingRepo)(nil)
