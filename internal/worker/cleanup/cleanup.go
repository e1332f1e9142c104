// Package cleanup は期限切れデータの定期削除処理を提供する。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/clemmont/internal/repository"
)

// Runner は古い計測値と期限切れセッションの削除を定期実行する。
type Runner struct {
	readings      repository.ReadingRepository
	sessions      repository.SessionRepository
	logger        *slog.Logger
	retentionDays int
}

// NewRunner はRunnerの新しいインスタンスを生成する。
// retentionDaysが0以下の場合はデフォルト値30を使用する。
func NewRunner(
	readings repository.ReadingRepository,
	sessions repository.SessionRepository,
	logger *slog.Logger,
	retentionDays int,
) *Runner {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Runner{
		readings:      readings,
		sessions:      sessions,
		logger:        logger,
		retentionDays: retentionDays,
	}
}

// Start は指定間隔のティッカーでクリーンアップを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("クリーンアップワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", r.retentionDays),
	)

	// 起動直後に1回実行
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error("クリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("クリーンアップワーカーを停止しました")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("クリーンアップの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は保持期間を過ぎた計測値と期限切れセッションを1回削除する。
func (r *Runner) RunOnce(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -r.retentionDays)

	deletedReadings, err := r.readings.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	deletedSessions, err := r.sessions.DeleteExpired(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("クリーンアップが完了しました",
		slog.Int64("deleted_readings", deletedReadings),
		slog.Int64("deleted_sessions", deletedSessions),
		slog.Time("reading_cutoff", cutoff),
	)

	return nil
}
