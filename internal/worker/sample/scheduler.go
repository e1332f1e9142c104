// Package sample はセンサー計測値のバックグラウンドサンプリング処理を提供する。
package sample

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/clemmont/internal/model"
	"github.com/hitoshi/clemmont/internal/repository"
)

// SamplerService は計測値サンプリングの実行インターフェース。
type SamplerService interface {
	// RecordSample は指定デバイスの計測値を1件生成し記録する。
	RecordSample(ctx context.Context, deviceID string) (*model.SensorReading, error)
}

// ReadingCounter は記録件数のメトリクス通知インターフェース。
type ReadingCounter interface {
	IncReadingsInserted()
}

// Scheduler は計測値サンプリングのスケジューリングと並列制御を行う。
// 一定間隔のティッカーで全デバイスを取得し、
// semaphoreパターンで最大並列数を制御しながらサンプリングを実行する。
type Scheduler struct {
	deviceRepo     repository.DeviceRepository
	sampler        SamplerService
	counter        ReadingCounter
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
// counterはnil許容。
func NewScheduler(
	deviceRepo repository.DeviceRepository,
	sampler SamplerService,
	counter ReadingCounter,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		deviceRepo:     deviceRepo,
		sampler:        sampler,
		counter:        counter,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("サンプリングスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("サンプリングサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("サンプリングスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("サンプリングサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全デバイスを1回取得し、並列でサンプリングを実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	devices, err := s.deviceRepo.ListAll(ctx)
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		s.logger.Info("サンプリング対象のデバイスはありません")
		return nil
	}

	s.logger.Info("サンプリングサイクルを開始します",
		slog.Int("device_count", len(devices)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, device := range devices {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(d *model.Device) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if _, err := s.sampler.RecordSample(ctx, d.ID); err != nil {
				s.logger.Error("計測値の記録に失敗しました",
					slog.String("device_id", d.ID),
					slog.String("error", err.Error()),
				)
				return
			}
			if s.counter != nil {
				s.counter.IncReadingsInserted()
			}
		}(device)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("サンプリングサイクルが完了しました",
		slog.Int("device_count", len(devices)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
