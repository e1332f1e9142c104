package assistant

import (
	"context"
	"fmt"

	"github.com/hitoshi/clemmont/internal/model"
)

// Summarizer はセンサースナップショットを1文に要約するインターフェース。
type Summarizer interface {
	// Summarize はスナップショットを指定言語の簡潔な1文に要約する。
	Summarize(ctx context.Context, snapshot *model.SensorSnapshot, lang Language) (string, error)
}

// SnapshotSource は現在のセンサースナップショットを提供するインターフェース。
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*model.SensorSnapshot, error)
}

// TemplateSummarizer はテンプレートによる決定的なSummarizer実装。
// 外部サービスを必要とせず、失敗しない。
type TemplateSummarizer struct{}

// NewTemplateSummarizer はTemplateSummarizerを生成する。
func NewTemplateSummarizer() *TemplateSummarizer {
	return &TemplateSummarizer{}
}

// Summarize はスナップショットの各値をテンプレート文に埋め込む。
func (s *TemplateSummarizer) Summarize(_ context.Context, snapshot *model.SensorSnapshot, lang Language) (string, error) {
	if snapshot == nil {
		return "", fmt.Errorf("nil snapshot")
	}

	switch lang {
	case LanguageSpanish:
		return fmt.Sprintf(
			"La humedad está al %.0f%%, el tanque de agua tiene %.0f litros y la temperatura es de %.1f°C.",
			snapshot.Humidity, snapshot.WaterLevel, snapshot.Temperature,
		), nil
	default:
		return fmt.Sprintf(
			"Humidity is at %.0f%%, the water tank holds %.0f liters, and the temperature is %.1f°C.",
			snapshot.Humidity, snapshot.WaterLevel, snapshot.Temperature,
		), nil
	}
}

// compile-time interface check
var _ Summarizer = (*TemplateSummarizer)(nil)
