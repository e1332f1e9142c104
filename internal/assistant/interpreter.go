package assistant

import (
	"context"
	"log/slog"
	"strings"
)

// Interpreter は発話を解釈し応答文を生成するコマンドインタプリタ。
// 呼び出しごとに完結し、呼び出し間で状態を持たない。
type Interpreter struct {
	classifier IntentClassifier
	summarizer Summarizer
	snapshots  SnapshotSource
}

// NewInterpreter はInterpreterを生成する。
func NewInterpreter(classifier IntentClassifier, summarizer Summarizer, snapshots SnapshotSource) *Interpreter {
	return &Interpreter{
		classifier: classifier,
		summarizer: summarizer,
		snapshots:  snapshots,
	}
}

// HandleCommand は発話を解釈し、指定言語の応答文と分類結果のインテントを返す。
// 応答文は常に非空で、エラーを返すことはない。
// コラボレータの障害は固定のローカライズ済みエラー文に変換される。
//
// 分類の失敗はfail closedでIntentUnknown扱い、
// ステータス確認時のスナップショット取得/要約の失敗は汎用エラー文になる。
func (i *Interpreter) HandleCommand(ctx context.Context, userInput string, lang Language) (string, Intent) {
	// 空・空白のみの入力は分類を行わず未認識応答を返す
	if strings.TrimSpace(userInput) == "" {
		return UnknownReply(lang), IntentUnknown
	}

	result, err := i.classifier.Classify(ctx, userInput)
	if err != nil {
		slog.Warn("intent classification failed",
			slog.String("error", err.Error()),
		)
		result = IntentResult{Intent: IntentUnknown}
	}

	switch result.Intent {
	case IntentWaterPlants:
		return WaterReply(lang, result.DurationMinutes), IntentWaterPlants
	case IntentCheckStatus:
		return i.statusReply(ctx, lang), IntentCheckStatus
	case IntentGreeting:
		return GreetingReply(lang), IntentGreeting
	default:
		return UnknownReply(lang), IntentUnknown
	}
}

// statusReply はセンサースナップショットを取得・要約しステータス応答を組み立てる。
// いずれかのコラボレータが失敗した場合は部分的な文字列を返さず、
// 汎用エラー文へ落とす。
func (i *Interpreter) statusReply(ctx context.Context, lang Language) string {
	snapshot, err := i.snapshots.Snapshot(ctx)
	if err != nil {
		slog.Warn("sensor snapshot fetch failed",
			slog.String("error", err.Error()),
		)
		return ErrorReply(lang)
	}

	summary, err := i.summarizer.Summarize(ctx, snapshot, lang)
	if err != nil {
		slog.Warn("snapshot summarization failed",
			slog.String("error", err.Error()),
		)
		return ErrorReply(lang)
	}

	return StatusReply(lang, summary)
}
