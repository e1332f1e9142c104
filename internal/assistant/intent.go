package assistant

import "context"

// Intent はユーザー発話の分類結果を表す閉じた列挙。
type Intent string

const (
	// IntentWaterPlants は水やりコマンド。
	IntentWaterPlants Intent = "water_plants"
	// IntentCheckStatus はステータス確認コマンド。
	IntentCheckStatus Intent = "check_status"
	// IntentGreeting は挨拶。ルールベース分類器のみが返す。
	IntentGreeting Intent = "greeting"
	// IntentUnknown は未認識の発話。エラーではなく正常な分類結果。
	IntentUnknown Intent = "unknown"
)

// IntentResult はインテント分類の結果。
// DurationMinutesは水やりコマンドの任意パラメータで、
// 正の値の場合のみ有効として扱う。
type IntentResult struct {
	Intent          Intent
	DurationMinutes int
}

// IntentClassifier は発話をインテントに分類するインターフェース。
type IntentClassifier interface {
	// Classify は発話を分類する。
	// エラー時は呼び出し元がIntentUnknownへフォールバックする（fail closed）。
	Classify(ctx context.Context, userInput string) (IntentResult, error)
}

// validCommandIntents は外部分類サービスの出力として受理するインテント。
// これ以外の値を返すペイロードは信用せずIntentUnknownへ落とす。
var validCommandIntents = map[Intent]bool{
	IntentWaterPlants: true,
	IntentCheckStatus: true,
}

// sanitizeResult は分類結果を検証し、不正な値を正規化する。
// インテントが閉じた列挙外ならIntentUnknown、
// durationが正でなければ0として扱う。
func sanitizeResult(r IntentResult) IntentResult {
	if !validCommandIntents[r.Intent] {
		return IntentResult{Intent: IntentUnknown}
	}
	if r.DurationMinutes < 0 {
		r.DurationMinutes = 0
	}
	if r.Intent != IntentWaterPlants {
		r.DurationMinutes = 0
	}
	return r
}
