package assistant

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// waterKeywords は水やりコマンドを示すキーワード（英/西）。
var waterKeywords = []string{
	"water", "irrigate", "riega", "regar", "riego",
}

// statusKeywords はステータス確認コマンドを示すキーワード（英/西）。
var statusKeywords = []string{
	"status", "estado",
}

// greetingKeywords は挨拶を示すキーワード（英/西）。
var greetingKeywords = []string{
	"hello", "hi", "hey", "hola", "buenos días", "buenas",
}

// durationPattern は「数値 + 分単位語」のパラメータを抽出する。
var durationPattern = regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?|minutos?)\b`)

// RuleClassifier はキーワード共起によるルールベースのインテント分類器。
// 外部サービスを呼ばないため決定的で、エラーを返さない。
type RuleClassifier struct{}

// NewRuleClassifier はRuleClassifierを生成する。
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify は発話を小文字化・トリムし、キーワード照合で分類する。
// キーワードは単語単位で照合する。部分文字列では照合しない
// （"think"の"hi"や"they"の"hey"を挨拶と誤認しないため）。
// 優先順位: 水やり > ステータス確認 > 挨拶 > 未認識。
func (c *RuleClassifier) Classify(_ context.Context, userInput string) (IntentResult, error) {
	input := strings.ToLower(strings.TrimSpace(userInput))
	if input == "" {
		return IntentResult{Intent: IntentUnknown}, nil
	}
	words := normalizeWords(input)

	if containsKeyword(words, waterKeywords) {
		return IntentResult{
			Intent:          IntentWaterPlants,
			DurationMinutes: extractDuration(input),
		}, nil
	}

	if containsKeyword(words, statusKeywords) {
		return IntentResult{Intent: IntentCheckStatus}, nil
	}

	if containsKeyword(words, greetingKeywords) {
		return IntentResult{Intent: IntentGreeting}, nil
	}

	return IntentResult{Intent: IntentUnknown}, nil
}

// normalizeWords は入力を単語列に分解し、前後にパディングを付けて再結合する。
// 句読点や記号は区切りとして扱う。
func normalizeWords(input string) string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return " " + strings.Join(fields, " ") + " "
}

// containsKeyword は単語列がキーワードのいずれかを単語単位で含むかを判定する。
// 複数語キーワード（"buenos días"等）は連続する単語列として照合する。
func containsKeyword(words string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(words, " "+kw+" ") {
			return true
		}
	}
	return false
}

// extractDuration は入力から分単位の数値パラメータを抽出する。
// 見つからない場合や正の数でない場合は0を返す。
func extractDuration(input string) int {
	m := durationPattern.FindStringSubmatch(input)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// compile-time interface check
var _ IntentClassifier = (*RuleClassifier)(nil)
