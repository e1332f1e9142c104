// Package assistant はユーザー発話のインテント分類と応答文の生成を提供する。
package assistant

import (
	"fmt"

	"github.com/hitoshi/clemmont/internal/model"
)

// Language は応答言語を表す。
type Language string

const (
	// LanguageEnglish は英語。
	LanguageEnglish Language = "en"
	// LanguageSpanish はスペイン語。
	LanguageSpanish Language = "es"
)

// ParseLanguage は言語コードを検証しLanguageに変換する。
// 未対応の言語コードの場合はINVALID_LANGUAGEエラーを返す。
func ParseLanguage(code string) (Language, error) {
	switch code {
	case "en", "":
		return LanguageEnglish, nil
	case "es":
		return LanguageSpanish, nil
	default:
		return "", model.NewInvalidLanguageError(code)
	}
}

// translations は1言語分の応答文テンプレート。
type translations struct {
	greeting          string
	waterWithDuration string // %d に分数が埋め込まれる
	waterNoDuration   string
	statusPrefix      string
	unknown           string
	errorReply        string
}

// replies は言語別の応答文テンプレート。
var replies = map[Language]translations{
	LanguageEnglish: {
		greeting:          "Hello! How can I help you today?",
		waterWithDuration: "Okay, watering the plants for %d minutes.",
		waterNoDuration:   "Okay, watering the plants now.",
		statusPrefix:      "Here is the current status: ",
		unknown:           `I didn't understand that. You can say "water the plants for 10 minutes" or "check status".`,
		errorReply:        "Sorry, something went wrong. Please try again later.",
	},
	LanguageSpanish: {
		greeting:          "¡Hola! ¿En qué puedo ayudarte hoy?",
		waterWithDuration: "De acuerdo, regando las plantas durante %d minutos.",
		waterNoDuration:   "De acuerdo, regando las plantas ahora.",
		statusPrefix:      "Este es el estado actual: ",
		unknown:           `No entendí eso. Puedes decir "riega las plantas durante 10 minutos" o "consultar estado".`,
		errorReply:        "Lo siento, algo salió mal. Inténtalo de nuevo más tarde.",
	},
}

// repliesFor は指定言語の応答文テンプレートを返す。
// 未知の言語には英語を返す（ParseLanguageを通過した値では発生しない）。
func repliesFor(lang Language) translations {
	if t, ok := replies[lang]; ok {
		return t
	}
	return replies[LanguageEnglish]
}

// GreetingReply は挨拶の応答文を返す。
func GreetingReply(lang Language) string {
	return repliesFor(lang).greeting
}

// WaterReply は水やりの応答文を返す。
// durationMinutesが正の場合、その数値を埋め込んだテンプレートを使用する。
func WaterReply(lang Language, durationMinutes int) string {
	t := repliesFor(lang)
	if durationMinutes > 0 {
		return fmt.Sprintf(t.waterWithDuration, durationMinutes)
	}
	return t.waterNoDuration
}

// StatusReply はステータス確認の応答文を返す。
// 固定のローカライズ済みプレフィックスにサマリをそのまま連結する。
func StatusReply(lang Language, summary string) string {
	return repliesFor(lang).statusPrefix + summary
}

// UnknownReply は未認識コマンドの応答文を返す。
// 対応している2つのコマンド例を含む。
func UnknownReply(lang Language) string {
	return repliesFor(lang).unknown
}

// ErrorReply はコラボレータ障害時の汎用応答文を返す。
func ErrorReply(lang Language) string {
	return repliesFor(lang).errorReply
}
