package handler

import (
	"context"

	"github.com/hitoshi/clemmont/internal/assistant"
	"github.com/hitoshi/clemmont/internal/sensor"
)

// InterpreterAdapter はassistantパッケージのコラボレータを束ね、
// CommandInterpreterInterfaceに適合させるアダプタ。
// スナップショット供給源はリクエストごとにユーザーへ束縛される。
type InterpreterAdapter struct {
	classifier assistant.IntentClassifier
	summarizer assistant.Summarizer
	sensors    *sensor.Service
}

// NewInterpreterAdapter はInterpreterAdapterを生成する。
func NewInterpreterAdapter(classifier assistant.IntentClassifier, summarizer assistant.Summarizer, sensors *sensor.Service) *InterpreterAdapter {
	return &InterpreterAdapter{
		classifier: classifier,
		summarizer: summarizer,
		sensors:    sensors,
	}
}

// HandleCommand はユーザーに束縛されたインタプリタで発話を解釈する。
func (a *InterpreterAdapter) HandleCommand(ctx context.Context, userID, userInput string, lang assistant.Language) (string, assistant.Intent) {
	interp := assistant.NewInterpreter(a.classifier, a.summarizer, a.sensors.ForUser(userID))
	return interp.HandleCommand(ctx, userInput, lang)
}

// --- compile-time interface checks ---

var _ CommandInterpreterInterface = (*InterpreterAdapter)(nil)
