package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/clemmont/internal/assistant"
	"github.com/hitoshi/clemmont/internal/middleware"
	"github.com/hitoshi/clemmont/internal/model"
)

// CommandInterpreterInterface はチャットハンドラーが必要とするインタプリタのインターフェース。
// ユーザーIDはステータス要約のスナップショット取得先を決めるために受け取る。
type CommandInterpreterInterface interface {
	HandleCommand(ctx context.Context, userID, userInput string, lang assistant.Language) (string, assistant.Intent)
}

// ChatMetrics はチャットハンドラーが記録するメトリクスのインターフェース。
type ChatMetrics interface {
	RecordChatCommand(intent string)
	RecordIntentParseFailure()
	RecordAssistantLatency(duration time.Duration)
}

// ChatHandler はアシスタントチャットのHTTPハンドラー。
type ChatHandler struct {
	interpreter CommandInterpreterInterface
	metrics     ChatMetrics
}

// NewChatHandler はChatHandlerを生成する。metricsはnil許容。
func NewChatHandler(interpreter CommandInterpreterInterface, metrics ChatMetrics) *ChatHandler {
	return &ChatHandler{
		interpreter: interpreter,
		metrics:     metrics,
	}
}

// chatRequest はチャットコマンドリクエストのボディ。
type chatRequest struct {
	Message  string `json:"message"`
	Language string `json:"language"`
}

// chatResponse はチャットコマンドレスポンスのボディ。
type chatResponse struct {
	Reply string `json:"reply"`
}

// HandleChat はユーザー発話を解釈し応答文を返す。
// POST /api/chat
// 応答は常に200で、アシスタント内部の障害はローカライズ済みエラー文として返る。
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldsError("message"))
		return
	}

	lang, err := assistant.ParseLanguage(req.Language)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	start := time.Now()
	reply, intent := h.interpreter.HandleCommand(r.Context(), userID, req.Message, lang)

	if h.metrics != nil {
		h.metrics.RecordAssistantLatency(time.Since(start))
		h.metrics.RecordChatCommand(string(intent))
		if intent == assistant.IntentUnknown {
			h.metrics.RecordIntentParseFailure()
		}
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}
