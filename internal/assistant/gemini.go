package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/hitoshi/clemmont/internal/model"
)

// geminiTimeout はGemini API呼び出しのタイムアウト。
const geminiTimeout = 10 * time.Second

// classifyPrompt は分類用のプロンプトテンプレート。
// 出力を閉じた列挙のJSONに制約する。
const classifyPrompt = `You are an intent classifier for a plant irrigation assistant.
Classify the user message into exactly one of these intents:
- "water_plants": the user wants to water their plants. If the message contains a duration in minutes, include it.
- "check_status": the user asks about the current state of their plants or sensors.
- "unknown": anything else.

Respond with JSON only, in this exact shape:
{"intent": "<water_plants|check_status|unknown>", "duration": <minutes as integer, or 0 if absent>}

User message: %q`

// summaryPromptEN / summaryPromptES は要約用のプロンプトテンプレート。
const summaryPromptEN = `Summarize these garden sensor readings in one short English sentence for a plant owner. Mention humidity, water level and temperature. Respond with the sentence only.
Humidity: %.1f%%, Water level: %.1f liters, Temperature: %.1f°C`

const summaryPromptES = `Resume estas lecturas de sensores de jardín en una sola frase corta en español para el dueño de las plantas. Menciona humedad, nivel de agua y temperatura. Responde solo con la frase.
Humedad: %.1f%%, Nivel de agua: %.1f litros, Temperatura: %.1f°C`

// NewGeminiClient はGemini APIクライアントを生成する。
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

// GeminiClassifier はGemini APIによるインテント分類器。
// 応答はJSONに制約し、閉じた列挙に対して検証する。
// エラーや不正なペイロードは呼び出し元でIntentUnknownとして扱われる（fail closed）。
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

// NewGeminiClassifier はGeminiClassifierを生成する。
func NewGeminiClassifier(client *genai.Client, modelName string) *GeminiClassifier {
	return &GeminiClassifier{client: client, model: modelName}
}

// classifyPayload は分類サービスのJSON応答。
type classifyPayload struct {
	Intent   string `json:"intent"`
	Duration int    `json:"duration"`
}

// Classify は発話をGemini APIで分類する。
func (c *GeminiClassifier) Classify(ctx context.Context, userInput string) (IntentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(fmt.Sprintf(classifyPrompt, userInput), genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return IntentResult{}, fmt.Errorf("gemini classify failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return IntentResult{}, fmt.Errorf("empty classification response")
	}

	var payload classifyPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return IntentResult{}, fmt.Errorf("malformed classification response: %w", err)
	}

	// 外部サービスの出力は信用せず、閉じた列挙に対して検証する
	return sanitizeResult(IntentResult{
		Intent:          Intent(payload.Intent),
		DurationMinutes: payload.Duration,
	}), nil
}

// GeminiSummarizer はGemini APIによるSummarizer実装。
type GeminiSummarizer struct {
	client *genai.Client
	model  string
}

// NewGeminiSummarizer はGeminiSummarizerを生成する。
func NewGeminiSummarizer(client *genai.Client, modelName string) *GeminiSummarizer {
	return &GeminiSummarizer{client: client, model: modelName}
}

// Summarize はスナップショットをGemini APIで1文に要約する。
func (s *GeminiSummarizer) Summarize(ctx context.Context, snapshot *model.SensorSnapshot, lang Language) (string, error) {
	if snapshot == nil {
		return "", fmt.Errorf("nil snapshot")
	}

	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	var prompt string
	switch lang {
	case LanguageSpanish:
		prompt = fmt.Sprintf(summaryPromptES, snapshot.Humidity, snapshot.WaterLevel, snapshot.Temperature)
	default:
		prompt = fmt.Sprintf(summaryPromptEN, snapshot.Humidity, snapshot.WaterLevel, snapshot.Temperature)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini summarize failed: %w", err)
	}

	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return "", fmt.Errorf("empty summary response")
	}
	return summary, nil
}

// compile-time interface checks
var _ IntentClassifier = (*GeminiClassifier)(nil)
var _ Summarizer = (*GeminiSummarizer)(nil)
