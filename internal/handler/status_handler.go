package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/clemmont/internal/middleware"
	"github.com/hitoshi/clemmont/internal/model"
)

// SensorServiceInterface はステータスハンドラーが必要とするサービスインターフェース。
type SensorServiceInterface interface {
	SnapshotForUser(ctx context.Context, userID string) (*model.SensorSnapshot, error)
	ListReadings(ctx context.Context, userID, deviceID string, since time.Time) ([]*model.SensorReading, error)
}

// StatusHandler はセンサーステータスのHTTPハンドラー。
type StatusHandler struct {
	service SensorServiceInterface
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(service SensorServiceInterface) *StatusHandler {
	return &StatusHandler{
		service: service,
	}
}

// readingResponse はセンサー計測値のAPIレスポンス。
type readingResponse struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"deviceId"`
	Humidity    float64   `json:"humidity"`
	WaterLevel  float64   `json:"waterLevel"`
	Temperature float64   `json:"temperature"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// GetStatus は現在のセンサースナップショットを返す。
// GET /api/status
// デバイス未登録でも模擬値のスナップショットが返る。
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	snapshot, err := h.service.SnapshotForUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// ListReadings はデバイスの計測値履歴を返す。
// GET /api/devices/{id}/readings?since=RFC3339
// sinceを省略した場合は直近24時間分を返す。
func (h *StatusHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	deviceID := chi.URLParam(r, "id")

	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "Invalid since parameter.",
				Category: "validation",
				Action:   "Use an RFC 3339 timestamp, e.g. 2026-01-02T15:04:05Z.",
			})
			return
		}
		since = parsed
	}

	readings, err := h.service.ListReadings(r.Context(), userID, deviceID, since)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]readingResponse, len(readings))
	for i, reading := range readings {
		results[i] = readingResponse{
			ID:          reading.ID,
			DeviceID:    reading.DeviceID,
			Humidity:    reading.Humidity,
			WaterLevel:  reading.WaterLevel,
			Temperature: reading.Temperature,
			RecordedAt:  reading.RecordedAt,
		}
	}
	writeJSON(w, http.StatusOK, results)
}
