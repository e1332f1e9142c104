package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/clemmont/internal/middleware"
	"github.com/hitoshi/clemmont/internal/model"
)

// DeviceServiceInterface はデバイスハンドラーが必要とするサービスインターフェース。
type DeviceServiceInterface interface {
	LinkDevice(ctx context.Context, userID, deviceID, name string) (*model.Device, error)
	ListDevices(ctx context.Context, userID string) ([]*model.Device, error)
	UnlinkDevice(ctx context.Context, userID, deviceID string) error
}

// DeviceHandler はデバイス管理のHTTPハンドラー。
type DeviceHandler struct {
	service DeviceServiceInterface
}

// NewDeviceHandler はDeviceHandlerを生成する。
func NewDeviceHandler(service DeviceServiceInterface) *DeviceHandler {
	return &DeviceHandler{
		service: service,
	}
}

// deviceResponse はデバイス情報のAPIレスポンス。
type deviceResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// linkDeviceRequest はデバイスリンクリクエストのボディ。
// DeviceIDはデバイス本体に印字されたリンクコード。
type linkDeviceRequest struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
}

// toDeviceResponse はドメインのDeviceをレスポンス型に変換する。
func toDeviceResponse(d *model.Device) deviceResponse {
	return deviceResponse{
		ID:        d.ID,
		Name:      d.Name,
		CreatedAt: d.CreatedAt,
	}
}

// LinkDevice はデバイスをユーザーに紐付ける。
// POST /api/devices
func (h *DeviceHandler) LinkDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req linkDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldsError("deviceId"))
		return
	}
	if req.DeviceID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldsError("deviceId"))
		return
	}

	device, err := h.service.LinkDevice(r.Context(), userID, req.DeviceID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDeviceResponse(device))
}

// ListDevices はユーザーのデバイス一覧を取得する。
// GET /api/devices
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	devices, err := h.service.ListDevices(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]deviceResponse, len(devices))
	for i, d := range devices {
		results[i] = toDeviceResponse(d)
	}
	writeJSON(w, http.StatusOK, results)
}

// UnlinkDevice はデバイスの紐付けを解除する。
// DELETE /api/devices/{id}
func (h *DeviceHandler) UnlinkDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	deviceID := chi.URLParam(r, "id")

	if err := h.service.UnlinkDevice(r.Context(), userID, deviceID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
