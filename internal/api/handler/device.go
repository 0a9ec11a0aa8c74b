package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ramonclaudio/dreamseeker-sub000/internal/api/models"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/api/response"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/token"
)

// DeviceHandler handles device push token endpoints.
type DeviceHandler struct {
	tokens *token.Service
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(tokens *token.Service) *DeviceHandler {
	return &DeviceHandler{tokens: tokens}
}

// ListDevices handles GET /v1/me/devices - list registered devices.
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	tokens, err := h.tokens.TokensFor(r.Context(), userID)
	if err != nil {
		response.InternalError(w, r, "failed to list devices")
		return
	}

	items := make([]models.Device, 0, len(tokens))
	for _, t := range tokens {
		items = append(items, deviceFromToken(t))
	}

	devices := models.PagedDevices{
		Items: items,
		Meta:  models.PagedResponseMeta{Limit: token.MaxTokensPerUser},
	}
	response.JSON(w, r, http.StatusOK, devices)
}

// RegisterDevice handles POST /v1/me/devices - register or refresh a
// device push token.
func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	var input models.DeviceRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	registered, err := h.tokens.Register(r.Context(), userID, input.Token, token.Platform(input.Platform), input.DeviceID)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		response.InternalError(w, r, "failed to register device")
		return
	}

	location := fmt.Sprintf("/v1/me/devices/%s", registered.ID)
	response.Created(w, r, location, deviceFromToken(registered))
}

// UnregisterDevice handles DELETE /v1/me/devices - unregister one device
// push token, or all of them when no token is given.
func (h *DeviceHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	var input models.DeviceUnregisterRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			response.BadRequest(w, r, "invalid JSON body", nil)
			return
		}
	}

	if err := h.tokens.Unregister(r.Context(), userID, input.Token); err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			response.NotFound(w, r, "device token not found")
			return
		}
		response.InternalError(w, r, "failed to unregister device")
		return
	}

	response.NoContent(w, r)
}

// deviceFromToken maps a stored token to its API representation. Only
// the last 4 characters of the token value are ever echoed back.
func deviceFromToken(t *token.Token) models.Device {
	var tokenLast4 *string
	if len(t.Value) >= 4 {
		last4 := t.Value[len(t.Value)-4:]
		tokenLast4 = &last4
	}

	return models.Device{
		ID:         t.ID,
		Platform:   string(t.Platform),
		TokenLast4: tokenLast4,
		DeviceID:   t.DeviceID,
		CreatedAt:  models.Timestamp(t.CreatedAt),
		LastUsedAt: models.Timestamp(t.LastUsed),
	}
}
