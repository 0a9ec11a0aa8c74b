package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ramonclaudio/dreamseeker-sub000/internal/api/models"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/api/response"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/dispatch"
)

// PushHandler handles notification send endpoints.
type PushHandler struct {
	dispatcher *dispatch.Dispatcher
}

// NewPushHandler creates a new PushHandler.
func NewPushHandler(dispatcher *dispatch.Dispatcher) *PushHandler {
	return &PushHandler{dispatcher: dispatcher}
}

// SendNotification handles POST /v1/me/notifications - send a push
// notification to every device the caller has registered.
func (h *PushHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	var input models.NotificationSendRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	result, err := h.dispatcher.Send(r.Context(), dispatch.Notification{
		UserID:     userID,
		Title:      input.Title,
		Body:       input.Body,
		Data:       input.Data,
		Sound:      input.Sound,
		Badge:      input.Badge,
		ChannelID:  input.ChannelID,
		Priority:   input.Priority,
		TTL:        input.TTL,
		Expiration: input.Expiration,
	})
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrInvalidNotification):
			response.BadRequest(w, r, err.Error(), nil)
		case errors.Is(err, dispatch.ErrRateLimited):
			response.TooManyRequests(w, r, "notification send limit reached, try again later")
		case errors.Is(err, dispatch.ErrGatewayNotConfigured):
			response.ServiceUnavailable(w, r, "push delivery is not configured")
		default:
			response.InternalError(w, r, "failed to send notification")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.NotificationSendResponse{
		Success: result.Success,
		Sent:    result.Sent,
		Failed:  result.Failed,
		Errors:  result.Errors,
	})
}
