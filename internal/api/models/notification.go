package models

// NotificationSendRequest is the request body for sending a push
// notification to all of the caller's devices.
type NotificationSendRequest struct {
	Title      string         `json:"title,omitempty" validate:"max=100"`
	Body       string         `json:"body,omitempty" validate:"max=500"`
	Data       map[string]any `json:"data,omitempty"`
	Sound      string         `json:"sound,omitempty"`
	Badge      *int           `json:"badge,omitempty"`
	ChannelID  string         `json:"channelId,omitempty"`
	Priority   string         `json:"priority,omitempty" validate:"omitempty,oneof=default normal high"`
	TTL        int            `json:"ttl,omitempty"`
	Expiration int64          `json:"expiration,omitempty"`
}

// NotificationSendResponse summarizes a dispatch across the caller's
// devices. Failed counts messages that did not reach the gateway
// cleanly, including ones deferred for a later retry.
type NotificationSendResponse struct {
	Success bool     `json:"success"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}
