package models

// Device represents a registered push notification device.
type Device struct {
	ID         string    `json:"id"`
	Platform   string    `json:"platform"`
	TokenLast4 *string   `json:"tokenLast4,omitempty"`
	DeviceID   *string   `json:"deviceId,omitempty"`
	CreatedAt  Timestamp `json:"createdAt"`
	LastUsedAt Timestamp `json:"lastUsedAt"`
}

// DeviceRegisterRequest is the request body for registering a device
// push token.
type DeviceRegisterRequest struct {
	Token    string  `json:"token" validate:"required"`
	Platform string  `json:"platform" validate:"required,oneof=ios android"`
	DeviceID *string `json:"deviceId,omitempty"`
}

// DeviceUnregisterRequest is the request body for unregistering device
// push tokens. An empty token removes every token the user holds.
type DeviceUnregisterRequest struct {
	Token string `json:"token,omitempty"`
}

// PagedDevices represents a paginated list of devices.
type PagedDevices struct {
	Items []Device          `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
