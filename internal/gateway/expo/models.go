package expo

// Message is one push message addressed to a single device token.
// It mirrors the gateway's dispatch payload and is never persisted.
type Message struct {
	To         string         `json:"to"`
	Title      string         `json:"title,omitempty"`
	Body       string         `json:"body,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Sound      string         `json:"sound,omitempty"`
	Badge      *int           `json:"badge,omitempty"`
	ChannelID  string         `json:"channelId,omitempty"`
	Priority   string         `json:"priority,omitempty"`
	TTL        int            `json:"ttl,omitempty"`
	Expiration int64          `json:"expiration,omitempty"`
}

// Message priorities understood by the gateway.
const (
	PriorityDefault = "default"
	PriorityNormal  = "normal"
	PriorityHigh    = "high"
)

// Ticket statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Gateway error codes carried in ticket/receipt details.
const (
	ErrorDeviceNotRegistered = "DeviceNotRegistered"
	ErrorMessageRateExceeded = "MessageRateExceeded"
)

// Ticket is the gateway's synchronous acknowledgment for one submitted
// message. The response decodes into the two variants the gateway emits:
// a success ticket carries an id, an error ticket carries a message and
// a machine-readable details.error code. Classification switches on
// Status once instead of probing fields at every use site.
type Ticket struct {
	Status  string        `json:"status"`
	ID      string        `json:"id,omitempty"`
	Message string        `json:"message,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// Receipt is the gateway's later, asynchronous report of what actually
// happened to a ticket. Same variant shape as Ticket.
type Receipt struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails carries the machine-readable error code of an error
// ticket or receipt.
type ErrorDetails struct {
	Error string `json:"error,omitempty"`
}

// ErrorReason returns the most specific failure reason the gateway gave:
// the details code, else the human message, else a fixed fallback.
func errorReason(details *ErrorDetails, message string) string {
	if details != nil && details.Error != "" {
		return details.Error
	}
	if message != "" {
		return message
	}
	return "Unknown error"
}

// Reason returns the ticket's failure reason.
func (t Ticket) Reason() string {
	return errorReason(t.Details, t.Message)
}

// Reason returns the receipt's failure reason.
func (r Receipt) Reason() string {
	return errorReason(r.Details, r.Message)
}

// ErrorCode returns the machine-readable details code, if any.
func (t Ticket) ErrorCode() string {
	if t.Details == nil {
		return ""
	}
	return t.Details.Error
}

// ErrorCode returns the machine-readable details code, if any.
func (r Receipt) ErrorCode() string {
	if r.Details == nil {
		return ""
	}
	return r.Details.Error
}
