package protocol

import "time"

// CommandRequest is the body of POST /api/v1/command and of requests on
// SubjectUICommand.
type CommandRequest struct {
	Message string `json:"message"`
}

// CommandResponse reports the outcome of a command invocation.
// Error is empty on success.
type CommandResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	StartedAt time.Time `json:"started_at"`
	Transport string    `json:"transport"`

	CommandsReceived int64 `json:"commands_received"`
	CommandsRejected int64 `json:"commands_rejected"`
	CommandsRelayed  int64 `json:"commands_relayed"`
	CommandsSent     int64 `json:"commands_sent"`
	TransmitErrors   int64 `json:"transmit_errors"`

	Notifications        int64 `json:"notifications"`
	NotificationsPartial int64 `json:"notifications_partial"`
	NotificationFailures int64 `json:"notification_failures"`
}
