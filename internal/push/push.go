package push

import (
	"context"

	"messaging-service/internal/models"
)

// Payload is what gets rendered on the device.
type Payload struct {
	Title    string                  `json:"title"`
	Body     string                  `json:"body"`
	Type     models.NotificationType `json:"type"`
	Priority models.Priority         `json:"priority"`
	Data     models.NotificationData `json:"data"`
	Badge    int                     `json:"badge"`
}

// Result summarizes one fan-out over a user's device tokens.
type Result struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

// Sender delivers push payloads through a platform gateway and manages
// device registrations there.
type Sender interface {
	SendToTokens(ctx context.Context, tokens []models.DeviceToken, payload Payload) Result
	RegisterToken(ctx context.Context, platform, token string) (string, error)
	Unregister(ctx context.Context, endpointARN string) error
}

// NoopSender is used when push delivery is disabled.
type NoopSender struct{}

func (NoopSender) SendToTokens(context.Context, []models.DeviceToken, Payload) Result {
	return Result{}
}

func (NoopSender) RegisterToken(context.Context, string, string) (string, error) {
	return "", nil
}

func (NoopSender) Unregister(context.Context, string) error {
	return nil
}
