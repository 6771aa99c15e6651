package payloads

import "time"

// RefreshRequestPayload: запрос на обновление каталога, передаваемый через RabbitMQ.
type RefreshRequestPayload struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}
