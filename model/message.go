package model

import "time"

// MessageDirection tells whether a message was sent or received.
type MessageDirection string

const (
	Outbound MessageDirection = "outbound"
	Inbound  MessageDirection = "inbound"
)

// MessageRecord is one message of a user thread.
type MessageRecord struct {
	ID        string           `json:"_id"`
	FromUser  *UserRef         `json:"fromUser,omitempty"`
	ToUserID  string           `json:"toUserId,omitempty"`
	ToPhone   string           `json:"toPhone"`
	Direction MessageDirection `json:"direction"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"createdAt,omitzero"`
}

// SendMessagePayload is the body of POST /messages/send.
type SendMessagePayload struct {
	ToUserID string `json:"toUserId" validate:"notblank"`
	Body     string `json:"body" validate:"notblank"`
}
