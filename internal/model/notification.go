package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChannelSMS   = "sms"
	ChannelPush  = "push"
	ChannelEmail = "email"
)

// PushMessage is published for the push gateway to deliver to a device.
type PushMessage struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Token     string            `json:"token"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
