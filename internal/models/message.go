package models

import (
	"encoding/json"
	"time"
)

// MessageType represents the type of an upload message
type MessageType string

const (
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypeBatch    MessageType = "batch"
	MessageTypeAck      MessageType = "ack"
	MessageTypeError    MessageType = "error"
)

// Message is the envelope for all WebSocket communications
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadJSON,
		Timestamp: time.Now(),
	}, nil
}

// SnapshotMessage is the payload for MessageTypeSnapshot
type SnapshotMessage struct {
	StationID string    `json:"station_id"`
	Nickname  string    `json:"nickname,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Readings  Snapshot  `json:"readings"`
}

// NewSnapshotMessage wraps a snapshot for upload.
func NewSnapshotMessage(info *StationInfo, snap Snapshot) SnapshotMessage {
	msg := SnapshotMessage{Timestamp: snap.TakenAt(), Readings: snap}
	if info != nil {
		msg.StationID = info.ID
		msg.Nickname = info.Nickname
	}
	return msg
}

// BatchMessage is the payload for MessageTypeBatch
type BatchMessage struct {
	Snapshots []SnapshotMessage `json:"snapshots"`
	Count     int               `json:"count"`
}

// AckMessage is the payload for MessageTypeAck
type AckMessage struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// ErrorMessage is the payload for MessageTypeError
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnmarshalPayload unmarshals the message payload into the provided struct
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// QueuedSnapshot is a snapshot message waiting in an upload queue.
type QueuedSnapshot struct {
	ID      int64
	Message SnapshotMessage
}
