package app

import (
	"encoding/json"

	"github.com/Yath-MCA/ayaz-home-security/internal/rooms"
)

// Envelope is the wire frame for every realtime event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client to server events.
const (
	eventJoinRoom    = "join-room"
	eventSignal      = "signal"
	eventChatMessage = "chat-message"
	eventChatText    = "chat-text"
	eventChatImage   = "chat-image"
)

// Server to client events. eventSignal and eventChatMessage are reused for
// the relayed form.
const (
	eventRoomJoined   = "room-joined"
	eventUserJoined   = "user-joined"
	eventUserLeft     = "user-left"
	eventChatMsg      = "chat-msg"
	eventServerSleep  = "server-sleep"
	eventServerActive = "server-active"
	eventPiStream     = "pi-stream"
	eventError        = "error"
)

const signalTypeStatusUpdate = "status-update"

type joinRequest struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type signalRequest struct {
	To        string          `json:"to,omitempty"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Broadcast bool            `json:"broadcast,omitempty"`
}

// statusUpdate is the one signal payload the relay peeks into, so the
// membership snapshots stay honest about mic/camera state.
type statusUpdate struct {
	IsMicOn *bool `json:"isMicOn"`
	IsCamOn *bool `json:"isCamOn"`
}

type chatTextRequest struct {
	Text string `json:"text"`
}

type chatImageRequest struct {
	Image   string `json:"image"`
	Caption string `json:"caption"`
}

type roomJoined struct {
	RoomID          string               `json:"roomId"`
	PeerID          string               `json:"peerId"`
	Participants    []*rooms.Participant `json:"participants"`
	DeviceStreamURL *string              `json:"deviceStreamUrl"`
}

// presence is the payload of user-joined and user-left broadcasts. The
// participant list is the full current membership.
type presence struct {
	PeerID       string               `json:"peerId"`
	DisplayName  string               `json:"displayName,omitempty"`
	Participants []*rooms.Participant `json:"participants"`
}

type signalOut struct {
	From string          `json:"from"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type chatMessage struct {
	From        string `json:"from"`
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
}

type chatMsg struct {
	Type        string `json:"type"`
	From        string `json:"from"`
	DisplayName string `json:"displayName"`
	Text        string `json:"text,omitempty"`
	Image       string `json:"image,omitempty"`
	Caption     string `json:"caption,omitempty"`
	Timestamp   string `json:"timestamp"`
}

type activityNotice struct {
	Message string `json:"message,omitempty"`
	Active  bool   `json:"active"`
	Ts      string `json:"ts"`
}

type streamNotice struct {
	URL *string `json:"url"`
	Ts  string  `json:"ts"`
}

type errorPayload struct {
	Message string `json:"message"`
}
