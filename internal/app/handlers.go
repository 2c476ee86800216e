package app

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/ossrs/go-oryx-lib/logger"

	"github.com/Yath-MCA/ayaz-home-security/internal/rooms"
)

// Image payloads are data-URIs; the cap mirrors the UI's own 3 MB limit.
const maxImageBytes = 3 << 20

type eventHandler func(ctx context.Context, a *App, c *conn, data json.RawMessage) error

var handlers map[string]eventHandler

func init() {
	handlers = map[string]eventHandler{
		eventJoinRoom:    handleJoinRoom,
		eventSignal:      handleSignal,
		eventChatMessage: handleChatMessage,
		eventChatText:    handleChatText,
		eventChatImage:   handleChatImage,
	}
}

func handleJoinRoom(ctx context.Context, a *App, c *conn, data json.RawMessage) error {
	req := joinRequest{}
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.Wrapf(err, "unmarshal %s", data)
	}

	p, others, err := a.store.Join(c.id, req.RoomID, req.DisplayName, c.out)
	if err != nil {
		if rooms.IsValidation(err) {
			a.sendError(c, err.Error())
			return nil
		}
		return err
	}

	var streamURL *string
	if url, ok := a.stream.URL(); ok {
		streamURL = &url
	}

	a.sendEvent(c, eventRoomJoined, roomJoined{
		RoomID:          p.Room(),
		PeerID:          c.id,
		Participants:    others,
		DeviceStreamURL: streamURL,
	})

	msg, err := marshalEnvelope(eventUserJoined, presence{
		PeerID:       c.id,
		DisplayName:  p.DisplayName,
		Participants: a.store.Members(c.id),
	})
	if err != nil {
		return err
	}
	for _, peer := range others {
		deliver(peer.Out, msg)
	}

	logger.Tf(ctx, "join %v ok", p)
	return nil
}

func handleSignal(ctx context.Context, a *App, c *conn, data json.RawMessage) error {
	req := signalRequest{}
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.Wrapf(err, "unmarshal %s", data)
	}

	out := signalOut{From: c.id, Type: req.Type, Data: req.Data}

	if req.Broadcast {
		sender, ok := a.store.Get(c.id)
		if !ok {
			a.sendError(c, "no room")
			return nil
		}

		// The relay never interprets signal payloads, with one carve-out:
		// a peer's own status announcement also updates its membership
		// record so room snapshots stay honest.
		if req.Type == signalTypeStatusUpdate {
			st := statusUpdate{}
			if err := json.Unmarshal(req.Data, &st); err == nil {
				a.store.SetStatus(c.id, st.IsMicOn, st.IsCamOn)
			}
		}

		msg, err := marshalEnvelope(eventSignal, out)
		if err != nil {
			return err
		}
		for _, peer := range a.store.Roommates(c.id) {
			deliver(peer.Out, msg)
		}

		logger.Tf(ctx, "broadcast %v signal from %v", req.Type, sender)
		return nil
	}

	if req.To == "" {
		a.sendError(c, `Missing signal target "to"`)
		return nil
	}

	target, ok := a.store.Get(req.To)
	if !ok {
		// The target raced a disconnect; dropping is expected.
		logger.Tf(ctx, "drop %v signal to absent peer %v", req.Type, req.To)
		return nil
	}

	msg, err := marshalEnvelope(eventSignal, out)
	if err != nil {
		return err
	}
	deliver(target.Out, msg)
	return nil
}

// handleChatMessage is the video room's chat channel. The payload is either
// a bare JSON string or an object carrying text or message.
func handleChatMessage(_ context.Context, a *App, c *conn, data json.RawMessage) error {
	sender, ok := a.store.Get(c.id)
	if !ok {
		return nil
	}

	payload := chatMessage{
		From:        c.id,
		DisplayName: displayNameOf(sender),
		Message:     decodeLooseText(data),
		Timestamp:   isoNow(),
	}

	return a.fanoutRoom(c.id, eventChatMessage, payload)
}

func handleChatText(_ context.Context, a *App, c *conn, data json.RawMessage) error {
	req := chatTextRequest{}
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.Wrapf(err, "unmarshal %s", data)
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil
	}

	sender, ok := a.store.Get(c.id)
	if !ok {
		return nil
	}

	payload := chatMsg{
		Type:        "text",
		From:        c.id,
		DisplayName: displayNameOf(sender),
		Text:        text,
		Timestamp:   isoNow(),
	}

	return a.fanoutRoom(c.id, eventChatMsg, payload)
}

func handleChatImage(_ context.Context, a *App, c *conn, data json.RawMessage) error {
	req := chatImageRequest{}
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.Wrapf(err, "unmarshal chat-image")
	}

	if req.Image == "" {
		a.sendError(c, "Image required")
		return nil
	}
	if len(req.Image) > maxImageBytes {
		a.sendError(c, "Image must be under 3 MB")
		return nil
	}

	sender, ok := a.store.Get(c.id)
	if !ok {
		return nil
	}

	payload := chatMsg{
		Type:        "image",
		From:        c.id,
		DisplayName: displayNameOf(sender),
		Image:       req.Image,
		Caption:     strings.TrimSpace(req.Caption),
		Timestamp:   isoNow(),
	}

	return a.fanoutRoom(c.id, eventChatMsg, payload)
}

// fanoutRoom delivers a chat payload to every member of the sender's room,
// the sender included: the sender's own UI confirms delivery through the
// same channel instead of echoing locally.
func (a *App) fanoutRoom(peerID, event string, payload any) error {
	msg, err := marshalEnvelope(event, payload)
	if err != nil {
		return err
	}
	for _, peer := range a.store.Members(peerID) {
		deliver(peer.Out, msg)
	}
	return nil
}

func displayNameOf(p *rooms.Participant) string {
	if p.DisplayName == "" {
		return "Unknown"
	}
	return p.DisplayName
}

// decodeLooseText accepts the chat-message shapes browsers actually send: a
// bare string, {text} or {message}.
func decodeLooseText(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}

	var obj struct {
		Text    string `json:"text"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.Text != "" {
			return obj.Text
		}
		return obj.Message
	}

	return string(data)
}
