package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/ossrs/go-oryx-lib/logger"

	"github.com/Yath-MCA/ayaz-home-security/internal/activity"
	"github.com/Yath-MCA/ayaz-home-security/internal/auth"
	"github.com/Yath-MCA/ayaz-home-security/internal/device"
	"github.com/Yath-MCA/ayaz-home-security/internal/rooms"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client.
	pongWait = 60 * time.Second

	// Send pings to client with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size. Must admit a 3 MiB image data-URI plus
	// envelope overhead.
	maxMessageSize = 4 << 20

	// Outbound queue per connection. Delivery beyond this drops the frame
	// rather than wedge the sending handler.
	outQueueSize = 256

	sleepMessage = "Server is in Sleep Mode"
)

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// App is the signaling coordinator. It owns the room store, the activity
// gate, the device stream URL and the registry of live connections, and is
// the only writer of all four.
type App struct {
	logger Logger
	gate   *activity.Gate
	stream *device.Stream
	store  *rooms.Store

	adminToken  auth.Token
	deviceToken auth.Token

	mu    sync.RWMutex
	conns map[string]*conn
}

// conn is the server side of one realtime connection. out is drained by a
// single writer goroutine; closing done tells that writer to flush what is
// queued and hang up.
type conn struct {
	id   string
	out  chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func newConn() *conn {
	return &conn{
		id:   uuid.NewString(),
		out:  make(chan []byte, outQueueSize),
		done: make(chan struct{}),
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func New(log Logger, gate *activity.Gate, stream *device.Stream, adminToken, deviceToken string) *App {
	return &App{
		logger:      log,
		gate:        gate,
		stream:      stream,
		store:       rooms.NewStore(),
		adminToken:  auth.NewToken(adminToken),
		deviceToken: auth.NewToken(deviceToken),
		conns:       make(map[string]*conn),
	}
}

// Active reports whether new realtime connections are admitted.
func (a *App) Active() bool {
	return a.gate.Active()
}

// Status snapshots the activity state for the status endpoints.
func (a *App) Status() activity.State {
	return a.gate.State()
}

// Wake forces the service active. It does not re-admit already-rejected
// clients; they retry on their own.
func (a *App) Wake() activity.State {
	return a.gate.Wake()
}

// SetActive is the token-gated activity mutation. Going inactive notifies
// every connection and then disconnects it; the notice is enqueued first but
// delivery is best-effort, the disconnect itself is the authoritative signal.
func (a *App) SetActive(token string, active bool) (activity.State, error) {
	if err := a.adminToken.Verify(token); err != nil {
		return activity.State{}, err
	}

	st := a.gate.SetActive(active)
	a.broadcastAll(eventServerActive, activityNotice{Active: st.Active, Ts: isoNow()})
	if !st.Active {
		a.sleepAll()
	}

	return st, nil
}

// StreamURL is the unauthenticated device stream read.
func (a *App) StreamURL() (string, bool) {
	return a.stream.URL()
}

// SetStreamURL stores the trimmed device stream URL and announces it to every
// connection.
func (a *App) SetStreamURL(token, url string) (string, error) {
	if err := a.deviceToken.Verify(token); err != nil {
		return "", err
	}

	trimmed := a.stream.Set(url)
	var ptr *string
	if trimmed != "" {
		ptr = &trimmed
	}
	a.broadcastAll(eventPiStream, streamNotice{URL: ptr, Ts: isoNow()})

	return trimmed, nil
}

// Rooms snapshots the current rooms for discovery UIs.
func (a *App) Rooms() []rooms.RoomInfo {
	return a.store.List()
}

// ConnCount reports the number of live realtime connections.
func (a *App) ConnCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.conns)
}

// WS runs the whole lifetime of one realtime connection: admission, pumps,
// event dispatch and teardown. It returns when the connection is gone.
func (a *App) WS(ctx context.Context, ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(logger.WithContext(ctx))
	defer cancel()

	ws.SetReadLimit(maxMessageSize)

	c := newConn()
	a.register(c)
	defer a.teardown(ctx, c, ws)

	// Must register before re-checking the gate: a sleep landing after
	// the handshake gate then either flips this check or catches the
	// connection in sleepAll's snapshot.
	if !a.gate.Active() {
		a.rejectSleeping(ws)
		return
	}

	a.heartbeat(ctx, cancel, ws)

	inMessages := make(chan []byte)
	go a.readPump(ctx, cancel, ws, inMessages)
	go a.dispatch(ctx, cancel, c, inMessages)

	go func() {
		<-ctx.Done()
		c.close()
	}()

	a.writePump(c, ws)
}

func (a *App) register(c *conn) {
	a.mu.Lock()
	a.conns[c.id] = c
	a.mu.Unlock()
}

func (a *App) teardown(ctx context.Context, c *conn, ws *websocket.Conn) {
	var displayName string
	if p, ok := a.store.Get(c.id); ok {
		displayName = p.DisplayName
	}

	if roomID, remaining, ok := a.store.Leave(c.id); ok {
		msg, err := marshalEnvelope(eventUserLeft, presence{
			PeerID:       c.id,
			DisplayName:  displayName,
			Participants: remaining,
		})
		if err == nil {
			for _, p := range remaining {
				deliver(p.Out, msg)
			}
		}
		logger.Tf(ctx, "peer %v left room %v", c.id, roomID)
	}

	a.mu.Lock()
	delete(a.conns, c.id)
	a.mu.Unlock()

	c.close()
	if err := ws.Close(); err != nil {
		a.logger.Debug("close connection: " + err.Error())
	}
}

// rejectSleeping tells a client arriving while the gate is down why it is
// being turned away, then hangs up.
func (a *App) rejectSleeping(ws *websocket.Conn) {
	msg, err := marshalEnvelope(eventServerSleep, activityNotice{
		Message: sleepMessage,
		Active:  false,
		Ts:      isoNow(),
	})
	if err == nil {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = ws.WriteMessage(websocket.TextMessage, msg)
	}
	ws.Close()
}

func (a *App) heartbeat(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn) {
	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		a.logger.Error(err.Error())
		return
	}

	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ticker := time.NewTicker(pingPeriod)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
					cancel()
					return
				}
			}
		}
	}()
}

func (a *App) readPump(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, inMessages chan<- []byte) {
	defer cancel()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			logger.Wf(ctx, "[read] ignore err %v", err)
			break
		}

		select {
		case <-ctx.Done():
			return
		case inMessages <- message:
		}
	}
}

// dispatch handles this connection's events strictly in arrival order, so
// an offer is always relayed before any later candidate from the same peer.
func (a *App) dispatch(ctx context.Context, cancel context.CancelFunc, c *conn, inMessages <-chan []byte) {
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-inMessages:
			if !ok {
				return
			}
			a.handleEvent(ctx, c, m)
		}
	}
}

func (a *App) handleEvent(ctx context.Context, c *conn, m []byte) {
	env := Envelope{}
	if err := json.Unmarshal(m, &env); err != nil {
		logger.Wf(ctx, "unmarshal %s err %v", m, err)
		a.sendError(c, "malformed event")
		return
	}

	handler, ok := handlers[env.Event]
	if !ok {
		a.sendError(c, "unknown event "+env.Event)
		return
	}

	if err := handler(ctx, a, c, env.Data); err != nil {
		logger.Wf(ctx, "handle %v err %v", env.Event, err)
		a.sendError(c, "malformed "+env.Event+" payload")
	}
}

func (a *App) writePump(c *conn, ws *websocket.Conn) {
	for {
		select {
		case m := <-c.out:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, m); err != nil {
				return
			}
		case <-c.done:
			// Flush whatever was queued before the hangup, then close.
			for {
				select {
				case m := <-c.out:
					ws.SetWriteDeadline(time.Now().Add(writeWait))
					if err := ws.WriteMessage(websocket.TextMessage, m); err != nil {
						return
					}
				default:
					ws.SetWriteDeadline(time.Now().Add(writeWait))
					_ = ws.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
					return
				}
			}
		}
	}
}

// snapshotConns materializes the registry once so mass operations never
// iterate a map mutated by the disconnects they trigger.
func (a *App) snapshotConns() []*conn {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*conn, 0, len(a.conns))
	for _, c := range a.conns {
		out = append(out, c)
	}
	return out
}

func (a *App) broadcastAll(event string, payload any) {
	msg, err := marshalEnvelope(event, payload)
	if err != nil {
		a.logger.Error("broadcast " + event + ": " + err.Error())
		return
	}

	for _, c := range a.snapshotConns() {
		deliver(c.out, msg)
	}
}

func (a *App) sleepAll() {
	msg, err := marshalEnvelope(eventServerSleep, activityNotice{
		Message: sleepMessage,
		Active:  false,
		Ts:      isoNow(),
	})

	for _, c := range a.snapshotConns() {
		if err == nil {
			deliver(c.out, msg)
		}
		c.close()
	}
}

func (a *App) sendEvent(c *conn, event string, payload any) {
	msg, err := marshalEnvelope(event, payload)
	if err != nil {
		a.logger.Error("send " + event + ": " + err.Error())
		return
	}
	deliver(c.out, msg)
}

func (a *App) sendError(c *conn, message string) {
	a.sendEvent(c, eventError, errorPayload{Message: message})
}

// deliver is fire-and-forget: a nil, full or abandoned queue drops the
// frame. A relay racing a disconnect is expected steady state, not a fault.
func deliver(out chan []byte, msg []byte) {
	if out == nil {
		return
	}
	select {
	case out <- msg:
	default:
	}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %v payload", event)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func isoNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
