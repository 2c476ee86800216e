package internalhttp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Yath-MCA/ayaz-home-security/internal/activity"
	"github.com/Yath-MCA/ayaz-home-security/internal/rooms"
)

type Server struct {
	server *http.Server
	logger Logger
}

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

type Application interface {
	Active() bool
	Status() activity.State
	Wake() activity.State
	SetActive(token string, active bool) (activity.State, error)
	StreamURL() (string, bool)
	SetStreamURL(token, url string) (string, error)
	Rooms() []rooms.RoomInfo
	ConnCount() int
	WS(ctx context.Context, conn *websocket.Conn)
}

func New(logger Logger, app Application, host string, port int) *Server {
	server := &http.Server{
		Addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		Handler: NewHandler(logger, app),
		// Only the header read is bounded: /ws upgrades into long-lived
		// connections that set their own deadlines.
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		server: server,
		logger: logger,
	}
}

func (s *Server) Start(ctx context.Context) error {
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-ctx.Done()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
