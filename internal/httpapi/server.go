// Package httpapi exposes the gateway over HTTP and websocket.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"tggate/internal/hub"
	"tggate/internal/telegram"
	"tggate/pkg/gate"

	"github.com/gorilla/websocket"
	"github.com/gotd/td/tgerr"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// AuthService is the slice of the session the auth handlers drive.
type AuthService interface {
	Start(ctx context.Context) error
	RequestCode(ctx context.Context) error
	SubmitCode(ctx context.Context, code string) (gate.AuthStatus, error)
	SubmitPassword(ctx context.Context, password string) (gate.AuthStatus, error)
	Status() gate.AuthStatus
	Disconnect()
}

// GatewayService is the slice of the gateway the chat, message, contact,
// and file handlers consume.
type GatewayService interface {
	Resolve(ctx context.Context, identifier string) (gate.ResolvedEntity, error)
	Chats(ctx context.Context, limit int) ([]gate.Chat, error)
	Members(ctx context.Context, identifier string) ([]gate.Member, error)
	History(ctx context.Context, identifier string, limit, offsetID int) ([]gate.Message, error)
	Search(ctx context.Context, identifier, query string, limit int) ([]gate.Message, error)
	Send(ctx context.Context, identifier, text string, opts telegram.SendOptions) (gate.SentMessage, error)
	Edit(ctx context.Context, identifier string, messageID int, text string) (gate.SentMessage, error)
	Delete(ctx context.Context, identifier string, messageIDs []int) error
	Forward(ctx context.Context, fromIdentifier, toIdentifier string, messageIDs []int) ([]int, error)
	Pin(ctx context.Context, identifier string, messageID int, unpin bool) error
	React(ctx context.Context, identifier string, messageID int, reaction string) error
	MarkRead(ctx context.Context, identifier string, maxID int) error
	Contacts(ctx context.Context) ([]gate.Contact, error)
	Download(ctx context.Context, identifier string, messageID int, w io.Writer) (gate.MediaDescriptor, error)
}

// Server is the HTTP boundary over the session, gateway, and feed hub.
type Server struct {
	echo     *echo.Echo
	auth     AuthService
	gateway  GatewayService
	hub      *hub.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer wires the route table over the given services.
func NewServer(auth AuthService, gateway GatewayService, feed *hub.Hub, logger *slog.Logger) (*Server, error) {
	if auth == nil {
		return nil, fmt.Errorf("new http server: auth service is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("new http server: gateway service is required")
	}
	if feed == nil {
		return nil, fmt.Errorf("new http server: hub is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		auth:    auth,
		gateway: gateway,
		hub:     feed,
		logger:  logger.With(slog.String("component", "httpapi")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}

	api := e.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/auth/request-code", s.handleRequestCode)
	api.POST("/authenticate", s.handleAuthenticate)
	api.POST("/disconnect", s.handleDisconnect)

	api.GET("/chats", s.handleChats)
	api.GET("/chats/:id", s.handleChatDetail)
	api.GET("/chats/:id/members", s.handleChatMembers)

	api.GET("/messages/:chat_id", s.handleHistory)
	api.POST("/messages/send", s.handleSend)
	api.PUT("/messages/edit", s.handleEdit)
	api.DELETE("/messages/delete", s.handleDelete)
	api.POST("/messages/forward", s.handleForward)
	api.POST("/messages/pin", s.handlePin)
	api.POST("/messages/react", s.handleReact)
	api.POST("/messages/mark-read", s.handleMarkRead)
	api.POST("/search", s.handleSearch)

	api.GET("/contacts", s.handleContacts)
	api.GET("/files/download/:chat_id/:message_id", s.handleDownload)

	e.GET("/ws", s.handleWebSocket)

	return s, nil
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// errorBody is the uniform error payload.
type errorBody struct {
	Error string `json:"error"`
}

// respondError maps domain errors onto HTTP status codes.
func (s *Server) respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	if retryAfter, ok := tgerr.AsFloodWait(err); ok {
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		return c.JSON(http.StatusTooManyRequests, errorBody{Error: err.Error()})
	}

	var notFound *gate.NotFoundError
	switch {
	case errors.As(err, &notFound), errors.Is(err, gate.ErrNoMedia):
		status = http.StatusNotFound
	case errors.Is(err, gate.ErrNotConnected), errors.Is(err, gate.ErrConnection):
		status = http.StatusServiceUnavailable
	case errors.Is(err, gate.ErrAuth),
		errors.Is(err, gate.ErrCodeNotRequested),
		errors.Is(err, gate.ErrPasswordRequired),
		errors.Is(err, gate.ErrNoMembers):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
	}
	return c.JSON(status, errorBody{Error: err.Error()})
}
