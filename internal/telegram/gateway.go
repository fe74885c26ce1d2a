package telegram

import (
	"fmt"
	"log/slog"

	"github.com/gotd/td/tg"
)

// Gateway exposes the provider operations consumed by the HTTP boundary:
// entity resolution, dialog and history access, outbound messaging, contact
// listing, and media download. Every operation requires an authorized
// session and reports gate.ErrNotConnected otherwise.
type Gateway struct {
	session *Session
	store   *PeerStore
	logger  *slog.Logger
}

// NewGateway wires a gateway over an established session and peer store.
func NewGateway(session *Session, store *PeerStore, logger *slog.Logger) (*Gateway, error) {
	if session == nil {
		return nil, fmt.Errorf("new gateway: session is required")
	}
	if store == nil {
		return nil, fmt.Errorf("new gateway: peer store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		session: session,
		store:   store,
		logger:  logger.With(slog.String("component", "gateway")),
	}, nil
}

// api returns the raw provider client when the session is authorized.
func (g *Gateway) api() (*tg.Client, error) {
	return g.session.API()
}
