package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tggate/pkg/gate"

	"github.com/gotd/td/tg"
)

// resolverAPI is the slice of the provider client used for identifier
// resolution. *tg.Client satisfies it.
type resolverAPI interface {
	ContactsResolveUsername(ctx context.Context, request *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	ContactsResolvePhone(ctx context.Context, phone string) (*tg.ContactsResolvedPeer, error)
}

// Resolve maps a caller-supplied identifier onto a concrete entity.
//
// The identifier forms are tried in a fixed order: a numeric string is a
// signed chat id, an "@" prefix is a username, a "+" prefix is a phone
// number, and anything else falls back to a bare username lookup.
// Resolution is read-only and repeatable; an unresolvable identifier comes
// back as *gate.NotFoundError.
func (g *Gateway) Resolve(ctx context.Context, identifier string) (gate.ResolvedEntity, error) {
	api, err := g.api()
	if err != nil {
		return gate.ResolvedEntity{}, err
	}
	return resolve(ctx, api, g.store, g.warmDialogs, identifier)
}

// warmFunc refreshes the peer store from the dialog list before a numeric
// lookup is retried.
type warmFunc func(ctx context.Context) error

func resolve(ctx context.Context, api resolverAPI, store *PeerStore, warm warmFunc, identifier string) (gate.ResolvedEntity, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return gate.ResolvedEntity{}, &gate.NotFoundError{Identifier: identifier}
	}

	if chatID, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return resolveNumeric(ctx, store, warm, trimmed, chatID)
	}

	switch {
	case strings.HasPrefix(trimmed, "@"):
		return resolveUsername(ctx, api, store, trimmed, strings.TrimPrefix(trimmed, "@"))
	case strings.HasPrefix(trimmed, "+"):
		return resolvePhone(ctx, api, store, trimmed)
	default:
		return resolveUsername(ctx, api, store, trimmed, trimmed)
	}
}

func resolveNumeric(ctx context.Context, store *PeerStore, warm warmFunc, identifier string, chatID int64) (gate.ResolvedEntity, error) {
	if entity, ok := store.Entity(chatID); ok {
		return entity, nil
	}

	// Cold store: the id may belong to a dialog not seen yet this run.
	if warm != nil {
		if err := warm(ctx); err != nil {
			return gate.ResolvedEntity{}, &gate.NotFoundError{Identifier: identifier, Err: err}
		}
		if entity, ok := store.Entity(chatID); ok {
			return entity, nil
		}
	}

	return gate.ResolvedEntity{}, &gate.NotFoundError{Identifier: identifier}
}

func resolveUsername(ctx context.Context, api resolverAPI, store *PeerStore, identifier, username string) (gate.ResolvedEntity, error) {
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		return gate.ResolvedEntity{}, &gate.NotFoundError{Identifier: identifier, Err: err}
	}
	return entityFromResolved(store, identifier, resolved)
}

func resolvePhone(ctx context.Context, api resolverAPI, store *PeerStore, phone string) (gate.ResolvedEntity, error) {
	resolved, err := api.ContactsResolvePhone(ctx, phone)
	if err != nil {
		return gate.ResolvedEntity{}, &gate.NotFoundError{Identifier: phone, Err: err}
	}
	return entityFromResolved(store, phone, resolved)
}

func entityFromResolved(store *PeerStore, identifier string, resolved *tg.ContactsResolvedPeer) (gate.ResolvedEntity, error) {
	for _, user := range resolved.Users {
		if typed, ok := user.(*tg.User); ok {
			store.RememberUser(typed)
		}
	}
	for _, chat := range resolved.Chats {
		store.RememberChat(chat)
	}

	chatID, ok := chatIDForPeer(resolved.Peer)
	if !ok {
		return gate.ResolvedEntity{}, &gate.NotFoundError{
			Identifier: identifier,
			Err:        fmt.Errorf("unsupported peer %T", resolved.Peer),
		}
	}

	entity, ok := store.Entity(chatID)
	if !ok {
		return gate.ResolvedEntity{}, &gate.NotFoundError{Identifier: identifier}
	}
	return entity, nil
}
