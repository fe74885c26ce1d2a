package telegram

import (
	"context"
	"fmt"

	"tggate/pkg/gate"

	"github.com/gotd/td/tg"
)

// Contacts lists the signed-in account's address book. Bot accounts are
// excluded.
func (g *Gateway) Contacts(ctx context.Context) ([]gate.Contact, error) {
	api, err := g.api()
	if err != nil {
		return nil, err
	}

	result, err := api.ContactsGetContacts(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	listing, ok := result.(*tg.ContactsContacts)
	if !ok {
		return nil, fmt.Errorf("list contacts: unexpected response %T", result)
	}

	contacts := make([]gate.Contact, 0, len(listing.Users))
	for _, raw := range listing.Users {
		user, ok := raw.(*tg.User)
		if !ok || user.Bot {
			continue
		}
		g.store.RememberUser(user)

		username, _ := user.GetUsername()
		firstName, _ := user.GetFirstName()
		lastName, _ := user.GetLastName()
		phone, _ := user.GetPhone()
		contacts = append(contacts, gate.Contact{
			ID:        user.ID,
			FirstName: firstName,
			LastName:  lastName,
			Username:  username,
			Phone:     phone,
		})
	}
	return contacts, nil
}
