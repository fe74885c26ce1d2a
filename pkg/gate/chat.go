package gate

import "time"

// Chat is one dialog row in the chat listing.
type Chat struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	UnreadCount     int        `json:"unread_count"`
	LastMessage     string     `json:"last_message,omitempty"`
	LastMessageDate *time.Time `json:"last_message_date,omitempty"`
	IsUser          bool       `json:"is_user"`
	IsGroup         bool       `json:"is_group"`
	IsChannel       bool       `json:"is_channel"`
}

// Member is one chat participant row.
type Member struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	IsBot     bool   `json:"is_bot"`
}

// Contact is one address book entry. Bots are excluded from listings.
type Contact struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Phone     string `json:"phone,omitempty"`
}
