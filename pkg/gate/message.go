package gate

import "time"

// Message is the history/search projection of one provider message,
// carrying the normalized media descriptor inline.
type Message struct {
	ID        int        `json:"id"`
	Text      string     `json:"text"`
	Date      *time.Time `json:"date,omitempty"`
	ChatID    string     `json:"chat_id,omitempty"`
	SenderID  int64      `json:"sender_id,omitempty"`
	IsOut     bool       `json:"is_out"`
	IsReply   bool       `json:"is_reply"`
	ReplyToID int        `json:"reply_to_msg_id,omitempty"`

	MediaDescriptor
}

// SentMessage is the acknowledgement shape for outbound send/edit calls.
type SentMessage struct {
	ID   int        `json:"message_id"`
	Text string     `json:"text,omitempty"`
	Date *time.Time `json:"date,omitempty"`
}
